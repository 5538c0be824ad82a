package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"default", "", DUCOS1, false},
		{"duco-s1", "DUCO-S1", DUCOS1, false},
		{"lower case", "xxhash", XXHash, false},
		{"unknown", "scrypt", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSHA1KnownVector(t *testing.T) {
	// sha1("abc")
	got := Sum(DUCOS1, []byte("abc"))
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", hex.EncodeToString(got))
	assert.Len(t, got, 20)
}

func TestNonceHasherMatchesSum(t *testing.T) {
	sizes := map[Algorithm]int{DUCOS1: 20, XXHash: 8}
	for _, alg := range []Algorithm{DUCOS1, XXHash} {
		t.Run(string(alg), func(t *testing.T) {
			h := NewNonceHasher(alg, "seed1")
			for _, nonce := range []uint64{0, 7, 42, 1000, 18446744073709551615} {
				want := Sum(alg, []byte("seed1"+strconv.FormatUint(nonce, 10)))
				assert.Equal(t, want, h.Sum(nonce), "nonce %d", nonce)
				assert.Len(t, h.Sum(nonce), sizes[alg])
			}
		})
	}
}

func TestXXHashIsSeeded(t *testing.T) {
	data := []byte("seed1" + "42")
	got := Sum(XXHash, data)

	seeded := xxhash.NewWithSeed(XXHashSeed)
	_, _ = seeded.Write(data)
	assert.Equal(t, seeded.Sum64(), binary.BigEndian.Uint64(got))
	assert.NotEqual(t, xxhash.Sum64(data), binary.BigEndian.Uint64(got))
}
