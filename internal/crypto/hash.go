package crypto

import (
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Algorithm names a job hash function as advertised by the pool
type Algorithm string

const (
	// DUCOS1 is SHA-1 over base+decimal(nonce). Digest length is 20 bytes.
	DUCOS1 Algorithm = "DUCO-S1"
	// XXHash is 64-bit xxHash seeded with XXHashSeed over base+decimal(nonce),
	// big-endian. Digest length is 8 bytes.
	XXHash Algorithm = "XXHASH"
)

// XXHashSeed is the seed pools use for XXHASH jobs
const XXHashSeed = 2811

// ParseAlgorithm resolves a case-insensitive algorithm name
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", string(DUCOS1):
		return DUCOS1, nil
	case string(XXHash):
		return XXHash, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// Sum hashes data with the given algorithm
func Sum(a Algorithm, data []byte) []byte {
	if a == XXHash {
		d := xxhash.NewWithSeed(XXHashSeed)
		_, _ = d.Write(data)
		var out [8]byte
		binary.BigEndian.PutUint64(out[:], d.Sum64())
		return out[:]
	}
	sum := sha1.Sum(data)
	return sum[:]
}

// NonceHasher hashes base+decimal(nonce) for a fixed base without allocating.
// The returned digest slice is only valid until the next call to Sum.
type NonceHasher struct {
	alg     Algorithm
	buf     []byte
	baseLen int
	digest  [sha1.Size]byte
	xx      *xxhash.Digest
}

// NewNonceHasher pre-loads base into a reusable input buffer
func NewNonceHasher(alg Algorithm, base string) *NonceHasher {
	// 20 digits is enough for any uint64
	buf := make([]byte, len(base), len(base)+20)
	copy(buf, base)
	h := &NonceHasher{
		alg:     alg,
		buf:     buf,
		baseLen: len(base),
	}
	if alg == XXHash {
		h.xx = xxhash.NewWithSeed(XXHashSeed)
	}
	return h
}

// Sum returns the digest of base+decimal(nonce)
func (h *NonceHasher) Sum(nonce uint64) []byte {
	h.buf = strconv.AppendUint(h.buf[:h.baseLen], nonce, 10)
	if h.alg == XXHash {
		h.xx.ResetWithSeed(XXHashSeed)
		_, _ = h.xx.Write(h.buf)
		binary.BigEndian.PutUint64(h.digest[:8], h.xx.Sum64())
		return h.digest[:8]
	}
	h.digest = sha1.Sum(h.buf)
	return h.digest[:]
}
