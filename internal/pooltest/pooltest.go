// Package pooltest runs a scripted, in-process pool node for tests.
package pooltest

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/screa/duco-miner/internal/crypto"
)

// Server accepts TCP connections on 127.0.0.1 and hands each to a handler
type Server struct {
	Addr string

	ln      net.Listener
	handler func(*Peer)
	wg      sync.WaitGroup
	mu      sync.Mutex
	peers   []*Peer
	closed  bool
}

// NewServer starts serving and registers Close with t.Cleanup
func NewServer(t testing.TB, handler func(*Peer)) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("pooltest: listen: %v", err)
	}
	s := &Server{
		Addr:    ln.Addr().String(),
		ln:      ln,
		handler: handler,
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		p := &Peer{conn: c, reader: bufio.NewReader(c)}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			c.Close()
			return
		}
		s.peers = append(s.peers, p)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer p.Close()
			s.handler(p)
		}()
	}
}

// Close stops accepting, drops every open connection and waits for handlers
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	peers := s.peers
	s.mu.Unlock()

	s.ln.Close()
	for _, p := range peers {
		p.Close()
	}
	s.wg.Wait()
}

// Peer is the server side of one miner connection
type Peer struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Send writes line plus a newline
func (p *Peer) Send(line string) error {
	_, err := fmt.Fprintf(p.conn, "%s\n", line)
	return err
}

// Recv reads one line without its newline
func (p *Peer) Recv() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Close drops the connection
func (p *Peer) Close() {
	p.conn.Close()
}

// Target returns the hex digest of base+decimal(nonce) under alg
func Target(alg crypto.Algorithm, base string, nonce uint64) string {
	return hex.EncodeToString(crypto.Sum(alg, []byte(base+strconv.FormatUint(nonce, 10))))
}

// JobLine builds a DUCO-S1 job line whose lowest solution is nonce
func JobLine(base string, nonce, difficulty uint64) string {
	return JobLineFor(crypto.DUCOS1, base, nonce, difficulty)
}

// JobLineFor builds a job line for alg whose lowest solution is nonce
func JobLineFor(alg crypto.Algorithm, base string, nonce, difficulty uint64) string {
	return fmt.Sprintf("%s,%s,%d", base, Target(alg, base, nonce), difficulty)
}
