// Package routerostest provides in-process fakes of a router speaking the
// binary API protocol and the REST resource API, for tests.
package routerostest

import (
	"bufio"
	"net"
	"strconv"
	"sync"

	"github.com/netbill/netbill-server/pkg/routeros"
)

// Handler answers one command sentence with zero or more reply sentences
type Handler func(words []string) [][]string

// Server is a fake binary API endpoint listening on loopback
type Server struct {
	ln      net.Listener
	handler Handler

	mu       sync.Mutex
	received [][]string
	conns    int
	open     map[net.Conn]struct{}

	wg sync.WaitGroup
}

// NewServer starts a server answering every sentence with h
func NewServer(h Handler) *Server {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("routerostest: listen: " + err.Error())
	}

	s := &Server{ln: ln, handler: h, open: make(map[net.Conn]struct{})}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Addr returns host:port of the listener
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the listener host
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listener port
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Received returns every sentence read so far, logins included
func (s *Server) Received() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.received))
	copy(out, s.received)
	return out
}

// Commands returns the command word of every sentence read so far
func (s *Server) Commands() []string {
	var cmds []string
	for _, words := range s.Received() {
		if len(words) > 0 {
			cmds = append(cmds, words[0])
		}
	}
	return cmds
}

// Connections returns how many connections were accepted
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

// Close stops the listener, drops open connections and waits for them
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	for conn := range s.open {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.open[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.open, conn)
		s.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	for {
		words, err := routeros.ReadSentence(r)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, words)
		s.mu.Unlock()

		for _, reply := range s.handler(words) {
			if err := routeros.WriteSentence(conn, reply...); err != nil {
				return
			}
		}
	}
}

// Done builds a !done sentence with optional attribute words
func Done(attrs ...string) []string {
	return append([]string{routeros.ReplyDone}, attrs...)
}

// Trap builds a !trap sentence carrying message
func Trap(message string) []string {
	return []string{routeros.ReplyTrap, "=message=" + message}
}

// Row builds a !re sentence from an attribute table
func Row(attrs map[string]string) []string {
	words := []string{routeros.ReplyRe}
	for k, v := range attrs {
		words = append(words, "="+k+"="+v)
	}
	return words
}

// AcceptLogin wraps next so that /login is answered with !done
func AcceptLogin(next Handler) Handler {
	return func(words []string) [][]string {
		if len(words) > 0 && words[0] == "/login" {
			return [][]string{Done()}
		}
		return next(words)
	}
}
