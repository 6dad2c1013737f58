package routeros

import (
	"bufio"
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"
)

// Default timeouts
const (
	DefaultDialTimeout    = 10 * time.Second
	DefaultCommandTimeout = 10 * time.Second
)

// State is the lifecycle state of a Session
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
	StateCommandInFlight
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateCommandInFlight:
		return "command-in-flight"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Option configures a Session
type Option func(*Session)

// WithDialTimeout bounds the TCP connect
func WithDialTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.dialTimeout = d
	}
}

// WithCommandTimeout bounds every write/read exchange, login included
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.commandTimeout = d
	}
}

// WithTLS dials the api-ssl service instead of the plain one
func WithTLS(cfg *tls.Config) Option {
	return func(s *Session) {
		s.tlsConfig = cfg
	}
}

// Session is one connection speaking the sentence protocol. It is not safe
// for concurrent commands: the protocol has no demultiplexing without tags.
type Session struct {
	conn net.Conn
	r    *bufio.Reader

	mu    sync.Mutex
	state State

	dialTimeout    time.Duration
	commandTimeout time.Duration
	tlsConfig      *tls.Config
}

func newSession(opts ...Option) *Session {
	s := &Session{
		state:          StateDisconnected,
		dialTimeout:    DefaultDialTimeout,
		commandTimeout: DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSession wraps an already connected conn. The session starts in the
// Connected state and needs Login before commands.
func NewSession(conn net.Conn, opts ...Option) *Session {
	s := newSession(opts...)
	s.attach(conn)
	return s
}

// Dial connects to addr and logs in. On login failure the session is closed
// and the trap message is returned.
func Dial(ctx context.Context, addr, username, password string, opts ...Option) (*Session, error) {
	s := newSession(opts...)

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	var conn net.Conn
	var err error
	if s.tlsConfig != nil {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: s.tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	s.attach(conn)

	if err := s.Login(ctx, username, password); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Session) attach(conn net.Conn) {
	s.conn = conn
	s.r = bufio.NewReader(conn)
	s.state = StateConnected
}

// State reports the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Login sends the /login sentence. A !trap reply closes the session.
// Firmware that still uses the challenge scheme answers !done with =ret=,
// which is answered with the MD5 response.
func (s *Session) Login(ctx context.Context, username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return fmt.Errorf("login in state %s: %w", s.state, ErrClosed)
	}

	reply, err := s.loginExchange(ctx, Attr("name", username), Attr("password", password))
	if err != nil {
		return err
	}

	if challenge, ok := reply.Done["ret"]; ok {
		response, err := challengeResponse(password, challenge)
		if err != nil {
			s.closeLocked()
			return fmt.Errorf("login: %w", err)
		}
		if _, err := s.loginExchange(ctx, Attr("name", username), Attr("response", response)); err != nil {
			return err
		}
	}

	s.state = StateAuthenticated
	return nil
}

func (s *Session) loginExchange(ctx context.Context, params ...Param) (*Reply, error) {
	reply, err := s.exchange(ctx, "/login", true, params...)
	if err != nil {
		s.closeLocked()
		return nil, err
	}
	return reply, nil
}

func challengeResponse(password, challenge string) (string, error) {
	raw, err := hex.DecodeString(challenge)
	if err != nil {
		return "", fmt.Errorf("decode challenge: %w", err)
	}

	h := md5.New()
	h.Write([]byte{0x00})
	h.Write([]byte(password))
	h.Write(raw)

	return "00" + hex.EncodeToString(h.Sum(nil)), nil
}

// Run sends command with params and collects the reply. A !trap reply is
// returned as *TrapError and leaves the session usable; I/O failures close it.
func (s *Session) Run(ctx context.Context, command string, params ...Param) (*Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, fmt.Errorf("%s in state %s: %w", command, s.state, ErrNotAuthenticated)
	}

	s.state = StateCommandInFlight
	reply, err := s.exchange(ctx, command, false, params...)
	if s.state == StateCommandInFlight {
		s.state = StateAuthenticated
	}

	return reply, err
}

// exchange writes one command and reads until !done. With stopOnTrap the
// first !trap ends the exchange; otherwise the trailing !done is consumed
// too so the stream stays aligned. Caller holds s.mu.
func (s *Session) exchange(ctx context.Context, command string, stopOnTrap bool, params ...Param) (*Reply, error) {
	stop := s.armDeadline(ctx)
	defer stop()

	words := make([]string, 0, len(params)+1)
	words = append(words, command)
	for _, p := range params {
		words = append(words, p.Word())
	}

	if err := WriteSentence(s.conn, words...); err != nil {
		s.closeLocked()
		return nil, s.ioError(ctx, command, "write", err)
	}

	reply := &Reply{}
	var trap *TrapError
	for {
		raw, err := ReadSentence(s.r)
		if err != nil {
			s.closeLocked()
			return nil, s.ioError(ctx, command, "read", err)
		}
		if len(raw) == 0 {
			continue
		}

		sentence := ParseSentence(raw)
		switch sentence.Type {
		case ReplyRe:
			reply.Rows = append(reply.Rows, sentence.Attributes)
		case ReplyDone:
			reply.Done = sentence.Attributes
			if trap != nil {
				return nil, trap
			}
			return reply, nil
		case ReplyTrap:
			if trap == nil {
				trap = &TrapError{
					Command:  command,
					Category: sentence.Attributes["category"],
					Message:  sentence.Attributes["message"],
				}
			}
			if stopOnTrap {
				return nil, trap
			}
		case ReplyFatal:
			s.closeLocked()
			msg := sentence.Attributes["message"]
			if msg == "" && len(raw) > 1 {
				msg = raw[1]
			}
			return nil, &FatalError{Message: msg}
		default:
			s.closeLocked()
			return nil, fmt.Errorf("%s: %w %q", command, ErrUnexpectedReply, sentence.Type)
		}
	}
}

// armDeadline bounds the exchange by the command timeout and the context
// deadline, and interrupts blocked I/O when ctx is cancelled.
func (s *Session) armDeadline(ctx context.Context) func() {
	deadline := time.Time{}
	if s.commandTimeout > 0 {
		deadline = time.Now().Add(s.commandTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	s.conn.SetDeadline(deadline)

	stopAfter := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Unix(1, 0))
	})

	return func() {
		stopAfter()
		s.conn.SetDeadline(time.Time{})
	}
}

func (s *Session) ioError(ctx context.Context, command, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %s: %w", command, op, ctxErr)
	}
	return fmt.Errorf("%s: %s: %w", command, op, err)
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.state == StateClosed || s.conn == nil {
		s.state = StateClosed
		return nil
	}
	s.state = StateClosed
	return s.conn.Close()
}
