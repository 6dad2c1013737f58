package router

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
	"github.com/netbill/netbill-server/pkg/routeros"
)

// BinaryTransport talks to the router over the binary API socket. Every
// Open dials and logs in; Close tears the session down.
type BinaryTransport struct {
	DialTimeout    time.Duration
	CommandTimeout time.Duration
}

// NewBinaryTransport creates a binary transport; zero timeouts use the
// session defaults.
func NewBinaryTransport(dialTimeout, commandTimeout time.Duration) *BinaryTransport {
	return &BinaryTransport{DialTimeout: dialTimeout, CommandTimeout: commandTimeout}
}

// Name implements Transport
func (t *BinaryTransport) Name() string { return "binary" }

// Open implements Transport
func (t *BinaryTransport) Open(ctx context.Context, settings *models.RouterSettings) (Executor, error) {
	var opts []routeros.Option
	if t.DialTimeout > 0 {
		opts = append(opts, routeros.WithDialTimeout(t.DialTimeout))
	}
	if t.CommandTimeout > 0 {
		opts = append(opts, routeros.WithCommandTimeout(t.CommandTimeout))
	}

	session, err := routeros.Dial(ctx, settings.APIAddress(), settings.Username, settings.Password, opts...)
	if err != nil {
		return nil, &ConnectionError{Transport: "binary", Op: "login", Err: err}
	}

	return &binaryExecutor{session: session}, nil
}

type binaryExecutor struct {
	session *routeros.Session
}

// Execute sends cmd as one sentence: attributes as =k=v, queries as ?k=v
// and the row id as =.id=.
func (e *binaryExecutor) Execute(ctx context.Context, cmd Command) ([]Row, error) {
	params := make([]routeros.Param, 0, len(cmd.Attrs)+len(cmd.Query)+1)
	if cmd.ID != "" {
		params = append(params, routeros.Attr(".id", cmd.ID))
	}
	for _, k := range sortedKeys(cmd.Attrs) {
		params = append(params, routeros.Attr(k, cmd.Attrs[k]))
	}
	for _, k := range sortedKeys(cmd.Query) {
		params = append(params, routeros.Query(k, cmd.Query[k]))
	}

	log.Debug().
		Str("transport", "binary").
		Str("command", cmd.String()).
		Int("params", len(params)).
		Msg("Router request")

	reply, err := e.session.Run(ctx, cmd.String(), params...)
	if err != nil {
		return nil, classifyBinary(cmd, err)
	}

	rows := make([]Row, 0, len(reply.Rows))
	for _, r := range reply.Rows {
		rows = append(rows, Row(r))
	}
	if ret, ok := reply.Done["ret"]; ok && cmd.Verb != VerbPrint {
		rows = append(rows, Row{"ret": ret})
	}

	return rows, nil
}

// classifyBinary separates rejected commands and malformed replies from
// broken connections.
func classifyBinary(cmd Command, err error) error {
	var trap *routeros.TrapError

	switch {
	case errors.As(err, &trap),
		errors.Is(err, routeros.ErrInvalidLength),
		errors.Is(err, routeros.ErrInvalidUTF8),
		errors.Is(err, routeros.ErrUnexpectedReply):
		return &ProtocolError{Transport: "binary", Command: cmd.String(), Err: err}
	default:
		return &ConnectionError{Transport: "binary", Op: cmd.String(), Err: err}
	}
}

// Close implements Executor
func (e *binaryExecutor) Close() error {
	return e.session.Close()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
