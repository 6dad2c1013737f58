package router

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/models"
)

// DefaultRESTTimeout bounds every HTTP exchange with the router
const DefaultRESTTimeout = 5 * time.Second

// maxRESTBody caps how much of a response is read
const maxRESTBody = 8 << 20

// RESTTransport talks to the router's HTTP resource API
type RESTTransport struct {
	client *http.Client
	port   int
}

// RESTOption configures a RESTTransport
type RESTOption func(*RESTTransport)

// WithRESTPort overrides the www port, 80 or 443 by default
func WithRESTPort(port int) RESTOption {
	return func(t *RESTTransport) {
		t.port = port
	}
}

// WithInsecureTLS accepts self-signed router certificates
func WithInsecureTLS() RESTOption {
	return func(t *RESTTransport) {
		tr := t.client.Transport.(*http.Transport)
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
}

// NewRESTTransport creates a REST transport whose requests time out after
// timeout; zero means DefaultRESTTimeout.
func NewRESTTransport(timeout time.Duration, opts ...RESTOption) *RESTTransport {
	if timeout <= 0 {
		timeout = DefaultRESTTimeout
	}
	t := &RESTTransport{
		client: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements Transport
func (t *RESTTransport) Name() string { return "rest" }

// Open implements Transport. HTTP is stateless so nothing is dialed here.
func (t *RESTTransport) Open(ctx context.Context, settings *models.RouterSettings) (Executor, error) {
	return &restExecutor{
		client:   t.client,
		base:     t.baseURL(settings),
		username: settings.Username,
		password: settings.Password,
	}, nil
}

func (t *RESTTransport) baseURL(settings *models.RouterSettings) string {
	scheme, port := "http", 80
	if settings.SSL {
		scheme, port = "https", 443
	}
	if t.port != 0 {
		port = t.port
	}
	return scheme + "://" + net.JoinHostPort(settings.Host, strconv.Itoa(port)) + "/rest"
}

type restExecutor struct {
	client   *http.Client
	base     string
	username string
	password string
}

// Execute maps cmd to the resource API:
// print GET {path}?k=v, add POST {path}/add, set PATCH {path}/{id},
// remove POST {path}/remove.
func (e *restExecutor) Execute(ctx context.Context, cmd Command) ([]Row, error) {
	var method, target string
	var body interface{}

	switch cmd.Verb {
	case VerbPrint:
		method, target = http.MethodGet, e.base+cmd.Path
		if len(cmd.Query) > 0 {
			q := url.Values{}
			for k, v := range cmd.Query {
				q.Set(k, v)
			}
			target += "?" + q.Encode()
		}
	case VerbAdd:
		method, target, body = http.MethodPost, e.base+cmd.Path+"/add", cmd.Attrs
	case VerbSet:
		method, target, body = http.MethodPatch, e.base+cmd.Path+"/"+url.PathEscape(cmd.ID), cmd.Attrs
	case VerbRemove:
		method, target, body = http.MethodPost, e.base+cmd.Path+"/remove", map[string]string{".id": cmd.ID}
	default:
		return nil, fmt.Errorf("%w: verb %q", ErrInvalid, cmd.Verb)
	}

	log.Debug().
		Str("transport", "rest").
		Str("method", method).
		Str("path", cmd.Path).
		Msg("Router request")

	respBody, err := e.do(ctx, method, target, body, cmd)
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows(respBody)
	if err != nil {
		if cmd.Verb == VerbPrint {
			return nil, &ProtocolError{Transport: "rest", Command: cmd.String(), Err: err}
		}
		// write verbs only carry an optional ret
		return nil, nil
	}
	return rows, nil
}

func (e *restExecutor) do(ctx context.Context, method, target string, body interface{}, cmd Command) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		if m, ok := body.(map[string]string); ok && m == nil {
			body = struct{}{}
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", cmd, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &ConnectionError{Transport: "rest", Op: cmd.String(), Err: err}
	}
	req.SetBasicAuth(e.username, e.password)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{Transport: "rest", Op: cmd.String(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRESTBody))
	if err != nil {
		return nil, &ConnectionError{Transport: "rest", Op: cmd.String(), Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := restErrorMessage(respBody)
		if msg == "" {
			msg = strings.ToLower(http.StatusText(resp.StatusCode))
		}
		return nil, &ConnectionError{
			Transport: "rest",
			Op:        cmd.String(),
			Status:    resp.StatusCode,
			Err:       errors.New(msg),
		}
	}

	return respBody, nil
}

// Close implements Executor
func (e *restExecutor) Close() error { return nil }
