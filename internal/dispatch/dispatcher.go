// Package dispatch performs the HTTP request of a firing. Every response is an
// outcome, whatever its status code. Only transport failures are errors.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/RezaEskandarii/cronhook/internal/constants"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxBodyBytes bounds how much of a response body is kept.
	MaxBodyBytes = 1 << 20
)

// ErrTimeout marks requests that did not complete within their timeout.
var ErrTimeout = errors.New("timeout")

type Response struct {
	StatusCode int
	Body       string
	Header     http.Header
}

type Dispatcher struct {
	client *http.Client
}

// New returns a Dispatcher on a pooled client. A nil client selects
// cleanhttp's pooled default.
func New(client *http.Client) *Dispatcher {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &Dispatcher{client: client}
}

// Send issues method against uri. A non-nil body is encoded as JSON. A zero
// timeout selects DefaultTimeout.
func (d *Dispatcher) Send(ctx context.Context, method, uri string, body any, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), uri, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid request %s %s", method, uri)
	}
	req.Header.Set("User-Agent", constants.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if reader != nil {
		req.Header.Set("Content-Type", constants.ContentTypeJSON)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err, timeout)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, classify(ctx, errors.Wrap(err, "failed to read response body"), timeout)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(data),
		Header:     resp.Header,
	}, nil
}

func classify(ctx context.Context, err error, timeout time.Duration) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Mark(errors.Newf("timeout of %dms exceeded", timeout.Milliseconds()), ErrTimeout)
	}
	return errors.Wrap(err, "request failed")
}
