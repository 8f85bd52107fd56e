package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	bridgeerrors "github.com/jrsteele09/go-gateway-bridge/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// TokenSource supplies a currently valid bearer token for each call.
type TokenSource interface {
	Authenticate(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Authenticate(ctx context.Context) (string, error) {
	return f(ctx)
}

// Client frames and sends one JSON-RPC call per invocation over HTTP POST.
// Its only state is the request id counter, so it is safe for concurrent use.
type Client struct {
	endpoint   string
	tokens     TokenSource
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
	checkIDs   bool
	lastID     atomic.Int64
	logger     zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each POST including reading the response. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRateLimit paces outgoing requests to perSecond with the given burst.
// A non-positive rate leaves requests unpaced.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithoutIDCheck accepts responses whose id differs from the request's.
func WithoutIDCheck() Option {
	return func(c *Client) {
		c.checkIDs = false
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client posting to endpoint, authenticating every call through tokens.
func New(endpoint string, tokens TokenSource, options ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		tokens:     tokens,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		checkIDs:   true,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// SendRequest calls method with params (nil for none) and returns the raw
// result. A non-2xx status is a TransportError "HTTP <status>: <statusText>",
// a JSON-RPC error member is a ProtocolError carrying the remote message, and
// network failures are TransportErrors whose message is the underlying one.
func (c *Client) SendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	bearer, err := c.tokens.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	id := c.lastID.Add(1)
	body, err := json.Marshal(Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, bridgeerrors.NewNetworkError(err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Int64("id", id).Msg("rpc request failed")
		return nil, bridgeerrors.NewNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Debug().Int("status", resp.StatusCode).Str("method", method).Int64("id", id).Msg("rpc http error")
		return nil, bridgeerrors.NewResponseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, bridgeerrors.NewNetworkError(err)
	}

	var rpcResp Response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, &bridgeerrors.ProtocolError{
			Code:    ParseError,
			Message: fmt.Sprintf("%s: %v", bridgeerrors.ErrMalformedResponse, err),
			Err:     bridgeerrors.ErrMalformedResponse,
		}
	}

	c.logger.Debug().
		Str("method", method).
		Int64("id", id).
		Dur("elapsed", time.Since(start)).
		Bool("error", rpcResp.Error != nil).
		Msg("rpc call")

	if err := c.checkID(id, &rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, &bridgeerrors.ProtocolError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Err:     rpcResp.Error,
		}
	}
	return rpcResp.Result, nil
}

// Call is SendRequest followed by decoding the result into out (which may be nil).
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	result, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &bridgeerrors.ProtocolError{
			Code:    ParseError,
			Message: fmt.Sprintf("decoding %s result: %v", method, err),
			Err:     bridgeerrors.ErrMalformedResponse,
		}
	}
	return nil
}

// checkID rejects a response answering a different request. An error response
// with a null id (the server could not parse the request) is accepted.
func (c *Client) checkID(id int64, resp *Response) error {
	if !c.checkIDs {
		return nil
	}
	if resp.ID == nil && resp.Error != nil {
		return nil
	}
	if resp.ID == nil || *resp.ID != id {
		got := "null"
		if resp.ID != nil {
			got = fmt.Sprint(*resp.ID)
		}
		return &bridgeerrors.ProtocolError{
			Code:    InvalidRequest,
			Message: fmt.Sprintf("%s: sent %d, got %s", bridgeerrors.ErrResponseIDMismatch, id, got),
			Err:     bridgeerrors.ErrResponseIDMismatch,
		}
	}
	return nil
}
