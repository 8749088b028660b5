package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// DefaultHTTPClientWithRetry http client with retry behavior.
var DefaultHTTPClientWithRetry = NewClient(http.Client{
	Transport: &retryablehttp.RoundTripper{
		Client: retryablehttp.NewClient(),
	},
})

// Options tunes a retrying client.
type Options struct {
	RetryMax int
	Timeout  time.Duration
	// InsecureSkipVerify disables TLS verification. Only meant for loopback proxies.
	InsecureSkipVerify bool
}

// Client represents default http client that can be used to send requests to third party services
type Client struct {
	base http.Client
}

// Response is the status and body of a completed request.
type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned by Post and Get on a non 2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http request failed with status %v, error: %v", e.StatusCode, e.Body)
}

// NewClient returns new instance of custom client
func NewClient(c http.Client) *Client {
	return &Client{
		base: c,
	}
}

// NewRetryClient returns a client that retries transport errors and 5xx answers up to opts.RetryMax times.
// The last answer is always handed back so callers can inspect the status and body.
func NewRetryClient(ctx context.Context, opts Options) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.Logger = leveledLogger{ctx: ctx}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.InsecureSkipVerify {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		rc.HTTPClient.Transport = tr
	}
	return NewClient(http.Client{
		Timeout:   opts.Timeout,
		Transport: &retryablehttp.RoundTripper{Client: rc},
	})
}

// Do sends a request with the given headers and returns the response whatever its status.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	addRequestIDToHeader(ctx, request)
	for k, v := range headers {
		request.Header.Set(k, v)
	}
	return executeRequest(ctx, c, request)
}

// Post send posts request to url with additional headers
func (c *Client) Post(ctx context.Context, url string, req []byte) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodPost, url, nil, req)
	if err != nil {
		return nil, err
	}
	return resp.ok()
}

// Get send request to url with requestID headers
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.ok()
}

func (r *Response) ok() ([]byte, error) {
	if r.StatusCode < http.StatusOK || r.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{StatusCode: r.StatusCode, Body: string(r.Body)}
	}
	return r.Body, nil
}

// addRequestIDToHeader adds headers to request
func addRequestIDToHeader(ctx context.Context, r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		r.Header.Set(middleware.RequestIDHeader, requestID)
	}
}

// executeRequest contains common logic of request execution
func executeRequest(ctx context.Context, c *Client, r *http.Request) (*Response, error) {
	resp, err := c.base.Do(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			log.Error(ctx, "can not close body", "err", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

type leveledLogger struct {
	ctx context.Context
}

func (l leveledLogger) Error(msg string, kv ...interface{}) { log.Error(l.ctx, msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...interface{})  { log.Debug(l.ctx, msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...interface{}) { log.Debug(l.ctx, msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...interface{})  { log.Warn(l.ctx, msg, kv...) }
