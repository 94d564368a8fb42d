// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package api is the HTTP JSON transport for the Quill blog API.
//
// # Description
//
// The package exposes two layers:
//
//   - Verb layer: Get/Post/Patch/Delete against arbitrary paths,
//     decoding the API's `{success, message, data, meta}` envelope.
//   - Endpoint layer: typed operations (ListPosts, CreateComment, ...)
//     that validate payloads locally before any network call and map
//     failures onto the package's Error taxonomy.
//
// Request hygiene follows one discipline for every call: a context for
// cancellation, a client-side rate limiter, a per-request id logged
// and sent as X-Request-ID, and the bearer token from the configured
// SessionSource when one is present.
//
// # Thread Safety
//
// Client is safe for concurrent use. All mutable state lives behind
// the injected SessionSource and the rate limiter, both of which are
// concurrency-safe.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/quillworks/quill/pkg/blog"
)

// -----------------------------------------------------------------------------
// Envelope
// -----------------------------------------------------------------------------

// envelope is the wire shape of every API response.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    *blog.Meta      `json:"meta"`
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Transport is the verb-level contract the rest of the client builds
// on. It exists so the query coordinator and the TUI can be tested
// against a fake without an HTTP server.
type Transport interface {
	// Get issues a GET and decodes the envelope's data into out.
	// The returned meta is nil for non-list endpoints.
	Get(ctx context.Context, path string, query url.Values, out any) (*blog.Meta, error)

	// Post issues a POST with a JSON body, decoding data into out
	// when out is non-nil.
	Post(ctx context.Context, path string, body, out any) error

	// Patch issues a PATCH with a JSON body, decoding data into out
	// when out is non-nil.
	Patch(ctx context.Context, path string, body, out any) error

	// Delete issues a DELETE.
	Delete(ctx context.Context, path string) error
}

// Client implements Transport against a real Quill API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	sessions   SessionSource
	validate   *validator.Validate
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionSource attaches a session source; requests carry its
// token when present.
func WithSessionSource(s SessionSource) Option {
	return func(c *Client) { c.sessions = s }
}

// WithRateLimit caps outgoing requests per second. Zero or negative
// disables the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		} else {
			c.limiter = nil
		}
	}
}

// WithLogger sets the structured logger for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session, or nil when unauthenticated.
func (c *Client) Session() *Session {
	if c.sessions == nil {
		return nil
	}
	return c.sessions.Current()
}

// Actor returns the current session as a permission-evaluator actor.
func (c *Client) Actor() *blog.Actor {
	return c.Session().Actor()
}

// -----------------------------------------------------------------------------
// Verbs
// -----------------------------------------------------------------------------

// Get implements Transport.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) (*blog.Meta, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post implements Transport.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPost, path, nil, body, out)
	return err
}

// Patch implements Transport.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.do(ctx, http.MethodPatch, path, nil, body, out)
	return err
}

// Delete implements Transport.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil, nil)
	return err
}

// do runs one request through the full pipeline: rate limit, request
// id, auth header, envelope decode, error mapping.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (*blog.Meta, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
				Message: "rate limiter interrupted", Err: err}
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
				Message: "encode request body", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
			Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if sess := c.Session(); sess != nil {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			"method", method, "path", path, "request_id", requestID, "error", err)
		return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
			Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
			Status: resp.StatusCode, Message: "read response", Err: err}
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 400 {
				// Non-JSON error body; classify by status alone.
				return nil, &Error{Kind: kindForStatus(resp.StatusCode), Method: method,
					Path: path, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
				Status: resp.StatusCode, Message: "decode response envelope", Err: err}
		}
	}

	if resp.StatusCode >= 400 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Kind: kindForStatus(resp.StatusCode), Method: method,
			Path: path, Status: resp.StatusCode, Message: msg}
	}

	if len(raw) > 0 && !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "the API reported a failure"
		}
		return nil, &Error{Kind: ErrKindServer, Method: method, Path: path,
			Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, &Error{Kind: ErrKindTransport, Method: method, Path: path,
				Status: resp.StatusCode, Message: "decode response data", Err: err}
		}
	}
	return env.Meta, nil
}

// maxResponseBytes bounds response reads. At the default feed limit a
// page is a few kilobytes; anything near this cap is a broken server.
const maxResponseBytes = 8 << 20

// checkPayload validates an input struct, translating validator
// failures into the local validation error kind.
func (c *Client) checkPayload(in any) error {
	if err := c.validate.Struct(in); err != nil {
		msg := "invalid payload"
		var fields validator.ValidationErrors
		if ok := asValidationErrors(err, &fields); ok && len(fields) > 0 {
			msg = fmt.Sprintf("invalid %s", strings.ToLower(fields[0].Field()))
		}
		return validationError(msg, err)
	}
	return nil
}

// asValidationErrors is errors.As without the import-shadowing
// awkwardness at the call site.
func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		*target = verrs
		return true
	}
	return false
}
