// Package rpctest provides an in-process JSON-RPC gateway for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jrsteele09/go-gateway-bridge/rpc"
)

// Handler answers one method. Returning a non-nil *rpc.Error sends it as the
// error member instead of a result.
type Handler func(ctx context.Context, params json.RawMessage) (any, *rpc.Error)

// RecordedRequest is one request the gateway received.
type RecordedRequest struct {
	Header http.Header
	Body   []byte
	ID     int64
	Method string
	Params json.RawMessage
}

type contextKey string

// ContextKeyToken holds the bearer token of the request being handled.
const ContextKeyToken contextKey = "bearer_token"

// Server is a gateway that requires a bearer token and dispatches JSON-RPC
// methods to registered handlers.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	methods  map[string]Handler
	accepted map[string]bool
	status   int
	idFunc   func(requestID int64) any
	requests []RecordedRequest
}

// NewServer starts a gateway that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{methods: map[string]Handler{}}
	s.Server = httptest.NewServer(ChainMiddleware(s.serveRPC, s.RecordMiddleware, s.RequireBearer))
	t.Cleanup(s.Close)
	return s
}

// Handle registers h for method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = h
}

// HandleResult registers a method that always answers result.
func (s *Server) HandleResult(method string, result any) {
	s.Handle(method, func(context.Context, json.RawMessage) (any, *rpc.Error) {
		return result, nil
	})
}

// HandleError registers a method that always answers with a JSON-RPC error.
func (s *Server) HandleError(method string, code int, message string) {
	s.Handle(method, func(context.Context, json.RawMessage) (any, *rpc.Error) {
		return nil, &rpc.Error{Code: code, Message: message}
	})
}

// AcceptTokens restricts the bearer tokens the gateway accepts. With none set,
// any non-empty token is accepted.
func (s *Server) AcceptTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = map[string]bool{}
	for _, tok := range tokens {
		s.accepted[tok] = true
	}
}

// FailWith makes every request answer with the given HTTP status. Zero resets it.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// RespondWithID overrides the id written into responses.
func (s *Server) RespondWithID(idFunc func(requestID int64) any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idFunc = idFunc
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// RecordMiddleware stores the request and honours FailWith.
func (s *Server) RecordMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		_ = json.Unmarshal(body, &req)

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Header: r.Header.Clone(),
			Body:   body,
			ID:     req.ID,
			Method: req.Method,
			Params: req.Params,
		})
		status := s.status
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next(w, r)
	}
}

// RequireBearer rejects requests without an accepted Bearer token.
func (s *Server) RequireBearer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error":"unauthorized","error_description":"Missing Authorization header"}`, http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			http.Error(w, `{"error":"unauthorized","error_description":"Invalid Authorization header format"}`, http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		ok := len(s.accepted) == 0 || s.accepted[parts[1]]
		s.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"unauthorized","error_description":"Invalid token"}`, http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyToken, parts[1])))
	}
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      int64           `json:"id"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{
			"jsonrpc": rpc.Version,
			"id":      nil,
			"error":   rpc.Error{Code: rpc.ParseError, Message: "Parse error"},
		})
		return
	}

	s.mu.Lock()
	h, found := s.methods[req.Method]
	idFunc := s.idFunc
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": rpc.Version, "id": req.ID}
	if idFunc != nil {
		resp["id"] = idFunc(req.ID)
	}

	switch {
	case req.JSONRPC != rpc.Version:
		resp["error"] = rpc.Error{Code: rpc.InvalidRequest, Message: "Invalid Request"}
	case !found:
		resp["error"] = rpc.Error{Code: rpc.MethodNotFound, Message: "Method not found"}
	default:
		result, rpcErr := h(r.Context(), req.Params)
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
