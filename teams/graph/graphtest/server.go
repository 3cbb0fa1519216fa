// Package graphtest provides an in-process fake of the Microsoft Graph endpoints used by the Teams tools.
package graphtest

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Call is one request received by the fake.
type Call struct {
	Method string
	Path   string
	Query  map[string]string
	Auth   string
	Body   map[string]interface{}
}

// Route returns "METHOD /path".
func (c Call) Route() string { return c.Method + " " + c.Path }

// Server routes requests by "METHOD /path" and records every call.
type Server struct {
	*httptest.Server
	mu     sync.Mutex
	calls  []Call
	routes map[string]http.HandlerFunc
}

// New starts a fake Graph server; callers must Close it.
func New() *Server {
	s := &Server{routes: map[string]http.HandlerFunc{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Handle registers h for method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = h
}

// JSON registers a canned JSON response.
func (s *Server) JSON(method, path string, status int, body interface{}) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// Error registers a canned Graph error envelope.
func (s *Server) Error(method, path string, status int, code, message string) {
	s.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, status, code, message)
	})
}

// Calls returns a snapshot of received calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Routes returns received calls as "METHOD /path" in order.
func (s *Server) Routes() []string {
	var ret []string
	for _, c := range s.Calls() {
		ret = append(ret, c.Route())
	}
	return ret
}

// LastBody returns the decoded body of the last call to method+path.
func (s *Server) LastBody(method, path string) map[string]interface{} {
	calls := s.Calls()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Method == method && calls[i].Path == path {
			return calls[i].Body
		}
	}
	return nil
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	call := Call{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Query: map[string]string{}}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			call.Query[k] = v[0]
		}
	}
	if body := readBody(r); len(body) > 0 {
		_ = json.Unmarshal(body, &call.Body)
	}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	h := s.routes[call.Route()]
	s.mu.Unlock()
	if h == nil {
		WriteError(w, http.StatusNotFound, "itemNotFound", fmt.Sprintf("no route for %s", call.Route()))
		return
	}
	h(w, r)
}

// readBody returns the request body, inflating gzip-compressed payloads.
func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	var reader io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil
		}
		defer gz.Close()
		reader = gz
	}
	data, _ := io.ReadAll(reader)
	return data
}

// WriteJSON writes body as application/json with status.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes a Graph error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": message},
	})
}
