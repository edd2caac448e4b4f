// Package directorytest runs an in-process fake of the driver directory and
// company document store for tests.
package directorytest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const documentsPrefix = "/documents/"

// Server is a fake directory. The driver tree is served under
// {URL}/{path}.json and company documents under {URL}/documents/{path}.
type Server struct {
	srv    *httptest.Server
	apiKey string

	mu       sync.Mutex
	tree     map[string]any
	docs     map[string]json.RawMessage
	status   int
	delay    time.Duration
	requests map[string]int
}

// New starts a fake that requires apiKey on driver-tree requests when non-empty.
func New(apiKey string) *Server {
	s := &Server{
		apiKey:   apiKey,
		tree:     map[string]any{},
		docs:     map[string]json.RawMessage{},
		requests: map[string]int{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Close stops the server.
func (s *Server) Close() { s.srv.Close() }

// DatabaseURL is the base URL of the driver tree.
func (s *Server) DatabaseURL() string { return s.srv.URL }

// DocumentsURL is the base URL of the document store.
func (s *Server) DocumentsURL() string { return s.srv.URL + strings.TrimSuffix(documentsPrefix, "/") }

// FailWith makes every request answer with status. Zero restores normal service.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Delay holds every response for d before answering.
func (s *Server) Delay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns how many requests reached path, for example
// "drivers/approved/abc" or "documents/companies/acme".
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[strings.Trim(path, "/")]
}

// Put stores value at a slash-separated path in the driver tree.
func (s *Server) Put(path string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(splitPath(path), normalize(value))
}

// Remove deletes the subtree at path.
func (s *Server) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := splitPath(path)
	if len(parts) == 0 {
		s.tree = map[string]any{}
		return
	}
	parent := s.walk(parts[:len(parts)-1], false)
	if parent != nil {
		delete(parent, parts[len(parts)-1])
	}
}

// Value returns the decoded value at path, or nil.
func (s *Server) Value(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(splitPath(path))
}

// PendingKeys lists generated keys under drivers/pending.
func (s *Server) PendingKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, _ := s.get(splitPath("drivers/pending")).(map[string]any)
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	return keys
}

// PutCompany stores a company document whose fields are already typed
// values, see String and Strings.
func (s *Server) PutCompany(id string, fields map[string]any) {
	data, _ := json.Marshal(map[string]any{
		"name":   "companies/" + id,
		"fields": fields,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs["companies/"+id] = data
}

// RemoveCompany deletes a company document.
func (s *Server) RemoveCompany(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, "companies/"+id)
}

// String wraps v as a typed string value.
func String(v string) map[string]any {
	return map[string]any{"stringValue": v}
}

// Strings wraps vs as a typed array of strings.
func Strings(vs ...string) map[string]any {
	values := make([]any, 0, len(vs))
	for _, v := range vs {
		values = append(values, String(v))
	}
	return map[string]any{"arrayValue": map[string]any{"values": values}}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, delay := s.status, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if strings.HasPrefix(r.URL.Path, documentsPrefix) {
		s.count(strings.TrimPrefix(r.URL.Path, "/"))
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		s.handleDocument(w, r)
		return
	}

	path := strings.TrimSuffix(strings.Trim(r.URL.Path, "/"), ".json")
	s.count(path)
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if s.apiKey != "" && r.URL.Query().Get("auth") != s.apiKey {
		http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		v := s.get(splitPath(path))
		s.mu.Unlock()
		writeJSON(w, v)
	case http.MethodPost:
		var body any
		if !decodeBody(w, r, &body) {
			return
		}
		key := uuid.NewString()
		s.mu.Lock()
		s.put(append(splitPath(path), key), body)
		s.mu.Unlock()
		writeJSON(w, map[string]string{"name": key})
	case http.MethodPatch:
		var body map[string]any
		if !decodeBody(w, r, &body) {
			return
		}
		s.mu.Lock()
		node := s.walk(splitPath(path), true)
		for k, v := range body {
			node[k] = v
		}
		s.mu.Unlock()
		writeJSON(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	key := strings.Trim(strings.TrimPrefix(r.URL.Path, documentsPrefix), "/")
	s.mu.Lock()
	doc, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		http.Error(w, `{"error":{"code":404,"status":"NOT_FOUND"}}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

func (s *Server) count(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[strings.Trim(path, "/")]++
}

func (s *Server) get(parts []string) any {
	var cur any = s.tree
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[p]
		if !ok {
			return nil
		}
	}
	return cur
}

func (s *Server) put(parts []string, value any) {
	if len(parts) == 0 {
		if m, ok := value.(map[string]any); ok {
			s.tree = m
		}
		return
	}
	parent := s.walk(parts[:len(parts)-1], true)
	parent[parts[len(parts)-1]] = value
}

// walk descends to the map at parts, creating maps when create is set.
func (s *Server) walk(parts []string, create bool) map[string]any {
	cur := s.tree
	for _, p := range parts {
		next, ok := cur[p].(map[string]any)
		if !ok {
			if !create {
				return nil
			}
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	return cur
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// normalize round-trips v through JSON so stored values match what a
// decoded request body would hold.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil || json.Unmarshal(data, into) != nil {
		http.Error(w, `{"error":"Invalid data"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
