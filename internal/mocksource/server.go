// Package mocksource serves fiscal-year CSVs the way the published release
// does, plus the orchestration health endpoint, for local runs and tests.
package mocksource

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// Call records a request made to the mock server.
type Call struct {
	Method string
	Path   string
}

// Server serves <dataDir>/<name>.csv.gz as-is and <dataDir>/<name>.csv
// gzipped on the fly when requested as <name>.csv.gz.
type Server struct {
	dataDir string

	mu       sync.Mutex
	calls    []Call
	failNext int
	healthy  bool
}

// New constructs a new mock server rooted at dataDir.
func New(dataDir string) *Server {
	return &Server{dataDir: dataDir, healthy: true}
}

// Handler returns an http.Handler that serves the mock endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.handleHealth)
	mux.HandleFunc("/", s.handleFile)
	return mux
}

// FailNext makes the next n file requests answer 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// SetHealthy controls the /api status code (200 when healthy, 503 otherwise).
func (s *Server) SetHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = ok
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	s.mu.Lock()
	ok := s.healthy
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.recordCall(r)
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()
	if fail {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	name := path.Base(r.URL.Path)
	if !strings.HasSuffix(name, ".csv.gz") {
		http.NotFound(w, r)
		return
	}

	if b, err := os.ReadFile(filepath.Join(s.dataDir, name)); err == nil {
		writeGzip(w, b)
		return
	}
	plain, err := os.ReadFile(filepath.Join(s.dataDir, strings.TrimSuffix(name, ".gz")))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := zw.Close(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeGzip(w, buf.Bytes())
}

func writeGzip(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/gzip")
	_, _ = w.Write(b)
}
