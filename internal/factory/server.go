package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kilnworks/kiln/pkg/api"
)

// server is the embedded introspection endpoint. HTTP handlers run on the
// net/http goroutines, but the factory itself is single-owner: every
// handler that touches factory state packages its work as a job and waits
// for the owning goroutine to execute it inside Factory.Update.
type server struct {
	factory  *Factory
	logger   *zap.Logger
	router   *mux.Router
	http     *http.Server
	listener net.Listener

	jobs chan func()
	quit chan struct{}
}

func newServer(f *Factory, port int, logger *zap.Logger) (*server, error) {
	s := &server{
		factory: f,
		logger:  logger,
		router:  mux.NewRouter(),
		jobs:    make(chan func(), 16),
		quit:    make(chan struct{}),
	}

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.router.HandleFunc("/api/v1/resources", s.handleResources).Methods("GET")
	s.router.PathPrefix("/reload/").HandlerFunc(s.handleReload).Methods("GET")
	s.router.HandleFunc("/", s.handleStatus).Methods("GET")

	if port < 0 {
		port = 0
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, err
	}
	s.listener = ln

	s.http = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("introspection server error", zap.Error(err))
		}
	}()

	logger.Info("introspection server listening",
		zap.String("addr", ln.Addr().String()))
	return s, nil
}

// addr returns the listen address, useful when the port was ephemeral.
func (s *server) addr() string {
	return s.listener.Addr().String()
}

// ServerAddr returns the introspection server's listen address, or the
// empty string when the server is not running.
func (f *Factory) ServerAddr() string {
	if f.server == nil {
		return ""
	}
	return f.server.addr()
}

// call hands fn to the factory-owner goroutine and blocks until Update has
// executed it. Returns false if the server shut down first.
func (s *server) call(fn func()) bool {
	done := make(chan struct{})
	job := func() {
		fn()
		close(done)
	}

	select {
	case s.jobs <- job:
	case <-s.quit:
		return false
	}

	select {
	case <-done:
		return true
	case <-s.quit:
		return false
	}
}

// drain executes every job the server has ready. Runs on the factory-owner
// goroutine, from Factory.Update.
func (s *server) drain() {
	for {
		select {
		case fn := <-s.jobs:
			fn()
		default:
			return
		}
	}
}

func (s *server) shutdown() {
	close(s.quit)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("introspection server shutdown error", zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// writeJSON serialises data as JSON and writes it to the response.
func (s *server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.Health{
		Status: "ok",
		UID:    s.factory.uid,
		Root:   s.factory.uri.path,
	})
}

// handleStatus renders the interned resources as an HTML table with one
// row per resource: filename and reference count.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	ok := s.call(func() {
		f := s.factory
		if f.hashToFilename == nil {
			return
		}

		b.WriteString("<table>")
		b.WriteString("<td><b>Filename</b></td><td><b>Reference count</b></td><tr/>")
		for _, row := range f.snapshot() {
			fmt.Fprintf(&b, "<td>%s<td>%d<tr/>", row.Filename, row.ReferenceCount)
		}
		b.WriteString("</table>")
	})
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(b.String()))
}

func (s *server) handleResources(w http.ResponseWriter, r *http.Request) {
	var resources []api.ResourceInfo
	ok := s.call(func() {
		resources = s.factory.snapshot()
	})
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, resources)
}

// handleReload triggers an in-place reload of the named resource. The
// response body is intentionally empty; the outcome is carried in the log.
func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/reload/")

	ok := s.call(func() {
		rd, err := s.factory.ReloadResource(name)
		s.logReloadResult(name, rd, err)
	})
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	}
}

func (s *server) logReloadResult(name string, rd *Descriptor, err error) {
	switch err {
	case nil:
		s.logger.Info("resource reloaded", zap.String("name", name))
	case ReloadOutOfMemory:
		s.logger.Error("not enough memory to reload resource", zap.String("name", name))
	case ReloadFormatError, ReloadConstantError:
		s.logger.Error("resource has invalid format and could not be reloaded",
			zap.String("name", name))
	case ReloadNotFound:
		s.logger.Error("resource was never loaded, nothing to reload",
			zap.String("name", name))
	case ReloadLoadError:
		s.logger.Error("resource could not be loaded, reload failed",
			zap.String("name", name))
	case ReloadNotSupported:
		ext, _ := s.factory.GetExtensionFromType(rd.Type)
		s.logger.Warn("reload not supported for resource type",
			zap.String("name", name),
			zap.String("extension", ext))
	default:
		s.logger.Warn("resource could not be reloaded: unknown error",
			zap.String("name", name),
			zap.Error(err))
	}
}

// snapshot flattens the intern tables into wire form, ordered by filename.
// Must run on the factory-owner goroutine.
func (f *Factory) snapshot() []api.ResourceInfo {
	resources := make([]api.ResourceInfo, 0, len(f.hashToFilename))
	for h, filename := range f.hashToFilename {
		rd := f.byHash[h]
		if rd == nil {
			panic("factory: filename table out of sync")
		}
		ext, _ := f.GetExtensionFromType(rd.Type)
		resources = append(resources, api.ResourceInfo{
			Filename:       filename,
			Extension:      ext,
			ReferenceCount: rd.ReferenceCount,
		})
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].Filename < resources[j].Filename
	})
	return resources
}
