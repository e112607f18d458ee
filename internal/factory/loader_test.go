package factory

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kilnworks/kiln/internal/archive"
)

// buildArchive serialises entries into an archive blob.
func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := archive.Write(&buf, entries); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return buf.Bytes()
}

func TestArchiveShadowsFilesystem(t *testing.T) {
	dir := t.TempDir()
	params := DefaultNewFactoryParams()
	params.BuiltinsArchive = buildArchive(t, map[string][]byte{
		"a.txt": []byte("embedded"),
	})

	f, err := New(params, "file://"+dir)
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	defer f.Close()

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	// A different file exists on disk under the same name; the archive
	// must win.
	writeFile(t, dir, "a.txt", "on disk")

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Release(r)

	if got := r.(*blob).content; got != "embedded" {
		t.Errorf("content = %q, want %q", got, "embedded")
	}
}

func TestArchiveMissFallsThrough(t *testing.T) {
	dir := t.TempDir()
	params := DefaultNewFactoryParams()
	params.BuiltinsArchive = buildArchive(t, map[string][]byte{
		"other.txt": []byte("embedded"),
	})

	f, err := New(params, "file://"+dir)
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	defer f.Close()

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}
	writeFile(t, dir, "a.txt", "on disk")

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Release(r)

	if got := r.(*blob).content; got != "on disk" {
		t.Errorf("content = %q, want %q", got, "on disk")
	}
}

func TestArchiveEntryTooLarge(t *testing.T) {
	params := DefaultNewFactoryParams()
	params.StreamBufferSize = 8
	params.BuiltinsArchive = buildArchive(t, map[string][]byte{
		"big.txt": []byte("sixteen bytes!!!"),
	})

	f, err := New(params, "file://"+t.TempDir())
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	defer f.Close()

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	if _, err := f.Get("big.txt"); err != ErrStreamBufferTooSmall {
		t.Fatalf("Get = %v, want ErrStreamBufferTooSmall", err)
	}
}

// newHTTPFactory creates a factory whose transport is a stub HTTP server
// rooted at /data.
func newHTTPFactory(t *testing.T, params NewFactoryParams, handler http.Handler) *Factory {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := New(params, srv.URL+"/data")
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestHTTPTransport(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/a.txt" {
			w.Write([]byte("from http"))
			return
		}
		http.NotFound(w, r)
	})

	f := newHTTPFactory(t, DefaultNewFactoryParams(), handler)
	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Release(r)

	if got := r.(*blob).content; got != "from http" {
		t.Errorf("content = %q, want %q", got, "from http")
	}

	if _, err := f.Get("missing.txt"); err != ErrResourceNotFound {
		t.Fatalf("404 mapped to %v, want ErrResourceNotFound", err)
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	f := newHTTPFactory(t, DefaultNewFactoryParams(), handler)
	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	if _, err := f.Get("a.txt"); err != ErrIO {
		t.Fatalf("500 mapped to %v, want ErrIO", err)
	}
}

func TestHTTPTransportOverflow(t *testing.T) {
	big := strings.Repeat("x", 64)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(big))
	})

	params := DefaultNewFactoryParams()
	params.StreamBufferSize = 16
	f := newHTTPFactory(t, params, handler)
	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	if _, err := f.Get("a.txt"); err != ErrStreamBufferTooSmall {
		t.Fatalf("oversized body mapped to %v, want ErrStreamBufferTooSmall", err)
	}
}

func TestArchiveMissThenHTTP(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/data/a.txt" {
			w.Write([]byte("from http"))
			return
		}
		http.NotFound(w, r)
	})

	params := DefaultNewFactoryParams()
	params.BuiltinsArchive = buildArchive(t, map[string][]byte{
		"other.txt": []byte("embedded"),
	})
	f := newHTTPFactory(t, params, handler)
	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Release(r)

	if got := r.(*blob).content; got != "from http" {
		t.Errorf("content = %q, want %q", got, "from http")
	}
}

func TestLoaderNulTerminates(t *testing.T) {
	f, dir := newFileFactory(t, 0)
	writeFile(t, dir, "a.txt", "hello")

	// The byte after the content must be NUL whatever was in the buffer
	// before.
	capture := func(fa *Factory, ctx any, data []byte, rd *Descriptor, name string) error {
		full := fa.streamBuffer
		if full[len(data)] != 0 {
			t.Errorf("byte after content = %d, want NUL", full[len(data)])
		}
		rd.Resource = &blob{content: string(data)}
		return nil
	}
	if err := f.RegisterType("txt", nil, capture, destroyBlob, nil); err != nil {
		t.Fatalf("registering type: %v", err)
	}

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	f.Release(r)
}
