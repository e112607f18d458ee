// Package factory implements a reference-counted, type-dispatched resource
// cache. Named binary assets are loaded from one of several transports
// (in-memory archive, remote HTTP endpoint, local filesystem), materialized
// into typed objects via per-extension handlers, and interned so that the
// same canonical name always yields the same in-memory instance. Resources
// can be reloaded in place while live, with registered observers notified
// after every successful reload.
//
// A factory is owned by a single goroutine. All operations, including
// Update, must be serialized by the caller; the factory takes no internal
// locks.
package factory

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kilnworks/kiln/internal/archive"
)

// Flags toggle optional factory features.
type Flags uint32

const (
	// FlagReloadSupport keeps the hash-to-filename table needed to reload
	// resources after they have been acquired.
	FlagReloadSupport Flags = 1 << iota

	// FlagHTTPServer starts the embedded introspection server. Implies
	// FlagReloadSupport.
	FlagHTTPServer
)

// DefaultHTTPServerPort is where the introspection server listens unless
// overridden.
const DefaultHTTPServerPort = 8001

// NewFactoryParams configures a factory. The zero value is not usable;
// start from DefaultNewFactoryParams.
type NewFactoryParams struct {
	// MaxResources is the capacity hint for the intern tables.
	MaxResources int

	// StreamBufferSize is the fixed size of the shared load buffer. A
	// resource that does not fit fails to load with ErrStreamBufferTooSmall.
	StreamBufferSize int

	Flags Flags

	// HTTPServerPort overrides the introspection server port. Zero or
	// negative values select an ephemeral port.
	HTTPServerPort int

	// BuiltinsArchive is an optional archive blob consulted before any
	// other transport. The buffer is owned by the caller and must outlive
	// the factory.
	BuiltinsArchive []byte

	// Logger defaults to a no-op logger when nil.
	Logger *zap.Logger
}

// DefaultNewFactoryParams returns the stock configuration: 1024 resources,
// a 4 MiB stream buffer, no optional features.
func DefaultNewFactoryParams() NewFactoryParams {
	return NewFactoryParams{
		MaxResources:     1024,
		StreamBufferSize: 4 * 1024 * 1024,
		HTTPServerPort:   DefaultHTTPServerPort,
	}
}

// Descriptor is the interned record for a loaded resource.
type Descriptor struct {
	// NameHash is the 64-bit hash of the canonical path.
	NameHash uint64

	// Resource is the typed object installed by the create callback. Its
	// identity is stable for as long as the descriptor is interned.
	Resource any

	// Type links back to the registry entry that created the resource.
	Type TypeID

	// ReferenceCount is at least 1 while the descriptor is interned.
	ReferenceCount uint32

	// Filename is the canonical path. Only populated when reload support
	// is enabled.
	Filename string
}

// uriParts is the decomposed construction URI.
type uriParts struct {
	scheme string
	host   string
	path   string
}

// Factory is the resource cache. Create one with New.
type Factory struct {
	uid    string
	logger *zap.Logger

	uri uriParts

	types []resourceType

	byHash         map[uint64]*Descriptor
	byAddress      map[any]uint64
	hashToFilename map[uint64]string
	observers      []reloadObserver

	// streamBuffer holds StreamBufferSize+1 bytes. The extra byte is a
	// guaranteed trailing NUL so handlers may treat content as text.
	streamBuffer     []byte
	streamBufferSize int

	httpClient *http.Client
	httpBase   string

	// State of the HTTP GET in flight, reset per load.
	httpContentLength int64
	httpBytesStreamed int
	httpStatus        int
	httpLastResult    error

	builtins *archive.Archive
	server   *server
}

// New creates a factory rooted at uri. Supported schemes are "http", which
// loads resources from a remote endpoint, and "file", which loads from the
// local filesystem. The path component of the URI becomes the base under
// which every resource name is canonicalized.
func New(params NewFactoryParams, rawURI string) (*Factory, error) {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parsing uri %q: %w", rawURI, err)
	}

	f := &Factory{
		uid:    uuid.New().String(),
		logger: logger,
		uri: uriParts{
			scheme: u.Scheme,
			host:   u.Host,
			path:   u.Path,
		},
		byHash:           make(map[uint64]*Descriptor, params.MaxResources),
		byAddress:        make(map[any]uint64, params.MaxResources),
		streamBuffer:     make([]byte, params.StreamBufferSize+1),
		streamBufferSize: params.StreamBufferSize,
	}

	switch u.Scheme {
	case "http":
		f.httpClient = &http.Client{}
		f.httpBase = "http://" + u.Host
		f.uri.path = strings.TrimSuffix(u.Path, "/")
	case "file":
		// Local filesystem, nothing to construct.
	default:
		return nil, fmt.Errorf("invalid uri %q: unsupported scheme %q", rawURI, u.Scheme)
	}

	if params.BuiltinsArchive != nil {
		f.builtins, err = archive.Wrap(params.BuiltinsArchive)
		if err != nil {
			return nil, fmt.Errorf("wrapping builtins archive: %w", err)
		}
	}

	flags := params.Flags
	if flags&FlagHTTPServer != 0 {
		// The introspection server depends on the filename table.
		flags |= FlagReloadSupport
	}

	if flags&FlagReloadSupport != 0 {
		f.hashToFilename = make(map[uint64]string, params.MaxResources)
	}

	if flags&FlagHTTPServer != 0 {
		srv, err := newServer(f, params.HTTPServerPort, logger)
		if err != nil {
			logger.Warn("unable to start introspection server",
				zap.Int("port", params.HTTPServerPort),
				zap.Error(err),
			)
		} else {
			f.server = srv
		}
	}

	return f, nil
}

// UID returns the factory's instance identifier, stamped at construction.
func (f *Factory) UID() string {
	return f.uid
}

// Close stops the embedded introspection server and releases transport
// resources. Interned descriptors are not destroyed; callers are expected
// to have released every resource they acquired.
func (f *Factory) Close() error {
	if f.server != nil {
		f.server.shutdown()
		f.server = nil
	}
	if f.httpClient != nil {
		f.httpClient.CloseIdleConnections()
	}
	return nil
}

// Update drains introspection requests that arrived since the last call.
// It is the only point where reload side effects enter the factory, so the
// owning goroutine must call it regularly when the embedded server is
// enabled. Without the server it is a no-op.
func (f *Factory) Update() {
	if f.server != nil {
		f.server.drain()
	}
}

// Get acquires the resource called name. A repeated Get of the same
// canonical name returns the same object and bumps its reference count; the
// first Get loads the bytes through the transport chain and dispatches to
// the handler registered for the name's extension. Every successful Get
// must be paired with a Release.
func (f *Factory) Get(name string) (any, error) {
	canonical := canonicalPath(f.uri.path, name)
	h := nameHash(canonical)

	if rd, ok := f.byHash[h]; ok {
		if _, ok := f.byAddress[rd.Resource]; !ok {
			panic("factory: interned resource missing from address index")
		}
		rd.ReferenceCount++
		return rd.Resource, nil
	}

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		f.logger.Warn("unable to load resource: missing file extension",
			zap.String("name", name))
		return nil, ErrMissingFileExtension
	}
	ext := name[dot+1:]

	id := f.findType(ext)
	if id == 0 {
		f.logger.Error("unknown resource type", zap.String("extension", ext))
		return nil, ErrUnknownResourceType
	}
	rt := f.typeByID(id)

	size, err := f.loadResource(canonical, name)
	if err != nil {
		return nil, err
	}

	rd := &Descriptor{
		NameHash:       h,
		Type:           id,
		ReferenceCount: 1,
	}
	if err := rt.create(f, rt.context, f.streamBuffer[:size], rd, name); err != nil {
		f.logger.Warn("unable to create resource",
			zap.String("path", canonical),
			zap.Error(err),
		)
		return nil, factoryResultFor(err)
	}
	if rd.Resource == nil {
		panic("factory: create callback did not set the resource")
	}

	// Either every table reflects the new descriptor or none does; the
	// create callback was the last fallible step.
	f.byHash[h] = rd
	f.byAddress[rd.Resource] = h
	if f.hashToFilename != nil {
		rd.Filename = canonical
		f.hashToFilename[h] = canonical
	}

	return rd.Resource, nil
}

// Release drops one reference to an acquired resource. When the last
// reference goes away the handler's destroy callback runs and the
// descriptor is removed from every table. Releasing a handle this factory
// never handed out is a programming error and panics.
func (f *Factory) Release(resource any) {
	h, ok := f.byAddress[resource]
	if !ok {
		panic("factory: releasing a resource that was never acquired")
	}

	rd := f.byHash[h]
	if rd == nil || rd.ReferenceCount == 0 {
		panic("factory: resource tables out of sync")
	}
	rd.ReferenceCount--

	if rd.ReferenceCount == 0 {
		// Destroy before erasing so the callback can still read the
		// descriptor.
		rt := f.typeByID(rd.Type)
		rt.destroy(f, rt.context, rd)

		delete(f.byAddress, resource)
		delete(f.byHash, h)
		if f.hashToFilename != nil {
			delete(f.hashToFilename, h)
		}
	}
}

// GetDescriptor returns a copy of the interned descriptor for name, or
// ErrNotLoaded if the name has not been acquired. Intended for tooling.
func (f *Factory) GetDescriptor(name string) (Descriptor, error) {
	canonical := canonicalPath(f.uri.path, name)
	h := nameHash(canonical)

	rd, ok := f.byHash[h]
	if !ok {
		return Descriptor{}, ErrNotLoaded
	}
	return *rd, nil
}
