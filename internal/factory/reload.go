package factory

import (
	"reflect"

	"go.uber.org/zap"
)

// maxReloadObservers caps the observer registry.
const maxReloadObservers = 16

// ReloadObserver is notified synchronously after every successful reload,
// on the goroutine that invoked ReloadResource.
type ReloadObserver func(userData any, rd *Descriptor, name string)

type reloadObserver struct {
	callback ReloadObserver
	userData any
}

// ReloadResource loads name again through the transport chain and asks the
// handler to recreate the typed object in place. The object's identity is
// preserved, so every previously acquired reference observes the new
// content. The returned descriptor is non-nil whenever the name resolves
// to an interned resource, even if the reload itself failed.
func (f *Factory) ReloadResource(name string) (*Descriptor, error) {
	canonical := canonicalPath(f.uri.path, name)
	h := nameHash(canonical)

	rd, ok := f.byHash[h]
	if !ok {
		return nil, ReloadNotFound
	}

	rt := f.typeByID(rd.Type)
	if rt.recreate == nil {
		return rd, ReloadNotSupported
	}

	size, err := f.loadResource(canonical, name)
	if err != nil {
		return rd, ReloadLoadError
	}

	if err := rt.recreate(f, rt.context, f.streamBuffer[:size], rd, name); err != nil {
		return rd, reloadResultFor(err)
	}

	// Observers fire in registration order, exactly once each.
	for _, o := range f.observers {
		o.callback(o.userData, rd, name)
	}
	return rd, nil
}

// RegisterReloadObserver adds a (callback, userData) pair to the observer
// list. A full registry logs a warning and drops the registration. No-op
// when reload support is disabled.
func (f *Factory) RegisterReloadObserver(callback ReloadObserver, userData any) {
	if f.hashToFilename == nil {
		return
	}
	if len(f.observers) == maxReloadObservers {
		f.logger.Warn("reload observer dropped: registry is full",
			zap.Int("capacity", maxReloadObservers))
		return
	}
	f.observers = append(f.observers, reloadObserver{callback: callback, userData: userData})
}

// UnregisterReloadObserver removes every pair matching both the callback
// and the user data. Iteration is erase-swap, so relative order of the
// remaining observers may change.
func (f *Factory) UnregisterReloadObserver(callback ReloadObserver, userData any) {
	if f.hashToFilename == nil {
		return
	}
	ptr := reflect.ValueOf(callback).Pointer()
	for i := 0; i < len(f.observers); {
		o := f.observers[i]
		if reflect.ValueOf(o.callback).Pointer() == ptr && o.userData == userData {
			last := len(f.observers) - 1
			f.observers[i] = f.observers[last]
			f.observers = f.observers[:last]
		} else {
			i++
		}
	}
}
