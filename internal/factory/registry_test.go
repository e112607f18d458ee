package factory

import (
	"fmt"
	"testing"
)

func newBareFactory(t *testing.T) *Factory {
	t.Helper()
	f, err := New(DefaultNewFactoryParams(), "file:///tmp/kiln-test")
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRegisterType(t *testing.T) {
	f := newBareFactory(t)

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}

	if id := f.findType("txt"); id == 0 {
		t.Error("registered extension not found")
	}
	if id := f.findType("bin"); id != 0 {
		t.Errorf("unregistered extension found: %d", id)
	}
}

func TestRegisterTypeInvalid(t *testing.T) {
	f := newBareFactory(t)

	// Dots not allowed in extension.
	if err := f.RegisterType("tar.gz", nil, createBlob, destroyBlob, nil); err != ErrInvalid {
		t.Errorf("dotted extension: got %v, want ErrInvalid", err)
	}
	if err := f.RegisterType("txt", nil, nil, destroyBlob, nil); err != ErrInvalid {
		t.Errorf("nil create: got %v, want ErrInvalid", err)
	}
	if err := f.RegisterType("txt", nil, createBlob, nil, nil); err != ErrInvalid {
		t.Errorf("nil destroy: got %v, want ErrInvalid", err)
	}
}

func TestRegisterTypeDuplicate(t *testing.T) {
	f := newBareFactory(t)

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("first RegisterType: %v", err)
	}
	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != ErrAlreadyRegistered {
		t.Fatalf("duplicate RegisterType: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterTypeFull(t *testing.T) {
	f := newBareFactory(t)

	for i := 0; i < MaxResourceTypes; i++ {
		ext := fmt.Sprintf("e%d", i)
		if err := f.RegisterType(ext, nil, createBlob, destroyBlob, nil); err != nil {
			t.Fatalf("RegisterType(%s): %v", ext, err)
		}
	}
	if err := f.RegisterType("overflow", nil, createBlob, destroyBlob, nil); err != ErrOutOfResources {
		t.Fatalf("full registry: got %v, want ErrOutOfResources", err)
	}
}

func TestTypeLookups(t *testing.T) {
	f := newBareFactory(t)

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if err := f.RegisterType("json", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}

	id, err := f.GetTypeFromExtension("json")
	if err != nil {
		t.Fatalf("GetTypeFromExtension: %v", err)
	}
	ext, err := f.GetExtensionFromType(id)
	if err != nil {
		t.Fatalf("GetExtensionFromType: %v", err)
	}
	if ext != "json" {
		t.Errorf("round trip produced %q, want %q", ext, "json")
	}

	if _, err := f.GetTypeFromExtension("bin"); err != ErrUnknownResourceType {
		t.Errorf("unknown extension: got %v, want ErrUnknownResourceType", err)
	}
	if _, err := f.GetExtensionFromType(TypeID(99)); err != ErrUnknownResourceType {
		t.Errorf("unknown type id: got %v, want ErrUnknownResourceType", err)
	}
}

func TestGetTypeOfResource(t *testing.T) {
	dir := t.TempDir()
	params := DefaultNewFactoryParams()
	f, err := New(params, "file://"+dir)
	if err != nil {
		t.Fatalf("creating factory: %v", err)
	}
	defer f.Close()

	if err := f.RegisterType("txt", nil, createBlob, destroyBlob, nil); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	writeFile(t, dir, "a.txt", "x")

	r, err := f.Get("a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer f.Release(r)

	id, err := f.GetType(r)
	if err != nil {
		t.Fatalf("GetType: %v", err)
	}
	ext, err := f.GetExtensionFromType(id)
	if err != nil {
		t.Fatalf("GetExtensionFromType: %v", err)
	}
	if ext != "txt" {
		t.Errorf("extension = %q, want %q", ext, "txt")
	}

	if _, err := f.GetType(&blob{}); err != ErrNotLoaded {
		t.Errorf("unknown handle: got %v, want ErrNotLoaded", err)
	}
}
