// Package handlers provides the reference resource handlers shipped with
// the kiln daemon: plain text, JSON documents, and YAML documents. They
// double as worked examples of the handler contract; real deployments
// register their own types next to these.
package handlers

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/kilnworks/kiln/internal/factory"
)

// Text is the typed object behind the "txt" extension. It retains the
// whole blob as a string.
type Text struct {
	Value string
}

// Document is the typed object behind the "json" and "yaml" extensions.
type Document struct {
	Fields map[string]any
}

// CreateText copies the loaded bytes into a fresh Text object.
func CreateText(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	rd.Resource = &Text{Value: string(data)}
	return nil
}

// DestroyText releases a Text. Nothing to do beyond letting the garbage
// collector reclaim it.
func DestroyText(f *factory.Factory, _ any, rd *factory.Descriptor) {}

// RecreateText swaps the string held by an existing Text without touching
// its identity.
func RecreateText(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	t := rd.Resource.(*Text)
	t.Value = string(data)
	return nil
}

// CreateJSON decodes the blob into a Document.
func CreateJSON(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return factory.CreateFormatError
	}
	rd.Resource = &Document{Fields: fields}
	return nil
}

// DestroyJSON releases a JSON Document.
func DestroyJSON(f *factory.Factory, _ any, rd *factory.Descriptor) {}

// RecreateJSON re-decodes into the existing Document in place.
func RecreateJSON(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return factory.CreateFormatError
	}
	rd.Resource.(*Document).Fields = fields
	return nil
}

// CreateYAML decodes the blob into a Document.
func CreateYAML(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return factory.CreateFormatError
	}
	rd.Resource = &Document{Fields: fields}
	return nil
}

// DestroyYAML releases a YAML Document.
func DestroyYAML(f *factory.Factory, _ any, rd *factory.Descriptor) {}

// RecreateYAML re-decodes into the existing Document in place.
func RecreateYAML(f *factory.Factory, _ any, data []byte, rd *factory.Descriptor, name string) error {
	var fields map[string]any
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return factory.CreateFormatError
	}
	rd.Resource.(*Document).Fields = fields
	return nil
}

// RegisterBuiltins registers the txt, json and yaml handlers on a factory.
func RegisterBuiltins(f *factory.Factory) error {
	if err := f.RegisterType("txt", nil, CreateText, DestroyText, RecreateText); err != nil {
		return err
	}
	if err := f.RegisterType("json", nil, CreateJSON, DestroyJSON, RecreateJSON); err != nil {
		return err
	}
	return f.RegisterType("yaml", nil, CreateYAML, DestroyYAML, RecreateYAML)
}
