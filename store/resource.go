package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned when a document was written by a newer schema.
var ErrUnsupportedVersion = errors.New("store: unsupported schema version")

// Resource describes a typed, versioned document kept under Name.
type Resource[T any] struct {
	Name    string
	Kind    string
	Version int
}

// Define declares a typed resource.
func Define[T any](name, kind string, version int) Resource[T] {
	return Resource[T]{Name: name, Kind: kind, Version: version}
}

// At returns a copy of r stored under a different name. Used for
// per-user families such as notifications.
func (r Resource[T]) At(name string) Resource[T] {
	r.Name = name
	return r
}

// envelope is the on-disk wrapper around every document.
type envelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// Decode parses a stored document. Nil input yields the zero value.
// Documents without an envelope are read as version 0 payloads.
func (r Resource[T]) Decode(raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Kind != "" && env.Data != nil {
		if env.Kind != r.Kind {
			return v, fmt.Errorf("store: %s: expected kind %q, got %q", r.Name, r.Kind, env.Kind)
		}
		if env.Version > r.Version {
			return v, fmt.Errorf("%w: %s v%d (max v%d)", ErrUnsupportedVersion, r.Name, env.Version, r.Version)
		}
		raw = env.Data
	}

	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("store: decode %s: %w", r.Name, err)
	}
	return v, nil
}

// Encode wraps v in the versioned envelope.
func (r Resource[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode %s: %w", r.Name, err)
	}
	return json.MarshalIndent(envelope{Version: r.Version, Kind: r.Kind, Data: data}, "", "  ")
}

// Read loads the current value of r without locking. A missing resource
// yields the zero value and no error.
func Read[T any](ctx context.Context, s Store, r Resource[T]) (T, error) {
	raw, err := s.ReadRaw(ctx, r.Name)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.Decode(raw)
}

// Update locks r, decodes it, applies fn and writes the result back.
// An error from fn aborts the update and leaves the resource unchanged.
// fn may run nested Updates on resources later in the lock order.
func Update[T any](ctx context.Context, s Store, r Resource[T], fn func(v *T) error) error {
	return s.UpdateRaw(ctx, r.Name, func(current []byte) ([]byte, error) {
		v, err := r.Decode(current)
		if err != nil {
			return nil, err
		}
		if err := fn(&v); err != nil {
			return nil, err
		}
		return r.Encode(v)
	})
}
