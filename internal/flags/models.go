// Package flags serves feature flags from a locally refreshed cache. Lookups
// never touch the remote service, and without analytics consent they return
// the caller's fallback.
package flags

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultPollInterval is how often watched flags are refreshed.
const DefaultPollInterval = 30 * time.Second

// Client is the remote flag service.
type Client interface {
	IsFeatureEnabled(ctx context.Context, key, distinctID string) (bool, error)
	// GetFeatureFlag returns a bool, a variant string, or nil for an unknown flag.
	GetFeatureFlag(ctx context.Context, key, distinctID string) (any, error)
	// Loaded reports whether the client has received flag definitions.
	Loaded() bool
}

// Value is a resolved flag: a boolean or a multivariate variant.
type Value struct {
	Enabled bool
	Variant string
}

// ValueOf converts a client result. Unknown types are rejected.
func ValueOf(raw any) (Value, error) {
	switch v := raw.(type) {
	case bool:
		return Value{Enabled: v}, nil
	case string:
		if v == "" {
			return Value{}, nil
		}
		return Value{Enabled: true, Variant: v}, nil
	default:
		return Value{}, fmt.Errorf("unsupported flag value %T", raw)
	}
}

// Any returns the variant when set, otherwise the boolean.
func (v Value) Any() any {
	if v.Variant != "" {
		return v.Variant
	}
	return v.Enabled
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}
