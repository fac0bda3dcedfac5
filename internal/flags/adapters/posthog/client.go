// Package posthog adapts the PostHog SDK to the flags.Client interface.
package posthog

import (
	"context"
	"sync/atomic"

	ph "github.com/posthog/posthog-go"
)

// FlagAPI is the flag surface of ph.Client.
type FlagAPI interface {
	IsFeatureEnabled(ph.FeatureFlagPayload) (interface{}, error)
	GetFeatureFlag(ph.FeatureFlagPayload) (interface{}, error)
}

// Client reports Loaded once the SDK has answered a flag request.
type Client struct {
	api    FlagAPI
	loaded atomic.Bool
}

func New(api FlagAPI) *Client {
	return &Client{api: api}
}

func (c *Client) IsFeatureEnabled(_ context.Context, key, distinctID string) (bool, error) {
	v, err := c.api.IsFeatureEnabled(ph.FeatureFlagPayload{Key: key, DistinctId: distinctID})
	if err != nil {
		return false, err
	}
	c.loaded.Store(true)
	enabled, _ := v.(bool)
	return enabled, nil
}

func (c *Client) GetFeatureFlag(_ context.Context, key, distinctID string) (any, error) {
	v, err := c.api.GetFeatureFlag(ph.FeatureFlagPayload{Key: key, DistinctId: distinctID})
	if err != nil {
		return nil, err
	}
	c.loaded.Store(true)
	switch v.(type) {
	case bool, string:
		return v, nil
	default:
		return nil, nil
	}
}

func (c *Client) Loaded() bool {
	return c.loaded.Load()
}
