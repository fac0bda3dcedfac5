package flags

import (
	"context"
	"sync"
)

// StaticClient serves flags from a map. It counts remote calls so tests can
// assert the remote was not contacted.
type StaticClient struct {
	mu     sync.Mutex
	flags  map[string]any
	loaded bool
	calls  int
	err    error
}

// NewStaticClient returns a loaded client serving flags.
func NewStaticClient(flags map[string]any) *StaticClient {
	c := &StaticClient{flags: make(map[string]any), loaded: true}
	for k, v := range flags {
		c.flags[k] = v
	}
	return c
}

func (c *StaticClient) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags[key] = value
}

func (c *StaticClient) SetLoaded(loaded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = loaded
}

// FailWith makes every call return err until cleared with nil.
func (c *StaticClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Calls is the number of remote lookups served.
func (c *StaticClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *StaticClient) IsFeatureEnabled(ctx context.Context, key, distinctID string) (bool, error) {
	raw, err := c.GetFeatureFlag(ctx, key, distinctID)
	if err != nil || raw == nil {
		return false, err
	}
	v, err := ValueOf(raw)
	return v.Enabled, err
}

func (c *StaticClient) GetFeatureFlag(_ context.Context, key, _ string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.flags[key], nil
}

func (c *StaticClient) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}
