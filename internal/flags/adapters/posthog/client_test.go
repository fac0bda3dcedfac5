package posthog

import (
	"context"
	"errors"
	"testing"

	ph "github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	values   map[string]interface{}
	err      error
	payloads []ph.FeatureFlagPayload
}

func (f *fakeAPI) IsFeatureEnabled(p ph.FeatureFlagPayload) (interface{}, error) {
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return nil, f.err
	}
	return f.values[p.Key], nil
}

func (f *fakeAPI) GetFeatureFlag(p ph.FeatureFlagPayload) (interface{}, error) {
	return f.IsFeatureEnabled(p)
}

func TestLoadedAfterFirstAnswer(t *testing.T) {
	api := &fakeAPI{err: errors.New("timeout")}
	c := New(api)
	ctx := context.Background()

	_, err := c.GetFeatureFlag(ctx, "new-hero", "anon-1")
	require.Error(t, err)
	assert.False(t, c.Loaded())

	api.err = nil
	api.values = map[string]interface{}{"new-hero": "variant-b", "beta": true}
	v, err := c.GetFeatureFlag(ctx, "new-hero", "anon-1")
	require.NoError(t, err)
	assert.Equal(t, "variant-b", v)
	assert.True(t, c.Loaded())

	enabled, err := c.IsFeatureEnabled(ctx, "beta", "anon-1")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "anon-1", api.payloads[len(api.payloads)-1].DistinctId)
}

func TestUnknownFlagIsNil(t *testing.T) {
	c := New(&fakeAPI{values: map[string]interface{}{"weird": 3.5}})

	v, err := c.GetFeatureFlag(context.Background(), "missing", "anon-1")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = c.GetFeatureFlag(context.Background(), "weird", "anon-1")
	require.NoError(t, err)
	assert.Nil(t, v)
}
