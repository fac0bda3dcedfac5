package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/browser"
)

func TestRouteChange(t *testing.T) {
	ctx := context.Background()
	page := browser.NewPage(t0)
	rec := &recorder{}
	tr := NewRouteChangeTracker(page, rec)

	assert.False(t, tr.Observe(ctx, "/"), "first path is recorded silently")

	page.AdvanceTo(ctx, t0.Add(1500*time.Millisecond))
	assert.False(t, tr.Observe(ctx, "/"), "re-render of the same path")

	page.AdvanceTo(ctx, t0.Add(4*time.Second))
	assert.True(t, tr.Observe(ctx, "/pricing"))

	page.AdvanceTo(ctx, t0.Add(4250*time.Millisecond))
	assert.True(t, tr.Observe(ctx, "/signup"))

	changes := rec.named(EventRouteChange)
	require.Len(t, changes, 2)
	assert.Equal(t, "/", changes[0].props["from"])
	assert.Equal(t, "/pricing", changes[0].props["to"])
	assert.Equal(t, int64(4000), changes[0].props["duration_ms"])
	assert.Equal(t, "/pricing", changes[1].props["from"])
	assert.Equal(t, int64(250), changes[1].props["duration_ms"])
	assert.Equal(t, "/signup", tr.Path())
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func TestRouteChangeClockSkew(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{now: t0}
	rec := &recorder{}
	tr := NewRouteChangeTracker(clock, rec)

	tr.Observe(ctx, "/a")
	clock.now = t0.Add(-time.Second)
	tr.Observe(ctx, "/b")

	require.Len(t, rec.events, 1)
	assert.Equal(t, int64(0), rec.events[0].props["duration_ms"])
}
