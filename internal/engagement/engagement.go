// Package engagement derives scroll depth, active time, route timing and link
// clicks from browser signals. Trackers run on a browser.Host, register their
// listeners and intervals on Start and release all of them on Stop.
package engagement

import (
	"context"

	"sitepulse/internal/emitter"
)

// Event names.
const (
	EventScrollDepth         = "scroll_depth"
	EventScrollFinalDepth    = "scroll_final_depth"
	EventUserEngagement      = "user_engagement"
	EventUserEngagementFinal = "user_engagement_final"
	EventRouteChange         = "route_change"
	EventOutboundClick       = "outbound_click"
	EventButtonClick         = "button_click"
	EventContactClick        = "contact_click"
)

// Emitter sends tracked events. Consent is enforced behind it.
type Emitter interface {
	Track(ctx context.Context, name string, props emitter.Props)
}
