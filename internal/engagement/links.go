package engagement

import (
	"context"
	"net/url"
	"strings"

	"sitepulse/internal/browser"
	"sitepulse/internal/emitter"
)

// LinkKind classifies a link relative to the current page.
type LinkKind string

const (
	LinkInternal LinkKind = "internal"
	LinkOutbound LinkKind = "outbound"
	LinkMailto   LinkKind = "mailto"
	LinkTel      LinkKind = "tel"
	LinkAnchor   LinkKind = "anchor"
	LinkUnknown  LinkKind = "unknown"
)

// ClassifyLink resolves href against the page URL. Hosts compare without a
// leading "www.".
func ClassifyLink(href, pageURL string) LinkKind {
	href = strings.TrimSpace(href)
	if href == "" {
		return LinkUnknown
	}
	if strings.HasPrefix(href, "#") {
		return LinkAnchor
	}
	u, err := url.Parse(href)
	if err != nil {
		return LinkUnknown
	}
	switch strings.ToLower(u.Scheme) {
	case "mailto":
		return LinkMailto
	case "tel":
		return LinkTel
	case "", "http", "https":
	default:
		return LinkOutbound
	}

	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		if u.Host == "" {
			return LinkInternal
		}
		return LinkOutbound
	}
	resolved := base.ResolveReference(u)
	if sameHost(resolved.Hostname(), base.Hostname()) {
		return LinkInternal
	}
	return LinkOutbound
}

func sameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}

// LinkTracker turns clicks into outbound_click, contact_click and
// button_click events. Internal navigation is left to the page-view tracker.
type LinkTracker struct {
	host    browser.Host
	emitter Emitter
	stopped bool
	subs    browser.Subscriptions
}

func NewLinkTracker(host browser.Host, em Emitter) *LinkTracker {
	return &LinkTracker{host: host, emitter: em}
}

func (t *LinkTracker) Start() {
	t.subs.Add(t.host.AddEventListener(browser.EventClick, t.onClick))
}

func (t *LinkTracker) Stop() {
	t.stopped = true
	t.subs.Release()
}

func (t *LinkTracker) onClick(ctx context.Context, ev browser.Event) {
	if t.stopped || ev.Target == nil {
		return
	}
	target := ev.Target
	label := strings.TrimSpace(target.Label)

	if target.Href == "" {
		if label != "" && (target.Tag == "" || strings.EqualFold(target.Tag, "button")) {
			t.emitter.Track(ctx, EventButtonClick, emitter.Props{"label": label})
		}
		return
	}

	switch kind := ClassifyLink(target.Href, t.host.Location().URL); kind {
	case LinkOutbound:
		props := emitter.Props{"href": target.Href}
		if u, err := url.Parse(target.Href); err == nil && u.Hostname() != "" {
			props["domain"] = strings.ToLower(u.Hostname())
		}
		if label != "" {
			props["label"] = label
		}
		t.emitter.Track(ctx, EventOutboundClick, props)
	case LinkMailto, LinkTel:
		// The address itself is personal data and is not sent.
		props := emitter.Props{"kind": string(kind)}
		if label != "" {
			props["label"] = label
		}
		t.emitter.Track(ctx, EventContactClick, props)
	}
}
