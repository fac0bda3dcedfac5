package engagement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/browser"
)

func TestClassifyLink(t *testing.T) {
	const page = "https://www.example.com/pricing"
	cases := []struct {
		href string
		want LinkKind
	}{
		{"/about", LinkInternal},
		{"contact", LinkInternal},
		{"https://example.com/blog", LinkInternal},
		{"https://WWW.example.com/", LinkInternal},
		{"#faq", LinkAnchor},
		{"mailto:hello@example.com", LinkMailto},
		{"tel:+4930123456", LinkTel},
		{"https://github.com/example", LinkOutbound},
		{"//cdn.other.net/file.pdf", LinkOutbound},
		{"ftp://files.example.org", LinkOutbound},
		{"", LinkUnknown},
		{"http://[::1", LinkUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.href, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLink(tc.href, page))
		})
	}

	t.Run("unknown page url", func(t *testing.T) {
		assert.Equal(t, LinkInternal, ClassifyLink("/x", ""))
		assert.Equal(t, LinkOutbound, ClassifyLink("https://github.com", ""))
	})
}

func TestLinkTracker(t *testing.T) {
	ctx := context.Background()
	page := browser.NewPage(t0)
	page.Navigate(browser.Location{URL: "https://example.com/", Path: "/"})
	rec := &recorder{}
	tr := NewLinkTracker(page, rec)
	tr.Start()

	click := func(target *browser.Target) {
		page.Dispatch(ctx, browser.Event{Type: browser.EventClick, Target: target})
	}

	click(&browser.Target{Href: "https://GitHub.com/acme", Label: "Source", Tag: "a"})
	click(&browser.Target{Href: "/docs", Tag: "a"})
	click(&browser.Target{Href: "mailto:sales@example.com", Label: "Email us", Tag: "a"})
	click(&browser.Target{Label: "Start trial", Tag: "button"})
	click(&browser.Target{Tag: "div"})
	click(nil)

	require.Len(t, rec.events, 3)

	assert.Equal(t, EventOutboundClick, rec.events[0].name)
	assert.Equal(t, "github.com", rec.events[0].props["domain"])
	assert.Equal(t, "Source", rec.events[0].props["label"])

	assert.Equal(t, EventContactClick, rec.events[1].name)
	assert.Equal(t, "mailto", rec.events[1].props["kind"])
	assert.NotContains(t, rec.events[1].props, "href")

	assert.Equal(t, EventButtonClick, rec.events[2].name)
	assert.Equal(t, "Start trial", rec.events[2].props["label"])

	tr.Stop()
	assert.Zero(t, page.TotalListeners())
	click(&browser.Target{Href: "https://github.com", Tag: "a"})
	assert.Len(t, rec.events, 3)
}
