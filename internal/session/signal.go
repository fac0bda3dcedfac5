package session

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"sitepulse/internal/browser"
	"sitepulse/internal/emitter"
	dErrors "sitepulse/pkg/domain-errors"
)

// SignalType names a raw browser observation posted by the beacon.
type SignalType string

const (
	SignalNavigate      SignalType = "navigate"
	SignalScroll        SignalType = "scroll"
	SignalInteraction   SignalType = "interaction"
	SignalVisibility    SignalType = "visibility"
	SignalClick         SignalType = "click"
	SignalUnload        SignalType = "unload"
	SignalIdentify      SignalType = "identify"
	SignalReset         SignalType = "reset"
	SignalSetProperties SignalType = "set_properties"
)

// MaxBatchSize bounds the number of signals accepted in one batch.
const MaxBatchSize = 500

// Signal is one browser observation. Which fields apply depends on Type.
type Signal struct {
	Type SignalType `json:"type" yaml:"type"`
	At   time.Time  `json:"at" yaml:"at"`

	// navigate
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// scroll
	Viewport *browser.Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`
	// interaction: pointermove, pointerdown, keydown or touchstart
	Event browser.EventType `json:"event,omitempty" yaml:"event,omitempty"`
	// visibility
	Visible *bool `json:"visible,omitempty" yaml:"visible,omitempty"`
	// click
	Target *browser.Target `json:"target,omitempty" yaml:"target,omitempty"`
	// identify, set_properties
	UserID     string        `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Properties emitter.Props `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Validate checks that the fields Type requires are present.
func (s Signal) Validate() error {
	switch s.Type {
	case SignalNavigate:
		if strings.TrimSpace(s.URL) == "" {
			return dErrors.New(dErrors.CodeValidation, "navigate signal requires url")
		}
		if _, err := ParseLocation(s.URL, s.Title); err != nil {
			return err
		}
	case SignalScroll:
		if s.Viewport == nil {
			return dErrors.New(dErrors.CodeValidation, "scroll signal requires viewport")
		}
	case SignalInteraction:
		if s.Event == browser.EventScroll || !browser.IsInteraction(s.Event) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported interaction event %q", s.Event))
		}
	case SignalVisibility:
		if s.Visible == nil {
			return dErrors.New(dErrors.CodeValidation, "visibility signal requires visible")
		}
	case SignalClick:
		if s.Target == nil {
			return dErrors.New(dErrors.CodeValidation, "click signal requires target")
		}
	case SignalIdentify:
		if strings.TrimSpace(s.UserID) == "" {
			return dErrors.New(dErrors.CodeValidation, "identify signal requires user_id")
		}
	case SignalSetProperties:
		if len(s.Properties) == 0 {
			return dErrors.New(dErrors.CodeValidation, "set_properties signal requires properties")
		}
	case SignalUnload, SignalReset:
	default:
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown signal type %q", s.Type))
	}
	return nil
}

// ValidateBatch checks every signal; the first failure is reported with its
// index.
func ValidateBatch(signals []Signal) error {
	if len(signals) == 0 {
		return dErrors.New(dErrors.CodeValidation, "signals must not be empty")
	}
	if len(signals) > MaxBatchSize {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d signals per batch", MaxBatchSize))
	}
	for i, s := range signals {
		if err := s.Validate(); err != nil {
			de, _ := dErrors.As(err)
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("signals[%d]: %s", i, de.Message))
		}
	}
	return nil
}

// ordered returns a copy of signals sorted by timestamp. Signals with equal
// timestamps keep their batch order.
func ordered(signals []Signal) []Signal {
	out := append([]Signal(nil), signals...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}

// ParseLocation splits a page URL into the router's view of it. Relative
// URLs are accepted.
func ParseLocation(raw, title string) (browser.Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return browser.Location{}, dErrors.New(dErrors.CodeValidation, "invalid url")
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return browser.Location{
		URL:   u.String(),
		Path:  path,
		Query: u.RawQuery,
		Hash:  u.Fragment,
		Title: title,
	}, nil
}
