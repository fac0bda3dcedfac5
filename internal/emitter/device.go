package emitter

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device is what the User-Agent tells us about the visitor's client.
type Device struct {
	Browser        string
	BrowserVersion string
	OS             string
	Mobile         bool
	Bot            bool
}

// ParseDevice reads a User-Agent header. An empty header yields the zero Device.
func ParseDevice(userAgent string) Device {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Device{}
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	return Device{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}

// Known reports whether anything was parsed.
func (d Device) Known() bool {
	return d.Browser != "" || d.OS != ""
}

func (d Device) apply(p Props) {
	if !d.Known() {
		return
	}
	p["browser"] = d.Browser
	if d.BrowserVersion != "" {
		p["browser_version"] = d.BrowserVersion
	}
	if d.OS != "" {
		p["os"] = d.OS
	}
	if d.Mobile {
		p["device_type"] = "mobile"
	} else {
		p["device_type"] = "desktop"
	}
}
