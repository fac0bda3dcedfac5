package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/pkg/platform/sentinel"
)

func TestUndecidedState(t *testing.T) {
	s := Undecided("")

	assert.False(t, s.Decided())
	assert.Equal(t, RegionOther, s.Region)
	assert.True(t, s.Granted(CategoryEssential))
	assert.False(t, s.Granted(CategoryAnalytics))
	assert.False(t, s.Granted(CategoryMarketing))
}

func TestRecordRoundTrip(t *testing.T) {
	decidedAt := time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC)
	raw, err := EncodeRecord(Choices{Analytics: true, Marketing: false}, decidedAt)
	require.NoError(t, err)

	var stored map[string]any
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, true, stored["essential"], "essential is always persisted as true")
	assert.Equal(t, "2026-02-14T08:30:00Z", stored["decidedAt"])

	state, err := DecodeRecord(raw, RegionEEA)
	require.NoError(t, err)
	require.NotNil(t, state.DecidedAt)
	assert.True(t, decidedAt.Equal(*state.DecidedAt))
	assert.True(t, state.Granted(CategoryAnalytics))
	assert.False(t, state.Granted(CategoryMarketing))
	assert.Equal(t, RegionEEA, state.Region)
}

func TestDecodeRecordCorrupt(t *testing.T) {
	cases := map[string]string{
		"malformed json":    `{"analytics":tru`,
		"missing decidedAt": `{"analytics":true,"marketing":true,"essential":true}`,
		"invalid decidedAt": `{"analytics":true,"decidedAt":"yesterday"}`,
		"wrong shape":       `[1,2,3]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(raw), RegionOther)
			assert.ErrorIs(t, err, sentinel.ErrCorrupt)
		})
	}
}

func TestRegionDefaults(t *testing.T) {
	assert.Equal(t, RegionEEA, RegionFromCountry("de"))
	assert.Equal(t, RegionEEA, RegionFromCountry(" NO "))
	assert.Equal(t, RegionOther, RegionFromCountry("US"))
	assert.Equal(t, RegionOther, RegionFromCountry(""))

	assert.Equal(t, EssentialOnly(), DefaultsFor(RegionEEA))
	assert.Equal(t, Choices{Analytics: true}, DefaultsFor(RegionOther))
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Analytics ")
	require.NoError(t, err)
	assert.Equal(t, CategoryAnalytics, c)

	_, err = ParseCategory("")
	assert.Error(t, err)
	_, err = ParseCategory("advertising")
	assert.Error(t, err)
}
