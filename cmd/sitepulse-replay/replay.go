package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"sitepulse/internal/consent/models"
	consentService "sitepulse/internal/consent/service"
	consentStore "sitepulse/internal/consent/store"
	"sitepulse/internal/emitter"
	"sitepulse/internal/emitter/backends/memory"
	"sitepulse/internal/flags"
	"sitepulse/internal/session"
)

// flagLine is printed after the back-end calls when the scenario has flags.
type flagLine struct {
	Op    string                 `json:"op"`
	Flags map[string]flags.Value `json:"flags"`
}

// Replay applies the scenario to a fresh session and writes each recorded
// back-end call to w as one JSON line.
func Replay(ctx context.Context, sc Scenario, w io.Writer, log *slog.Logger) error {
	consent := consentService.New(consentStore.NewInMemoryStore(), consentService.WithLogger(log))
	choices, decided, err := sc.Consent.Choices()
	if err != nil {
		return err
	}
	if decided {
		if _, err := consent.Set(ctx, sc.VisitorID, choices); err != nil {
			return fmt.Errorf("record consent: %w", err)
		}
	}

	sink := memory.New("replay")
	d := emitter.NewDispatcher([]emitter.Backend{sink}, emitter.WithLogger(log), emitter.WithDevMode(true))

	seq := 0
	opts := []session.Option{
		session.WithStart(sc.Start),
		session.WithDistinctID(sc.VisitorID),
		session.WithDevice(emitter.ParseDevice(sc.UserAgent)),
		session.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("evt-%04d", seq)
		}),
		session.WithLogger(log),
	}
	keys := make([]string, 0, len(sc.Flags))
	for k := range sc.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > 0 {
		opts = append(opts, session.WithFlags(flags.NewStaticClient(sc.Flags),
			flags.WithKeys(keys...), flags.WithSyncRefresh(), flags.WithLogger(log)))
	}

	s := session.New(sc.SessionID, sc.VisitorID,
		consent.ForVisitor(sc.VisitorID, models.RegionFromCountry(sc.Country)), d, opts...)
	s.Start(ctx)
	applied, err := s.Apply(ctx, sc.Signals)
	if err != nil {
		return fmt.Errorf("apply signals: %w", err)
	}
	resolved := s.Flags(ctx, keys)
	s.Close()
	log.Debug("scenario replayed", "signals", len(sc.Signals), "applied", applied, "calls", len(sink.Calls()))

	enc := json.NewEncoder(w)
	for _, call := range sink.Calls() {
		if err := enc.Encode(call); err != nil {
			return err
		}
	}
	if len(keys) > 0 {
		return enc.Encode(flagLine{Op: "flags", Flags: resolved})
	}
	return nil
}
