// cmd/meal-diary/session.go
package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"meal-diary/internal/client"
	"meal-diary/internal/config"
	"meal-diary/internal/diary"
	"meal-diary/internal/events"
	"meal-diary/internal/mutator"
	"meal-diary/internal/publisher"
)

// session wires one diary day against the remote tool server.
type session struct {
	client *client.Client
	bus    *events.Bus
	mut    *mutator.Mutator
	day    *diary.Day
	pub    *publisher.Publisher
	log    zerolog.Logger
	detach func()
}

func openSession(cfg *config.Config, date string) (*session, error) {
	log := newLogger(cfg)
	c := newClient(cfg, log)
	bus := events.NewBus(log)

	day := diary.NewDay(date, c, diary.DayConfig{
		Weights:     cfg.GetWeights(),
		Bands:       cfg.GetBands(),
		DailyTarget: cfg.GetDailyTarget(),
	}, log, diary.WithEvents(bus))

	mut := mutator.New(c, mutator.Config{
		Debounce:      cfg.GetDebounce(),
		CommitTimeout: cfg.GetCommitTimeout(),
	}, log, mutator.WithResyncer(day), mutator.WithBus(bus))
	diary.WithEntrySet(mut)(day)

	s := &session{client: c, bus: bus, mut: mut, day: day, log: log, detach: func() {}}

	pub, err := publisher.New(cfg.MQTT, cfg.GetTopicPrefix(), log)
	if err != nil {
		mut.Close()
		return nil, fmt.Errorf("connecting publisher: %w", err)
	}
	if pub != nil {
		s.pub = pub
		s.detach = pub.Attach(bus)
	}
	return s, nil
}

func (s *session) load(ctx context.Context) (diary.View, error) {
	v, err := s.day.Load(ctx)
	if err != nil {
		return diary.View{}, err
	}
	if v.Stale {
		return v, fmt.Errorf("could not list entries for %s: %w", v.Date, diary.ErrRemote)
	}
	return v, nil
}

func (s *session) close() {
	s.mut.Close()
	s.detach()
	if s.pub != nil {
		s.pub.Close()
	}
}
