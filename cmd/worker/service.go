package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type consumer interface {
	Run(ctx context.Context) error
}

// ServiceParams wires the worker. Consumers are keyed by subscription name.
type ServiceParams struct {
	Logger    *logger.Logger
	DB        pinger
	Redis     pinger
	PubSub    pinger
	Consumers map[string]consumer
}

// Service pings its dependencies once, then runs every consumer until one
// fails or ctx is canceled.
type Service struct {
	logg      *logger.Logger
	deps      []namedPinger
	consumers map[string]consumer
}

type namedPinger struct {
	name string
	p    pinger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	deps := []namedPinger{{"database", params.DB}, {"redis", params.Redis}, {"pubsub", params.PubSub}}
	for _, d := range deps {
		if d.p == nil {
			return nil, fmt.Errorf("%s client is required", d.name)
		}
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	return &Service{logg: params.Logger, deps: deps, consumers: params.Consumers}, nil
}

func (s *Service) Run(ctx context.Context) error {
	for _, d := range s.deps {
		if err := d.p.Ping(ctx); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "dependency", d.name), "dependency ping failed", err)
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}

	names := slices.Sorted(maps.Keys(s.consumers))
	s.logg.Info(s.logg.WithField(ctx, "consumers", names), "worker ready")

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		c := s.consumers[name]
		g.Go(func() error {
			cctx := s.logg.WithField(gctx, "consumer", name)
			err := c.Run(cctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(cctx, "consumer stopped", err)
				return fmt.Errorf("%s: %w", name, err)
			}
			return err
		})
	}
	return g.Wait()
}
