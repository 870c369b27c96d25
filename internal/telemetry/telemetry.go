package telemetry

import (
	"context"

	"github.com/okkern/thermactl/internal/logger"
	"github.com/okkern/thermactl/internal/thermal"
)

type service struct {
	repo Repository
}

// No-op implementation used when telemetry is disabled
type noopSink struct{}

func NewSink(cfg Config) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Telemetry disabled, using no-op sink")
		return &noopSink{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) RecordSnapshot(ctx context.Context, snap thermal.Snapshot) error {
	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.RecordSnapshot(snap); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) RecordTransition(ctx context.Context, transition thermal.Transition) error {
	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.RecordTransition(transition); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}

	return nil
}

func (*noopSink) RecordSnapshot(_ context.Context, _ thermal.Snapshot) error {
	return nil
}

func (*noopSink) RecordTransition(_ context.Context, _ thermal.Transition) error {
	return nil
}

func (*noopSink) Close() error {
	return nil
}
