package repository

import (
	"context"

	"github.com/kjannette/trahn-papertrade/internal/models"
)

// Recorder journals resolved order attempts.
type Recorder interface {
	Save(ctx context.Context, a models.OrderAttempt) error
	CountToday(ctx context.Context) (int, error)
}

var (
	_ Recorder = (*AttemptRepo)(nil)
	_ Recorder = NoopRecorder{}
)

// NoopRecorder is used when the journal is disabled.
type NoopRecorder struct{}

func (NoopRecorder) Save(context.Context, models.OrderAttempt) error { return nil }

func (NoopRecorder) CountToday(context.Context) (int, error) { return 0, nil }
