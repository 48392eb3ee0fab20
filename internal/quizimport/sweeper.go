package quizimport

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-import/internal/db/repository"
)

type orphanLedger interface {
	ListByStatus(ctx context.Context, status string) ([]repository.UploadRecord, error)
	SetStatus(ctx context.Context, id, status string) error
}

type quizDeleter interface {
	DeleteQuizSet(ctx context.Context, id string) error
}

// OrphanSweeper retries the compensating delete of quiz sets whose rollback
// failed during an import.
type OrphanSweeper struct {
	uploads  orphanLedger
	quizzes  quizDeleter
	interval time.Duration
	logger   zerolog.Logger
}

func NewOrphanSweeper(uploads orphanLedger, quizzes quizDeleter, interval time.Duration, logger zerolog.Logger) *OrphanSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &OrphanSweeper{
		uploads:  uploads,
		quizzes:  quizzes,
		interval: interval,
		logger:   logger.With().Str("component", "orphan_sweeper").Logger(),
	}
}

// Run blocks until context cancellation.
func (s *OrphanSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep makes one pass and returns how many quiz sets were removed.
func (s *OrphanSweeper) Sweep(ctx context.Context) int {
	pending, err := s.uploads.ListByStatus(ctx, repository.UploadRollbackFailed)
	if err != nil {
		s.logger.Warn().Err(err).Msg("list orphaned imports failed")
		return 0
	}

	removed := 0
	for _, rec := range pending {
		if rec.QuizSetID != "" {
			if err := s.quizzes.DeleteQuizSet(ctx, rec.QuizSetID); err != nil {
				s.logger.Warn().Err(err).Str("quiz_set_id", rec.QuizSetID).Msg("orphan delete failed")
				continue
			}
		}
		if err := s.uploads.SetStatus(ctx, rec.ID, repository.UploadRolledBack); err != nil {
			s.logger.Warn().Err(err).Str("upload_id", rec.ID).Msg("mark rolled back failed")
			continue
		}
		rollbacksTotal.WithLabelValues("swept").Inc()
		removed++
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("orphaned quiz sets removed")
	}
	return removed
}
