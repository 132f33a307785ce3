package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// ProposalSweeper is the slice of the proposal service the sweep needs.
type ProposalSweeper interface {
	ExpireSweep(ctx context.Context, familyID uuid.UUID) (int, error)
	FamiliesDue(ctx context.Context) ([]uuid.UUID, error)
}

// HandleProposalSweep expires one family's past-due proposals. The underlying
// update is guarded, so redelivery of the same task transitions nothing.
func HandleProposalSweep(sweeper ProposalSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ProposalSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		count, err := sweeper.ExpireSweep(ctx, payload.FamilyID)
		if err != nil {
			return err
		}
		if count > 0 {
			logger.Info("proposal sweep", slog.String("family_id", payload.FamilyID.String()), slog.Int("expired", count))
		}
		return nil
	}
}

// HandleSweepAll fans the sweep out over every family with past-due
// proposals. Families sweep independently; one failure does not stop the
// rest, and the cron rerun picks up whatever was missed.
func HandleSweepAll(sweeper ProposalSweeper, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		families, err := sweeper.FamiliesDue(ctx)
		if err != nil {
			return err
		}
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for _, familyID := range families {
			g.Go(func() error {
				count, err := sweeper.ExpireSweep(ctx, familyID)
				if err != nil {
					logger.Warn("proposal sweep", slog.String("family_id", familyID.String()), slog.Any("error", err))
					return nil
				}
				if count > 0 {
					logger.Info("proposal sweep", slog.String("family_id", familyID.String()), slog.Int("expired", count))
				}
				return nil
			})
		}
		return g.Wait()
	}
}
