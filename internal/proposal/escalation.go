package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/homepact/homepact/internal/custody"
	"github.com/homepact/homepact/internal/shared"
)

// RejectionPattern is a child's running proposal-rejection tally.
type RejectionPattern struct {
	ChildUID        string
	FamilyID        uuid.UUID
	TotalRejections int
}

// EscalationRepositoryPort persists rejection patterns.
type EscalationRepositoryPort interface {
	RecordRejection(ctx context.Context, familyID uuid.UUID, childUID string, proposalID uuid.UUID) (RejectionPattern, error)
}

// EscalationSink receives the escalation signal. The actual action (for
// example surfacing a trusted-adult flow) lives outside this service.
type EscalationSink interface {
	Escalate(ctx context.Context, familyID uuid.UUID, childUID string) error
}

// IdempotencyPort claims one-shot keys and releases claims that failed to
// complete.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key string) error
}

// Tracker accumulates a child's rejection history and raises the escalation
// signal when the configured threshold is crossed. The call order is fixed:
// record, then check, then conditionally trigger.
type Tracker struct {
	repo      EscalationRepositoryPort
	sink      EscalationSink
	idem      IdempotencyPort
	threshold int
	logger    *slog.Logger
}

// NewTracker constructs a Tracker. sink and idem may be nil.
func NewTracker(repo EscalationRepositoryPort, sink EscalationSink, idem IdempotencyPort, threshold int, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{repo: repo, sink: sink, idem: idem, threshold: threshold, logger: logger}
}

// RecordRejection appends to the child's pattern and returns the updated tally.
func (t *Tracker) RecordRejection(ctx context.Context, familyID uuid.UUID, childUID string, proposalID uuid.UUID) (RejectionPattern, error) {
	return t.repo.RecordRejection(ctx, familyID, childUID, proposalID)
}

// ThresholdReached is a pure check of the running count.
func (t *Tracker) ThresholdReached(totalRejections int) bool {
	return t.threshold > 0 && totalRejections >= t.threshold
}

// TriggerEscalation raises the signal once per threshold crossing; repeat
// calls for the same tally are absorbed by the idempotency claim. A claim
// whose signal fails to deliver is released so the next attempt can retry.
func (t *Tracker) TriggerEscalation(ctx context.Context, familyID uuid.UUID, childUID string, totalRejections int) error {
	if t.sink == nil {
		return nil
	}
	key := fmt.Sprintf("escalation:%s:%s:%d", familyID, childUID, totalRejections)
	if t.idem != nil {
		if err := t.idem.CheckAndInsert(ctx, key, "proposal.escalation"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return nil
			}
			return err
		}
	}
	if err := t.sink.Escalate(ctx, familyID, childUID); err != nil {
		if t.idem != nil {
			if delErr := t.idem.Delete(ctx, key); delErr != nil {
				t.logger.Warn("release escalation claim", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return err
	}
	return nil
}

// GuardianEscalationSink notifies every guardian in the child's custody
// arrangement that a rejection pattern needs attention.
type GuardianEscalationSink struct {
	custody  custody.LookupPort
	notifier NotifierPort
}

// NewGuardianEscalationSink constructs the default sink.
func NewGuardianEscalationSink(lookup custody.LookupPort, notifier NotifierPort) *GuardianEscalationSink {
	return &GuardianEscalationSink{custody: lookup, notifier: notifier}
}

// Escalate fans the signal out to the child's guardians.
func (s *GuardianEscalationSink) Escalate(ctx context.Context, familyID uuid.UUID, childUID string) error {
	arr, err := s.custody.Arrangement(ctx, childUID)
	if err != nil {
		return err
	}
	name := shared.TitleName(arr.ChildName)
	for _, g := range arr.Guardians {
		note := shared.Notification{
			FamilyID:     familyID,
			RecipientUID: g.UID,
			Type:         "rejection_escalation",
			Title:        "A conversation may help",
			Body:         fmt.Sprintf("%s has declined several agreement proposals recently. Consider checking in together.", name),
			Data:         map[string]any{"child_uid": childUID},
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

// handleChildRejection runs the fixed record/check/trigger sequence after a
// child declines. Failures never unwind the decline itself.
func (t *Tracker) handleChildRejection(ctx context.Context, familyID uuid.UUID, childUID string, proposalID uuid.UUID) {
	pattern, err := t.RecordRejection(ctx, familyID, childUID, proposalID)
	if err != nil {
		t.logger.Warn("record rejection", slog.String("child_uid", childUID), slog.Any("error", err))
		return
	}
	if !t.ThresholdReached(pattern.TotalRejections) {
		return
	}
	if err := t.TriggerEscalation(ctx, familyID, childUID, pattern.TotalRejections); err != nil {
		t.logger.Warn("trigger escalation", slog.String("child_uid", childUID), slog.Any("error", err))
	}
}
