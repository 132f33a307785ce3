package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotifyDeliver delivers a stored notification record.
	TaskTypeNotifyDeliver = "notify:deliver"
	// TaskTypeProposalSweep expires one family's past-due proposals.
	TaskTypeProposalSweep = "proposal:expire_sweep"
	// TaskTypeSweepAll fans the sweep out over every family with due work.
	TaskTypeSweepAll = "proposal:expire_sweep_all"
	// TaskTypeIdempotencyCleanup prunes expired one-shot keys.
	TaskTypeIdempotencyCleanup = "idempotency:cleanup"
)

// NotifyDeliverPayload identifies the notification to deliver.
type NotifyDeliverPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// ProposalSweepPayload identifies the family to sweep.
type ProposalSweepPayload struct {
	FamilyID uuid.UUID `json:"family_id"`
}

// NewNotifyDeliverTask constructs an Asynq task.
func NewNotifyDeliverTask(payload NotifyDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotifyDeliver, data), nil
}

// NewProposalSweepTask constructs an Asynq task.
func NewProposalSweepTask(payload ProposalSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeProposalSweep, data), nil
}

// NewSweepAllTask constructs the cron fan-out task.
func NewSweepAllTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweepAll, nil)
}

// NewIdempotencyCleanupTask constructs the cron pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}
