package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/hibiken/asynq"
)

const (
	// TaskRecordUnbox stores one drawn item.
	TaskRecordUnbox = "unbox:record"

	recordUnboxTimeout = 10 * time.Second
)

// NewRecordUnboxTask builds the task persisting record.
//
// The task runs at most once. A retried insert could store a second row
// when the first attempt committed but still reported an error, so a failed
// write is logged and dropped.
func NewRecordUnboxTask(record model.UnboxRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskRecordUnbox,
		payload,
		asynq.MaxRetry(0),
		asynq.Queue(QueueDefault),
		asynq.Timeout(recordUnboxTimeout),
	), nil
}

// EnqueueUnboxRecord queues record for storage.
func (j *JobService) EnqueueUnboxRecord(ctx context.Context, record model.UnboxRecord) error {
	task, err := NewRecordUnboxTask(record)
	if err != nil {
		return fmt.Errorf("build %s task: %w", TaskRecordUnbox, err)
	}

	if _, err := j.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", TaskRecordUnbox, err)
	}
	return nil
}
