package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deppfellow/case-unboxing/internal/metrics"
	"github.com/deppfellow/case-unboxing/internal/model"

	"github.com/hibiken/asynq"
)

// UnboxSaver stores a validated unbox result.
type UnboxSaver interface {
	Save(ctx context.Context, payload model.UnboxPayload, unboxerID string) (*model.UnboxEvent, error)
}

// InitHandlers injects the dependencies of the task handlers.
func (j *JobService) InitHandlers(saver UnboxSaver) {
	j.saver = saver
}

// handleRecordUnboxTask stores one drawn item. Every failure is final:
// errors are wrapped with asynq.SkipRetry so the insert never runs twice.
func (j *JobService) handleRecordUnboxTask(ctx context.Context, t *asynq.Task) error {
	var record model.UnboxRecord
	if err := json.Unmarshal(t.Payload(), &record); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w: %w", TaskRecordUnbox, err, asynq.SkipRetry)
	}

	log := j.logger.With().
		Str("task", TaskRecordUnbox).
		Str("case_id", record.Payload.Case.ID).
		Str("item_id", record.Payload.Item.ID).
		Str("unboxer_id", record.UnboxerID).
		Logger()

	if j.saver == nil {
		log.Error().Msg("dropping unbox record, handlers not initialized")
		return fmt.Errorf("%s: handlers not initialized: %w", TaskRecordUnbox, asynq.SkipRetry)
	}

	event, err := j.saver.Save(log.WithContext(ctx), record.Payload, record.UnboxerID)
	if err != nil {
		metrics.UnboxPersistFailures.WithLabelValues(metrics.StageInsert).Inc()

		if errors.Is(err, model.ErrInvalidPayload) {
			log.Error().Err(err).Msg("dropping invalid unbox record")
		} else {
			log.Error().Err(err).Msg("failed to record unbox, dropping it")
		}
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log.Debug().Int64("id", event.ID).Msg("recorded unbox")
	return nil
}
