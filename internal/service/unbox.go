package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/metrics"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/deppfellow/case-unboxing/internal/validation"
	"github.com/rs/zerolog"
)

var (
	ErrCaseNotFound   = model.ErrCaseNotFound
	ErrInvalidPayload = model.ErrInvalidPayload
)

// MaxBatchSize is the largest number of payloads SaveBatch accepts.
const MaxBatchSize = 100

// DefaultPersistTimeout bounds an in-process write of a drawn item.
const DefaultPersistTimeout = 10 * time.Second

// DefaultEnqueueTimeout bounds the hand-off to the queue, which runs on the
// request path.
const DefaultEnqueueTimeout = 250 * time.Millisecond

// UnboxRepository is the storage used by UnboxService.
type UnboxRepository interface {
	Insert(ctx context.Context, e model.UnboxEvent) (*model.UnboxEvent, error)
	InsertBatch(ctx context.Context, events []model.UnboxEvent) (int64, error)
	List(ctx context.Context, f model.UnboxFilter, limit int) ([]model.UnboxEvent, error)
	Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error)
}

// Enqueuer hands a drawn item to a background worker for storage.
type Enqueuer interface {
	EnqueueUnboxRecord(ctx context.Context, record model.UnboxRecord) error
}

type UnboxService struct {
	repo     UnboxRepository
	catalog  *catalog.Catalog
	drawer   *catalog.Drawer
	enqueuer Enqueuer
	logger   *zerolog.Logger

	persistTimeout time.Duration
	enqueueTimeout time.Duration

	mu       sync.Mutex
	draining bool
	pending  sync.WaitGroup
}

// NewUnboxService builds the service. enqueuer may be nil, in which case
// every drawn item is stored from a goroutine of this process.
func NewUnboxService(
	repo UnboxRepository,
	cat *catalog.Catalog,
	drawer *catalog.Drawer,
	enqueuer Enqueuer,
	logger *zerolog.Logger,
) *UnboxService {
	return &UnboxService{
		repo:           repo,
		catalog:        cat,
		drawer:         drawer,
		enqueuer:       enqueuer,
		logger:         logger,
		persistTimeout: DefaultPersistTimeout,
		enqueueTimeout: DefaultEnqueueTimeout,
	}
}

// log prefers the request-scoped logger carried by ctx.
func (s *UnboxService) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}

// Cases lists the catalog.
func (s *UnboxService) Cases() []catalog.CaseSummary {
	return s.catalog.Cases()
}

// Case returns one case with its items.
func (s *UnboxService) Case(id string) (*catalog.Case, error) {
	c, ok := s.catalog.Case(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	return c, nil
}

// Unbox draws one item from the case.
//
// Results of catalog cases are stored in the background; the caller never
// waits for the write and a failed write only gets logged. Results of
// custom cases are never stored.
func (s *UnboxService) Unbox(ctx context.Context, caseID, unboxerID string) (model.Item, error) {
	log := s.log(ctx).With().Str("case_id", caseID).Logger()

	c, ok := s.catalog.Case(caseID)
	if !ok {
		log.Warn().Msg("unbox of unknown case")
		return model.Item{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	item, err := s.drawer.Draw(c)
	if err != nil {
		return model.Item{}, fmt.Errorf("draw from %s: %w", caseID, err)
	}

	metrics.UnboxesTotal.WithLabelValues(item.Rarity.Name).Inc()

	log.Info().
		Str("item_id", item.ID).
		Str("rarity", item.Rarity.Name).
		Msg("item unboxed")

	if !c.IsCustom() {
		s.record(ctx, model.UnboxRecord{
			Payload:   model.UnboxPayload{Case: c.Case, Item: item},
			UnboxerID: unboxerID,
		})
	}

	return item, nil
}

// record stores r without blocking the caller. The queue is tried first;
// when it is not configured or refuses the task the row is written from a
// goroutine detached from the request's cancellation. Nothing is recorded
// once Drain has started.
func (s *UnboxService) record(ctx context.Context, r model.UnboxRecord) {
	log := s.log(ctx)

	if s.isDraining() {
		metrics.UnboxPersistFailures.WithLabelValues(metrics.StageShutdown).Inc()
		log.Warn().Msg("shutting down, unbox not stored")
		return
	}

	if s.enqueuer != nil {
		enqueueCtx, cancel := context.WithTimeout(ctx, s.enqueueTimeout)
		err := s.enqueuer.EnqueueUnboxRecord(enqueueCtx, r)
		cancel()
		if err == nil {
			return
		}
		metrics.UnboxPersistFailures.WithLabelValues(metrics.StageEnqueue).Inc()
		log.Warn().Err(err).Msg("failed to enqueue unbox, storing in-process")
	}

	if !s.startWrite() {
		metrics.UnboxPersistFailures.WithLabelValues(metrics.StageShutdown).Inc()
		log.Warn().Msg("shutting down, unbox not stored")
		return
	}

	detached := context.WithoutCancel(ctx)

	go func() {
		defer s.pending.Done()

		writeCtx, cancel := context.WithTimeout(detached, s.persistTimeout)
		defer cancel()

		if _, err := s.Save(writeCtx, r.Payload, r.UnboxerID); err != nil {
			metrics.UnboxPersistFailures.WithLabelValues(metrics.StageInsert).Inc()
			s.log(writeCtx).Error().Err(err).Msg("failed to store unbox")
		}
	}()
}

// startWrite registers an in-process write unless Drain has started.
func (s *UnboxService) startWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining {
		return false
	}
	s.pending.Add(1)
	return true
}

func (s *UnboxService) isDraining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draining
}

// Wait blocks until every in-process write started by Unbox has finished.
func (s *UnboxService) Wait() {
	s.pending.Wait()
}

// Drain stops accepting new writes, then waits for the pending ones. Draws
// made afterwards are still returned to the caller but not stored.
func (s *UnboxService) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	s.pending.Wait()
}

// Save validates payload and stores it for unboxerID.
func (s *UnboxService) Save(ctx context.Context, payload model.UnboxPayload, unboxerID string) (*model.UnboxEvent, error) {
	log := s.log(ctx)

	if err := validation.Struct(payload); err != nil {
		log.Warn().Err(err).Msg("rejected unbox payload")
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	event, err := s.repo.Insert(ctx, model.NewUnboxEvent(payload, unboxerID))
	if err != nil {
		log.Error().Err(err).Str("case_id", payload.Case.ID).Msg("failed to insert unbox")
		return nil, err
	}

	return event, nil
}

// SaveBatch validates every payload, then stores all of them or none.
func (s *UnboxService) SaveBatch(ctx context.Context, payloads []model.UnboxPayload, unboxerID string) (int64, error) {
	log := s.log(ctx)

	if err := validateBatch(payloads); err != nil {
		log.Warn().Err(err).Int("size", len(payloads)).Msg("rejected unbox batch")
		return 0, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	events := make([]model.UnboxEvent, 0, len(payloads))
	for _, p := range payloads {
		events = append(events, model.NewUnboxEvent(p, unboxerID))
	}

	n, err := s.repo.InsertBatch(ctx, events)
	if err != nil {
		log.Error().Err(err).Int("size", len(payloads)).Msg("failed to insert unbox batch")
		return 0, err
	}

	return n, nil
}

type batch struct {
	Unboxes []model.UnboxPayload `json:"unboxes" validate:"required,min=1,max=100,dive"`
}

func validateBatch(payloads []model.UnboxPayload) error {
	return validation.Struct(batch{Unboxes: payloads})
}

// List returns the most recent unboxes matching f.
func (s *UnboxService) List(ctx context.Context, f model.UnboxFilter) ([]model.UnboxEvent, error) {
	events, err := s.repo.List(ctx, f, model.MaxRecentUnboxes)
	if err != nil {
		s.log(ctx).Error().Err(err).Msg("failed to list unboxes")
		return nil, err
	}
	return events, nil
}

// Count returns the number of unboxes matching f. See model.UnboxCount.
func (s *UnboxService) Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error) {
	count, err := s.repo.Count(ctx, f)
	if err != nil {
		s.log(ctx).Error().Err(err).Msg("failed to count unboxes")
		return model.UnboxCount{}, err
	}
	return count, nil
}
