package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/deppfellow/case-unboxing/internal/catalog"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/deppfellow/case-unboxing/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const unboxer = "8a6f0f6e-6f2b-4c1e-9f57-2d0f1b7c9e11"

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Insert(ctx context.Context, e model.UnboxEvent) (*model.UnboxEvent, error) {
	args := m.Called(ctx, e)
	out, _ := args.Get(0).(*model.UnboxEvent)
	return out, args.Error(1)
}

func (m *mockRepo) InsertBatch(ctx context.Context, events []model.UnboxEvent) (int64, error) {
	args := m.Called(ctx, events)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, f model.UnboxFilter, limit int) ([]model.UnboxEvent, error) {
	args := m.Called(ctx, f, limit)
	out, _ := args.Get(0).([]model.UnboxEvent)
	return out, args.Error(1)
}

func (m *mockRepo) Count(ctx context.Context, f model.UnboxFilter) (model.UnboxCount, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(model.UnboxCount), args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueUnboxRecord(ctx context.Context, r model.UnboxRecord) error {
	return m.Called(ctx, r).Error(0)
}

// recordingRepo stores inserted events in memory.
type recordingRepo struct {
	mu     sync.Mutex
	events []model.UnboxEvent
	err    error
}

func (r *recordingRepo) Insert(_ context.Context, e model.UnboxEvent) (*model.UnboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	e.ID = int64(len(r.events) + 1)
	r.events = append(r.events, e)
	return &e, nil
}

func (r *recordingRepo) InsertBatch(context.Context, []model.UnboxEvent) (int64, error) {
	return 0, errors.New("not used")
}

func (r *recordingRepo) List(context.Context, model.UnboxFilter, int) ([]model.UnboxEvent, error) {
	return nil, errors.New("not used")
}

func (r *recordingRepo) Count(context.Context, model.UnboxFilter) (model.UnboxCount, error) {
	return model.UnboxCount{}, errors.New("not used")
}

func (r *recordingRepo) snapshot() []model.UnboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.UnboxEvent(nil), r.events...)
}

const customCase = `{"cases":[{"id":"custom-mine","name":"Mine",
	"image":"https://community.cloudflare.steamstatic.com/economy/image/mine",
	"items":[{"id":"skin-1","name":"AWP | Lightning Strike","rarity":{"name":"Covert"},
	"image":"https://community.cloudflare.steamstatic.com/economy/image/awp"}]}]}`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	custom, err := catalog.Parse([]byte(customCase))
	require.NoError(t, err)
	require.NoError(t, cat.Merge(custom))

	return cat
}

type fixedSource uint64

func (s fixedSource) Uint64() uint64 { return uint64(s) }

func newTestService(t *testing.T, repo UnboxRepository, enqueuer Enqueuer) *UnboxService {
	t.Helper()
	logger := zerolog.Nop()
	return NewUnboxService(repo, testCatalog(t), catalog.NewDrawer(fixedSource(0)), enqueuer, &logger)
}

func validPayload() model.UnboxPayload {
	return model.UnboxPayload{
		Case: model.Case{
			ID:    "crate-4001",
			Name:  "CS:GO Weapon Case",
			Image: validation.SteamImagePrefix + "case",
		},
		Item: model.Item{
			ID:     "skin-1",
			Name:   "AWP | Lightning Strike",
			Rarity: model.Rarity{Name: model.RarityCovert},
			Image:  validation.TrackerImagePrefix + "awp.png",
		},
	}
}

func TestUnbox_UnknownCase(t *testing.T) {
	repo := new(mockRepo)
	enqueuer := new(mockEnqueuer)
	s := newTestService(t, repo, enqueuer)

	_, err := s.Unbox(context.Background(), "crate-missing", unboxer)
	s.Wait()

	assert.ErrorIs(t, err, ErrCaseNotFound)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	enqueuer.AssertNotCalled(t, "EnqueueUnboxRecord", mock.Anything, mock.Anything)
}

func TestUnbox_StoresInProcessWithoutQueue(t *testing.T) {
	repo := &recordingRepo{}
	s := newTestService(t, repo, nil)

	item, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	require.NoError(t, err)

	c, _ := s.catalog.Case("crate-4001")
	assert.Contains(t, c.Items, item)

	assert.Eventually(t, func() bool { return len(repo.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	s.Wait()
	events := repo.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "crate-4001", events[0].CaseID)
	assert.Equal(t, c.Name, events[0].CaseName)
	assert.Equal(t, item.ID, events[0].ItemID)
	assert.Equal(t, item.Rarity.Name, events[0].Rarity)
	assert.Equal(t, unboxer, events[0].UnboxerID)
}

func TestUnbox_SurvivesRequestCancellation(t *testing.T) {
	repo := &recordingRepo{}
	s := newTestService(t, repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Unbox(ctx, "crate-4001", unboxer)
	require.NoError(t, err)
	cancel()

	s.Wait()
	assert.Len(t, repo.snapshot(), 1)
}

func TestUnbox_UsesQueue(t *testing.T) {
	repo := new(mockRepo)
	enqueuer := new(mockEnqueuer)
	enqueuer.On("EnqueueUnboxRecord", mock.Anything, mock.MatchedBy(func(r model.UnboxRecord) bool {
		return r.Payload.Case.ID == "crate-4001" && r.UnboxerID == unboxer
	})).Return(nil).Once()

	s := newTestService(t, repo, enqueuer)

	_, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	s.Wait()

	require.NoError(t, err)
	enqueuer.AssertExpectations(t)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUnbox_FallsBackWhenQueueFails(t *testing.T) {
	repo := &recordingRepo{}
	enqueuer := new(mockEnqueuer)
	enqueuer.On("EnqueueUnboxRecord", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

	s := newTestService(t, repo, enqueuer)

	_, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	require.NoError(t, err)

	s.Wait()
	assert.Len(t, repo.snapshot(), 1)
}

// stalledEnqueuer blocks until its context is done, like a client dialing an
// unreachable Redis.
type stalledEnqueuer struct {
	hadDeadline bool
}

func (e *stalledEnqueuer) EnqueueUnboxRecord(ctx context.Context, _ model.UnboxRecord) error {
	_, e.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func TestUnbox_EnqueueIsBounded(t *testing.T) {
	repo := &recordingRepo{}
	enqueuer := &stalledEnqueuer{}
	s := newTestService(t, repo, enqueuer)
	s.enqueueTimeout = 20 * time.Millisecond

	start := time.Now()
	_, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	took := time.Since(start)

	require.NoError(t, err)
	assert.True(t, enqueuer.hadDeadline)
	assert.Less(t, took, time.Second)

	s.Wait()
	assert.Len(t, repo.snapshot(), 1)
}

func TestNewUnboxService_EnqueueTimeoutDefault(t *testing.T) {
	s := newTestService(t, &recordingRepo{}, nil)
	assert.Equal(t, DefaultEnqueueTimeout, s.enqueueTimeout)
}

func TestDrain(t *testing.T) {
	t.Run("waits for pending writes", func(t *testing.T) {
		repo := &recordingRepo{}
		s := newTestService(t, repo, nil)

		_, err := s.Unbox(context.Background(), "crate-4001", unboxer)
		require.NoError(t, err)

		s.Drain()
		assert.Len(t, repo.snapshot(), 1)
	})

	t.Run("later draws are returned but not stored", func(t *testing.T) {
		repo := &recordingRepo{}
		enqueuer := new(mockEnqueuer)
		s := newTestService(t, repo, enqueuer)
		s.Drain()

		item, err := s.Unbox(context.Background(), "crate-4001", unboxer)
		s.Wait()

		require.NoError(t, err)
		assert.NotEmpty(t, item.ID)
		assert.Empty(t, repo.snapshot())
		enqueuer.AssertNotCalled(t, "EnqueueUnboxRecord", mock.Anything, mock.Anything)
	})

	t.Run("concurrent draws during drain never write after it returns", func(t *testing.T) {
		repo := &recordingRepo{}
		s := newTestService(t, repo, nil)

		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Unbox(context.Background(), "crate-4001", unboxer)
			}()
		}

		s.Drain()
		stored := len(repo.snapshot())

		wg.Wait()
		s.Wait()
		assert.Equal(t, stored, len(repo.snapshot()))
	})
}

func TestUnbox_WriteFailureDoesNotFailTheDraw(t *testing.T) {
	repo := &recordingRepo{err: errors.New("connection refused")}
	s := newTestService(t, repo, nil)

	item, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	s.Wait()

	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
}

func TestUnbox_CustomCaseIsNeverStored(t *testing.T) {
	repo := new(mockRepo)
	enqueuer := new(mockEnqueuer)
	s := newTestService(t, repo, enqueuer)

	item, err := s.Unbox(context.Background(), "custom-mine", unboxer)
	s.Wait()

	require.NoError(t, err)
	assert.Equal(t, "skin-1", item.ID)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	enqueuer.AssertNotCalled(t, "EnqueueUnboxRecord", mock.Anything, mock.Anything)
}

func TestUnbox_DrawsRareTierForHighRoll(t *testing.T) {
	logger := zerolog.Nop()
	s := NewUnboxService(&recordingRepo{}, testCatalog(t), catalog.NewDrawer(fixedSource(math.MaxUint64)), nil, &logger)

	item, err := s.Unbox(context.Background(), "crate-4001", unboxer)
	s.Wait()

	require.NoError(t, err)
	assert.Equal(t, model.RarityExtraordinary, item.Rarity.Name)
}

func TestSave(t *testing.T) {
	t.Run("valid payload is stored", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("Insert", mock.Anything, model.NewUnboxEvent(validPayload(), unboxer)).
			Return(&model.UnboxEvent{ID: 7}, nil).Once()

		event, err := newTestService(t, repo, nil).Save(context.Background(), validPayload(), unboxer)

		require.NoError(t, err)
		assert.Equal(t, int64(7), event.ID)
		repo.AssertExpectations(t)
	})

	t.Run("untrusted image is rejected", func(t *testing.T) {
		repo := new(mockRepo)
		p := validPayload()
		p.Item.Image = "https://evil.example.com/awp.png"

		_, err := newTestService(t, repo, nil).Save(context.Background(), p, unboxer)

		assert.ErrorIs(t, err, ErrInvalidPayload)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("database error is returned", func(t *testing.T) {
		repo := new(mockRepo)
		dbErr := errors.New("connection refused")
		repo.On("Insert", mock.Anything, mock.Anything).Return(nil, dbErr).Once()

		_, err := newTestService(t, repo, nil).Save(context.Background(), validPayload(), unboxer)

		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestSaveBatch(t *testing.T) {
	t.Run("all payloads are stored together", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []model.UnboxEvent) bool {
			return len(events) == 3 && events[2].UnboxerID == unboxer
		})).Return(int64(3), nil).Once()

		n, err := newTestService(t, repo, nil).SaveBatch(context.Background(),
			[]model.UnboxPayload{validPayload(), validPayload(), validPayload()}, unboxer)

		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		repo.AssertExpectations(t)
	})

	t.Run("one invalid entry rejects the batch", func(t *testing.T) {
		repo := new(mockRepo)
		bad := validPayload()
		bad.Case.Image = "https://evil.example.com/case.png"

		_, err := newTestService(t, repo, nil).SaveBatch(context.Background(),
			[]model.UnboxPayload{validPayload(), bad}, unboxer)

		assert.ErrorIs(t, err, ErrInvalidPayload)
		repo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)

		httpErr := validation.ToHTTPError(err)
		require.Len(t, httpErr.Errors, 1)
		assert.Equal(t, "unboxes[1].case.image", httpErr.Errors[0].Field)
	})

	t.Run("size bounds", func(t *testing.T) {
		repo := new(mockRepo)
		s := newTestService(t, repo, nil)

		_, err := s.SaveBatch(context.Background(), nil, unboxer)
		assert.ErrorIs(t, err, ErrInvalidPayload)

		tooMany := make([]model.UnboxPayload, MaxBatchSize+1)
		for i := range tooMany {
			tooMany[i] = validPayload()
		}
		_, err = s.SaveBatch(context.Background(), tooMany, unboxer)
		assert.ErrorIs(t, err, ErrInvalidPayload)

		repo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
	})
}

func TestListAndCount(t *testing.T) {
	repo := new(mockRepo)
	f := model.UnboxFilter{OnlyCoverts: true, OnlyPersonal: true, UnboxerID: unboxer}

	repo.On("List", mock.Anything, f, model.MaxRecentUnboxes).
		Return([]model.UnboxEvent{{ID: 2}, {ID: 1}}, nil).Once()
	repo.On("Count", mock.Anything, f).
		Return(model.UnboxCount{Total: 2, Exact: true}, nil).Once()

	s := newTestService(t, repo, nil)

	events, err := s.List(context.Background(), f)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	count, err := s.Count(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, model.UnboxCount{Total: 2, Exact: true}, count)

	repo.AssertExpectations(t)
}

func TestCase(t *testing.T) {
	s := newTestService(t, new(mockRepo), nil)

	c, err := s.Case("crate-4001")
	require.NoError(t, err)
	assert.Equal(t, "crate-4001", c.ID)

	_, err = s.Case("nope")
	assert.ErrorIs(t, err, ErrCaseNotFound)

	assert.NotEmpty(t, s.Cases())
}
