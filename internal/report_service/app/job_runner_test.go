package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cohortanalysis/golang_services/internal/core_domain"
	"github.com/cohortanalysis/golang_services/internal/report_service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

type memJobStore struct {
	mu      sync.Mutex
	records map[string]domain.ReportJobRecord
	saves   []domain.JobStatus
}

func newMemJobStore() *memJobStore {
	return &memJobStore{records: map[string]domain.ReportJobRecord{}}
}

func (s *memJobStore) Save(_ context.Context, rec *domain.ReportJobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = *rec
	s.saves = append(s.saves, rec.Status)
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*domain.ReportJobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

type MockVariantFetcher struct {
	mock.Mock
}

func (m *MockVariantFetcher) Variant(name string) (domain.ReportVariant, error) {
	args := m.Called(name)
	return args.Get(0).(domain.ReportVariant), args.Error(1)
}

func (m *MockVariantFetcher) FetchVariant(ctx context.Context, sellerID, name string) (*domain.ReportPreview, error) {
	args := m.Called(ctx, sellerID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReportPreview), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// --- Test Setup ---

var ordersVariant = domain.ReportVariant{Name: "orders", ReportType: "GET_FLAT_FILE_ALL_ORDERS_DATA_BY_ORDER_DATE_GENERAL", Window: domain.WindowPolicy{Kind: domain.WindowRelative, Days: 30}}

func setupRunner(t *testing.T, cfg JobRunnerConfig) (*JobRunner, *MockVariantFetcher, *memJobStore, *MockPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reports := new(MockVariantFetcher)
	store := newMemJobStore()
	pub := new(MockPublisher)
	return NewJobRunner(reports, store, pub, logger, cfg), reports, store, pub
}

func startRunner(t *testing.T, r *JobRunner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
	})
}

func waitDone(t *testing.T, r *JobRunner, id string) *domain.ReportJobRecord {
	t.Helper()
	var rec *domain.ReportJobRecord
	require.Eventually(t, func() bool {
		got, err := r.Get(context.Background(), id)
		if err != nil || !got.Done() {
			return false
		}
		rec = got
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return rec
}

// --- Tests ---

func TestJobRunner_Success(t *testing.T) {
	r, reports, store, pub := setupRunner(t, JobRunnerConfig{Workers: 2, QueueSize: 4})
	preview := &domain.ReportPreview{ReportID: "R1", DocumentID: "D1", TotalLength: 2, Preview: "ok"}

	reports.On("Variant", "orders").Return(ordersVariant, nil).Once()
	reports.On("FetchVariant", mock.Anything, "A1SELLER", "orders").Return(preview, nil).Once()

	published := make(chan domain.ReportCompletedEvent, 1)
	pub.On("Publish", mock.Anything, SubjectReportJobCompleted, mock.Anything).Run(func(args mock.Arguments) {
		var ev domain.ReportCompletedEvent
		assert.NoError(t, json.Unmarshal(args.Get(2).([]byte), &ev))
		published <- ev
	}).Return(nil).Once()

	startRunner(t, r)
	rec, err := r.Submit(context.Background(), "A1SELLER", "orders")
	require.NoError(t, err)
	assert.Equal(t, domain.JobQueued, rec.Status)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ordersVariant.ReportType, rec.ReportType)

	final := waitDone(t, r, rec.ID)
	assert.Equal(t, domain.JobSucceeded, final.Status)
	assert.Equal(t, preview, final.Result)
	assert.Empty(t, final.ErrorKind)

	select {
	case ev := <-published:
		assert.Equal(t, rec.ID, ev.JobID)
		assert.Equal(t, "R1", ev.ReportID)
		assert.Equal(t, domain.JobSucceeded, ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("completion event not published")
	}

	store.mu.Lock()
	assert.Equal(t, []domain.JobStatus{domain.JobQueued, domain.JobRunning, domain.JobSucceeded}, store.saves)
	store.mu.Unlock()
}

func TestJobRunner_FailureKinds(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      string
		wantRetryable bool
	}{
		{"poll timeout", &domain.ReportError{Kind: domain.ErrPollTimeout, ReportID: "R1"}, "PollTimeout", true},
		{"cancelled report", &domain.ReportError{Kind: domain.ErrReportCancelled, ReportID: "R1", LastStatus: domain.StatusFatal}, "ReportCancelled", false},
		{"unknown seller", core_domain.ErrCredentialNotFound, "NotFound", false},
		{"other", errors.New("boom"), "Internal", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, reports, _, pub := setupRunner(t, JobRunnerConfig{Workers: 1, QueueSize: 1})
			reports.On("Variant", "orders").Return(ordersVariant, nil).Once()
			reports.On("FetchVariant", mock.Anything, "A1SELLER", "orders").Return(nil, tt.err).Once()
			pub.On("Publish", mock.Anything, SubjectReportJobCompleted, mock.Anything).Return(nil).Once()

			startRunner(t, r)
			rec, err := r.Submit(context.Background(), "A1SELLER", "orders")
			require.NoError(t, err)

			final := waitDone(t, r, rec.ID)
			assert.Equal(t, domain.JobFailed, final.Status)
			assert.Equal(t, tt.wantKind, final.ErrorKind)
			assert.Equal(t, tt.wantRetryable, final.Retryable)
			assert.Equal(t, tt.err.Error(), final.Error)
			assert.Nil(t, final.Result)
		})
	}
}

func TestJobRunner_Submit_UnknownVariant(t *testing.T) {
	r, reports, store, _ := setupRunner(t, JobRunnerConfig{Workers: 1, QueueSize: 1})
	reports.On("Variant", "nope").Return(domain.ReportVariant{}, domain.ErrUnknownVariant).Once()

	_, err := r.Submit(context.Background(), "A1SELLER", "nope")

	assert.True(t, errors.Is(err, domain.ErrUnknownVariant))
	assert.Empty(t, store.records)
}

func TestJobRunner_Submit_QueueFull(t *testing.T) {
	// No workers are started, so the single queue slot stays occupied.
	r, reports, store, _ := setupRunner(t, JobRunnerConfig{Workers: 1, QueueSize: 1})
	reports.On("Variant", "orders").Return(ordersVariant, nil).Twice()

	_, err := r.Submit(context.Background(), "A1SELLER", "orders")
	require.NoError(t, err)

	rec, err := r.Submit(context.Background(), "A1SELLER", "orders")
	assert.True(t, errors.Is(err, domain.ErrQueueFull))
	require.NotNil(t, rec)

	stored, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, stored.Status)
	assert.Equal(t, "QueueFull", stored.ErrorKind)
	assert.True(t, stored.Retryable)
}

func TestJobRunner_Get_NotFound(t *testing.T) {
	r, _, _, _ := setupRunner(t, JobRunnerConfig{})
	_, err := r.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
