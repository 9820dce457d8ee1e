package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"iceflux/internal/core/domain"
	apperrors "iceflux/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type MockStatusFetcher struct {
	mock.Mock
}

func (m *MockStatusFetcher) FetchStatus(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockStatusParser struct {
	mock.Mock
}

func (m *MockStatusParser) Parse(raw string) (domain.StatusSnapshot, error) {
	args := m.Called(raw)
	return args.Get(0).(domain.StatusSnapshot), args.Error(1)
}

type MockMetricPublisher struct {
	mock.Mock
}

func (m *MockMetricPublisher) Publish(ctx context.Context, points []domain.MetricPoint) error {
	args := m.Called(ctx, points)
	return args.Error(0)
}

type MockCycleLease struct {
	mock.Mock
}

func (m *MockCycleLease) Acquire(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

type recordingObserver struct {
	mu        sync.Mutex
	succeeded []domain.CycleReport
	skipped   []domain.CycleReport
	failed    []domain.CycleStep
}

func (o *recordingObserver) CycleSucceeded(report domain.CycleReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeeded = append(o.succeeded, report)
}

func (o *recordingObserver) CycleSkipped(report domain.CycleReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped = append(o.skipped, report)
}

func (o *recordingObserver) CycleFailed(step domain.CycleStep, _ error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, step)
}

type collectorFixture struct {
	fetcher   *MockStatusFetcher
	parser    *MockStatusParser
	publisher *MockMetricPublisher
	observer  *recordingObserver
	collector *Collector
}

var fixedNow = time.Unix(0, fixtureTimestamp)

func newCollectorFixture(config CollectorConfig, opts ...CollectorOption) *collectorFixture {
	f := &collectorFixture{
		fetcher:   new(MockStatusFetcher),
		parser:    new(MockStatusParser),
		publisher: new(MockMetricPublisher),
		observer:  &recordingObserver{},
	}
	if config.HostLabel == "" {
		config.HostLabel = "radio1"
	}
	opts = append([]CollectorOption{
		WithObserver(f.observer),
		WithClock(func() time.Time { return fixedNow }),
		WithCycleIDs(func() string { return "cycle-1" }),
	}, opts...)

	f.collector = NewCollector(config, f.fetcher, f.parser, NewMapper(MissingMountFail),
		f.publisher, zap.NewNop().Sugar(), opts...)
	return f
}

func jazzAndRock() domain.StatusSnapshot {
	return domain.StatusSnapshot{Mounts: []domain.MountRecord{mount("jazz", 5), mount("rock", 12)}}
}

func TestCollector_RunCycle_PublishesOneBatch(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	f.fetcher.On("FetchStatus", mock.Anything).Return("<icestats/>", nil).Once()
	f.parser.On("Parse", "<icestats/>").Return(jazzAndRock(), nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.MatchedBy(func(points []domain.MetricPoint) bool {
		return assert.ObjectsAreEqual([]string{
			"listeners{host=radio1, mount=jazz} value=5 @1700000000000000000",
			"listeners{host=radio1, mount=rock} value=12 @1700000000000000000",
			"listenerstotal{host=radio1} value=17 @1700000000000000000",
		}, rendered(points))
	})).Return(nil).Once()

	report, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cycle-1", report.ID)
	assert.Equal(t, fixedNow, report.Timestamp)
	assert.Equal(t, 2, report.Mounts)
	assert.Equal(t, 3, report.Points)
	assert.Equal(t, int64(17), report.TotalListeners)
	assert.False(t, report.Skipped)
	assert.Len(t, f.observer.succeeded, 1)

	f.fetcher.AssertExpectations(t)
	f.parser.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestCollector_RunCycle_FetchStatusErrorPublishesNothing(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	f.fetcher.On("FetchStatus", mock.Anything).
		Return("", apperrors.NewFetchStatusError(401, "http://radio1:8000/admin/listmounts")).Once()

	_, err := f.collector.RunCycle(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))
	assert.Equal(t, 401, apperrors.GetAppError(err).StatusCode)

	f.parser.AssertNotCalled(t, "Parse", mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.CycleStep{domain.StepFetch}, f.observer.failed)
}

func TestCollector_RunCycle_ParseErrorPublishesNothing(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	f.fetcher.On("FetchStatus", mock.Anything).Return("not xml", nil).Once()
	f.parser.On("Parse", "not xml").
		Return(domain.StatusSnapshot{}, apperrors.NewParseError(errors.New("EOF"), "malformed")).Once()

	_, err := f.collector.RunCycle(context.Background())
	assert.True(t, apperrors.IsParseError(err))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.CycleStep{domain.StepParse}, f.observer.failed)
}

func TestCollector_RunCycle_MapErrorPublishesNothing(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	f.fetcher.On("FetchStatus", mock.Anything).Return("doc", nil).Once()
	f.parser.On("Parse", "doc").
		Return(domain.StatusSnapshot{Mounts: []domain.MountRecord{anonymous(3)}}, nil).Once()

	_, err := f.collector.RunCycle(context.Background())
	assert.True(t, apperrors.IsMapError(err))
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Equal(t, []domain.CycleStep{domain.StepMap}, f.observer.failed)
}

func TestCollector_RunCycle_PublishError(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	f.fetcher.On("FetchStatus", mock.Anything).Return("doc", nil).Once()
	f.parser.On("Parse", "doc").Return(jazzAndRock(), nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything).
		Return(apperrors.NewPublishError(errors.New("connection refused"), "write failed")).Once()

	_, err := f.collector.RunCycle(context.Background())
	assert.True(t, apperrors.IsPublishError(err))
	assert.Equal(t, []domain.CycleStep{domain.StepPublish}, f.observer.failed)
	assert.Empty(t, f.observer.succeeded)
}

func TestCollector_RunCycle_CyclesAreIndependent(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{})

	var published [][]string
	f.fetcher.On("FetchStatus", mock.Anything).Return("first", nil).Once()
	f.fetcher.On("FetchStatus", mock.Anything).Return("second", nil).Once()
	f.parser.On("Parse", "first").Return(jazzAndRock(), nil).Once()
	f.parser.On("Parse", "second").
		Return(domain.StatusSnapshot{Mounts: []domain.MountRecord{mount("news", 1)}}, nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) {
			published = append(published, rendered(args.Get(1).([]domain.MetricPoint)))
		}).Twice()

	_, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)
	second, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, published, 2)
	assert.Equal(t, []string{
		"listeners{host=radio1, mount=news} value=1 @1700000000000000000",
		"listenerstotal{host=radio1} value=1 @1700000000000000000",
	}, published[1])
	assert.Equal(t, int64(1), second.TotalListeners)
}

func TestCollector_RunCycle_LeaseHeldElsewhereSkips(t *testing.T) {
	lease := new(MockCycleLease)
	lease.On("Acquire", mock.Anything).Return(false, nil).Once()
	f := newCollectorFixture(CollectorConfig{}, WithLease(lease))

	report, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Len(t, f.observer.skipped, 1)

	f.fetcher.AssertNotCalled(t, "FetchStatus", mock.Anything)
	lease.AssertExpectations(t)
}

func TestCollector_RunCycle_LeaseErrorSkipsWithoutFailing(t *testing.T) {
	lease := new(MockCycleLease)
	lease.On("Acquire", mock.Anything).Return(false, errors.New("redis: connection refused")).Once()
	f := newCollectorFixture(CollectorConfig{}, WithLease(lease))

	_, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.CycleStep{domain.StepLease}, f.observer.failed)
	f.fetcher.AssertNotCalled(t, "FetchStatus", mock.Anything)
}

func TestCollector_RunCycle_LeaseHeldRunsCycle(t *testing.T) {
	lease := new(MockCycleLease)
	lease.On("Acquire", mock.Anything).Return(true, nil).Once()
	f := newCollectorFixture(CollectorConfig{}, WithLease(lease))

	f.fetcher.On("FetchStatus", mock.Anything).Return("doc", nil).Once()
	f.parser.On("Parse", "doc").Return(jazzAndRock(), nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	report, err := f.collector.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	f.publisher.AssertExpectations(t)
}

func TestCollector_Run_ExitPolicyStopsOnFirstError(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{Interval: time.Millisecond, OnError: OnErrorExit})

	f.fetcher.On("FetchStatus", mock.Anything).
		Return("", apperrors.NewFetchTransportError(errors.New("dial tcp: refused"), "http://radio1")).Once()

	err := f.collector.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))
	f.fetcher.AssertNumberOfCalls(t, "FetchStatus", 1)
}

func TestCollector_Run_ContinuePolicyKeepsPolling(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{Interval: time.Millisecond, OnError: OnErrorContinue})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	f.fetcher.On("FetchStatus", mock.Anything).
		Return("", apperrors.NewFetchStatusError(503, "http://radio1")).
		Run(func(mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 3 {
				cancel()
			}
		})

	err := f.collector.Run(ctx)
	require.NoError(t, err)

	f.fetcher.AssertNumberOfCalls(t, "FetchStatus", 3)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	assert.Len(t, f.observer.failed, 3)
}

func TestCollector_Run_CancelledBeforeStart(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.collector.Run(ctx))
	f.fetcher.AssertNotCalled(t, "FetchStatus", mock.Anything)
}

func TestCollector_Run_ShutdownDoesNotAbortInFlightCycle(t *testing.T) {
	f := newCollectorFixture(CollectorConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.fetcher.On("FetchStatus", mock.Anything).Return("doc", nil).
		Run(func(args mock.Arguments) {
			cancel()
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).Once()
	f.parser.On("Parse", "doc").Return(jazzAndRock(), nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) {
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).Once()

	require.NoError(t, f.collector.Run(ctx))
	f.publisher.AssertExpectations(t)
	assert.Len(t, f.observer.succeeded, 1)
}

func TestCollector_NextDelay(t *testing.T) {
	start := time.Unix(100, 0)

	tests := []struct {
		name     string
		schedule string
		took     time.Duration
		want     time.Duration
	}{
		{"fixed delay ignores cycle duration", ScheduleFixedDelay, 4 * time.Second, 30 * time.Second},
		{"fixed rate subtracts cycle duration", ScheduleFixedRate, 4 * time.Second, 26 * time.Second},
		{"fixed rate overrun starts immediately", ScheduleFixedRate, 45 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(CollectorConfig{Interval: 30 * time.Second, Schedule: tt.schedule},
				nil, nil, NewMapper(""), nil, zap.NewNop().Sugar())
			assert.Equal(t, tt.want, c.nextDelay(start, start.Add(tt.took)))
		})
	}
}
