// Package testutil provides shared mock implementations of domain
// interfaces for use in tests across the codebase.
package testutil

import (
	"context"
	"time"

	"tidemark/internal/domain"
)

// === Watermark Repository Mock ===

// MockWatermarkRepo implements domain.WatermarkRepository for testing. It
// keeps an in-memory record per stream and collects the write sequence for
// assertions.
type MockWatermarkRepo struct {
	GetFn      func(ctx context.Context, stream string) (*domain.Watermark, error)
	AdvanceFn  func(ctx context.Context, stream string, unit domain.Unit) error
	FailedFn   func(ctx context.Context, stream string, boundary domain.Unit, errMsg string) error
	Records    map[string]*domain.Watermark
	Advances   []domain.Unit
	Failures   []domain.Unit
	LastErrMsg string
}

func NewMockWatermarkRepo() *MockWatermarkRepo {
	return &MockWatermarkRepo{Records: map[string]*domain.Watermark{}}
}

func (m *MockWatermarkRepo) Get(ctx context.Context, stream string) (*domain.Watermark, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, stream)
	}
	return m.Records[stream], nil
}

func (m *MockWatermarkRepo) Advance(ctx context.Context, stream string, unit domain.Unit) error {
	if m.AdvanceFn != nil {
		if err := m.AdvanceFn(ctx, stream, unit); err != nil {
			return err
		}
	}
	m.Advances = append(m.Advances, unit)
	cur := m.Records[stream]
	if cur == nil || unit > cur.WaterMark {
		m.Records[stream] = &domain.Watermark{
			StreamName: stream, WaterMark: unit,
			Status: domain.WatermarkStatusSuccess, LastRunAt: time.Now(),
		}
	} else {
		cur.Status = domain.WatermarkStatusSuccess
	}
	return nil
}

func (m *MockWatermarkRepo) MarkFailed(ctx context.Context, stream string, boundary domain.Unit, errMsg string) error {
	if m.FailedFn != nil {
		if err := m.FailedFn(ctx, stream, boundary, errMsg); err != nil {
			return err
		}
	}
	m.Failures = append(m.Failures, boundary)
	m.LastErrMsg = errMsg
	cur := m.Records[stream]
	mark := boundary
	if cur != nil && cur.WaterMark > mark {
		mark = cur.WaterMark
	}
	m.Records[stream] = &domain.Watermark{
		StreamName: stream, WaterMark: mark,
		Status: domain.WatermarkStatusFailed, LastRunAt: time.Now(), LastErr: &errMsg,
	}
	return nil
}

func (m *MockWatermarkRepo) Init(ctx context.Context, stream string, boundary domain.Unit) error {
	if _, ok := m.Records[stream]; ok {
		return domain.ErrConfiguration("stream %s is already initialized", stream)
	}
	m.Records[stream] = &domain.Watermark{
		StreamName: stream, WaterMark: boundary,
		Status: domain.WatermarkStatusSuccess, LastRunAt: time.Now(),
	}
	return nil
}

func (m *MockWatermarkRepo) List(ctx context.Context) ([]domain.Watermark, error) {
	var out []domain.Watermark
	for _, wm := range m.Records {
		out = append(out, *wm)
	}
	return out, nil
}

var _ domain.WatermarkRepository = (*MockWatermarkRepo)(nil)

// === Run Log Repository Mock ===

// MockRunLogRepo implements domain.RunLogRepository for testing.
type MockRunLogRepo struct {
	StartFn  func(ctx context.Context, runID, stream string, runType domain.RunType) (int64, error)
	FinishFn func(ctx context.Context, id int64, status domain.RunStatus, errMsg *string, requestCount, failCount int) error
	Started  []domain.RunRecord
	Finished []domain.RunRecord
	nextID   int64
}

func (m *MockRunLogRepo) Start(ctx context.Context, runID, stream string, runType domain.RunType) (int64, error) {
	if m.StartFn != nil {
		return m.StartFn(ctx, runID, stream, runType)
	}
	m.nextID++
	m.Started = append(m.Started, domain.RunRecord{
		ID: m.nextID, RunID: runID, StreamName: stream, RunType: runType,
		StartAt: time.Now(), Status: domain.RunStatusRunning,
	})
	return m.nextID, nil
}

func (m *MockRunLogRepo) Finish(ctx context.Context, id int64, status domain.RunStatus, errMsg *string, requestCount, failCount int) error {
	if m.FinishFn != nil {
		return m.FinishFn(ctx, id, status, errMsg, requestCount, failCount)
	}
	now := time.Now()
	m.Finished = append(m.Finished, domain.RunRecord{
		ID: id, Status: status, ErrMsg: errMsg, EndAt: &now,
		RequestCount: requestCount, FailCount: failCount,
	})
	return nil
}

func (m *MockRunLogRepo) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	return m.Finished, nil
}

func (m *MockRunLogRepo) MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]int64, error) {
	return nil, nil
}

// LastFinished returns the most recently closed record, or nil.
func (m *MockRunLogRepo) LastFinished() *domain.RunRecord {
	if len(m.Finished) == 0 {
		return nil
	}
	return &m.Finished[len(m.Finished)-1]
}

var _ domain.RunLogRepository = (*MockRunLogRepo)(nil)

// === Calendar Repository Mock ===

// MockCalendarRepo implements domain.CalendarRepository over a fixed set of
// open dates.
type MockCalendarRepo struct {
	OpenDates []domain.Unit
}

func (m *MockCalendarRepo) ListOpenDates(ctx context.Context, lower, upper domain.Unit) ([]domain.Unit, error) {
	var out []domain.Unit
	for _, d := range m.OpenDates {
		if d >= lower && d <= upper {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockCalendarRepo) ReplaceRange(ctx context.Context, days []domain.CalendarDay) error {
	for _, d := range days {
		if d.IsOpen {
			m.OpenDates = append(m.OpenDates, d.Date)
		}
	}
	return nil
}

var _ domain.CalendarRepository = (*MockCalendarRepo)(nil)

// === Guard Repository Mock ===

// MockGuardRepo implements domain.GuardRepository in memory.
type MockGuardRepo struct {
	GetFn    func(ctx context.Context, task, key string) (*domain.GuardRecord, error)
	UpsertFn func(ctx context.Context, rec *domain.GuardRecord) error
	Records  map[domain.GuardKey]*domain.GuardRecord
	Upserts  []domain.GuardRecord
}

func NewMockGuardRepo() *MockGuardRepo {
	return &MockGuardRepo{Records: map[domain.GuardKey]*domain.GuardRecord{}}
}

func (m *MockGuardRepo) Get(ctx context.Context, task, key string) (*domain.GuardRecord, error) {
	if m.GetFn != nil {
		return m.GetFn(ctx, task, key)
	}
	rec, ok := m.Records[domain.GuardKey{TaskName: task, IdempotencyKey: key}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MockGuardRepo) Upsert(ctx context.Context, rec *domain.GuardRecord) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(ctx, rec); err != nil {
			return err
		}
	}
	cp := *rec
	m.Records[domain.GuardKey{TaskName: rec.TaskName, IdempotencyKey: rec.IdempotencyKey}] = &cp
	m.Upserts = append(m.Upserts, cp)
	return nil
}

func (m *MockGuardRepo) MarkStaleFailed(ctx context.Context, cutoff time.Time, reason string, dryRun bool) ([]domain.GuardKey, error) {
	var keys []domain.GuardKey
	for k, rec := range m.Records {
		if rec.Status == domain.GuardStatusRunning && rec.StartedAt.Before(cutoff) {
			keys = append(keys, k)
			if !dryRun {
				rec.Status = domain.GuardStatusFailed
			}
		}
	}
	return keys, nil
}

var _ domain.GuardRepository = (*MockGuardRepo)(nil)
