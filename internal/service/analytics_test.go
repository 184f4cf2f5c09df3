package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/models"
)

type fakeTaskSource struct {
	tasks    []models.Task
	subtasks []models.Subtask
	calls    int
}

func (f *fakeTaskSource) List(context.Context, bool) ([]models.Task, error) {
	f.calls++
	return f.tasks, nil
}

func (f *fakeTaskSource) ListAllSubtasks(context.Context) ([]models.Subtask, error) {
	return f.subtasks, nil
}

type fakeProjectSource struct {
	projects []models.Project
}

func (f *fakeProjectSource) List(context.Context) ([]models.Project, error) {
	return f.projects, nil
}

type fakeActivitySource struct {
	entries  []models.ActivityEntry
	inserted []models.ActivityEntry
}

func (f *fakeActivitySource) Insert(_ context.Context, e *models.ActivityEntry) error {
	f.inserted = append(f.inserted, *e)
	return nil
}

func (f *fakeActivitySource) ListSince(_ context.Context, since time.Time) ([]models.ActivityEntry, error) {
	var out []models.ActivityEntry
	for _, e := range f.entries {
		if !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeActivitySource) CountUniqueVisitorsSince(_ context.Context, since time.Time) (int64, error) {
	seen := make(map[string]bool)
	for _, e := range f.entries {
		if !e.CreatedAt.Before(since) {
			seen[e.VisitorID] = true
		}
	}
	return int64(len(seen)), nil
}

type fakeVisitorSource struct {
	visits []string
}

func (f *fakeVisitorSource) RecordVisit(_ context.Context, visitorID string) error {
	f.visits = append(f.visits, visitorID)
	return nil
}

type analyticsFixture struct {
	svc      *AnalyticsService
	tasks    *fakeTaskSource
	activity *fakeActivitySource
	visitors *fakeVisitorSource
	cache    *cache.Manager
	now      time.Time
}

func newAnalyticsFixture(t *testing.T) *analyticsFixture {
	t.Helper()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	f := &analyticsFixture{
		tasks: &fakeTaskSource{
			tasks: []models.Task{
				{ID: "t-1", ProjectID: "p-1", Priority: 2},
				{ID: "t-2", ProjectID: "p-1", Priority: 5},
				{ID: "t-3", ProjectID: "p-2", Priority: 8},
				{ID: "t-4", ProjectID: "p-2", Priority: 0},
			},
			subtasks: []models.Subtask{
				{ID: "s-1", TaskID: "t-1"},
				{ID: "s-2", TaskID: "t-1"},
			},
		},
		activity: &fakeActivitySource{},
		visitors: &fakeVisitorSource{},
		cache:    cache.New(zap.NewNop()),
		now:      now,
	}
	t.Cleanup(f.cache.Close)

	projects := &fakeProjectSource{projects: []models.Project{
		{ID: "p-1", Name: "North Route"},
		{ID: "p-2", Name: "South Route"},
	}}
	f.svc = NewAnalyticsService(f.tasks, projects, f.activity, f.visitors, f.cache, nil, zap.NewNop())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestSummaryRejectsBadRange(t *testing.T) {
	f := newAnalyticsFixture(t)
	for _, r := range []int{0, 1, 14, 365} {
		_, err := f.svc.Summary(context.Background(), r)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestSummaryPriorityBuckets(t *testing.T) {
	f := newAnalyticsFixture(t)

	snap, err := f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.TotalTasks)
	assert.Equal(t, 2, snap.TotalSubtasks)
	assert.Equal(t, 2, snap.TotalProjects)
	assert.Equal(t, 1, snap.HighPriorityTasks)
	assert.Equal(t, 1, snap.MediumPriorityTasks)
	assert.Equal(t, 1, snap.LowPriorityTasks)
	assert.Equal(t, 1, snap.NoPriorityTasks)

	p1 := snap.ProjectStats["p-1"]
	assert.Equal(t, "North Route", p1.Name)
	assert.Equal(t, 2, p1.TaskCount)
	assert.Equal(t, 2, p1.SubtaskCount)
	assert.Equal(t, 1, p1.HighPriority)
}

func TestSummaryCountsTaskCreationsThisWeek(t *testing.T) {
	f := newAnalyticsFixture(t)

	// Ten entries in range, three of them task creations this week.
	for i := range 3 {
		f.activity.entries = append(f.activity.entries, models.ActivityEntry{
			Action:    models.ActionTaskCreated,
			CreatedAt: f.now.AddDate(0, 0, -i),
		})
	}
	for i := range 5 {
		f.activity.entries = append(f.activity.entries, models.ActivityEntry{
			Action:    models.ActionVisit,
			CreatedAt: f.now.AddDate(0, 0, -(i % 3)),
		})
	}
	// Subtask creations must not count as task creations.
	f.activity.entries = append(f.activity.entries,
		models.ActivityEntry{Action: models.ActionSubtaskCreated, CreatedAt: f.now},
		models.ActivityEntry{Action: models.ActionSubtaskCreated, CreatedAt: f.now.AddDate(0, 0, -1)},
	)

	snap, err := f.svc.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 3, snap.TasksCreatedThisWeek)
	assert.Equal(t, 0, snap.TasksCreatedLastWeek)
	assert.Equal(t, 5, snap.VisitsThisWeek)
}

func TestSummaryUniqueVisitors(t *testing.T) {
	f := newAnalyticsFixture(t)

	// Three visitors in range, one of them visiting twice; one more
	// outside the range must not count.
	f.activity.entries = []models.ActivityEntry{
		{VisitorID: "v-1", Action: models.ActionVisit, CreatedAt: f.now},
		{VisitorID: "v-1", Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -1)},
		{VisitorID: "v-2", Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -2)},
		{VisitorID: "v-3", Action: models.ActionTaskCreated, CreatedAt: f.now.AddDate(0, 0, -3)},
		{VisitorID: "v-4", Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -20)},
	}

	snap, err := f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.UniqueVisitors)
}

func TestSummaryWeekOverWeekSplit(t *testing.T) {
	f := newAnalyticsFixture(t)

	f.activity.entries = []models.ActivityEntry{
		{Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -2)},
		{Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -9)},
		{Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -10)},
		// Outside both windows.
		{Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -20)},
	}

	snap, err := f.svc.Summary(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 1, snap.VisitsThisWeek)
	assert.Equal(t, 2, snap.VisitsLastWeek)
}

func TestSummaryDailyBucketsZeroInitialized(t *testing.T) {
	f := newAnalyticsFixture(t)

	f.activity.entries = []models.ActivityEntry{
		{Action: models.ActionVisit, CreatedAt: f.now},
		{Action: models.ActionVisit, CreatedAt: f.now.AddDate(0, 0, -3)},
		{Action: models.ActionSubtaskCreated, CreatedAt: f.now},
	}

	snap, err := f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)

	require.Len(t, snap.Daily, 7)
	// Oldest bucket first, today last.
	assert.Equal(t, f.now.AddDate(0, 0, -6).Format("2006-01-02"), snap.Daily[0].Date)
	today := snap.Daily[6]
	assert.Equal(t, f.now.Format("2006-01-02"), today.Date)
	assert.Equal(t, 1, today.Visits)
	assert.Equal(t, 1, today.SubtasksCreated)
	assert.Equal(t, 0, today.TasksCreated)
	assert.Equal(t, 1, snap.Daily[3].Visits)
	// A day with no activity stays zeroed rather than missing.
	assert.Equal(t, models.DailyActivity{Date: snap.Daily[1].Date}, snap.Daily[1])
}

func TestSummaryIsCached(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	_, err = f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tasks.calls)

	// A different range computes its own snapshot.
	_, err = f.svc.Summary(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tasks.calls)
}

func TestLogVisitRecordsAndInvalidates(t *testing.T) {
	f := newAnalyticsFixture(t)

	_, err := f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 1, f.tasks.calls)

	require.NoError(t, f.svc.LogVisit(context.Background(), "v-1"))

	assert.Equal(t, []string{"v-1"}, f.visitors.visits)
	require.Len(t, f.activity.inserted, 1)
	assert.Equal(t, models.ActionVisit, f.activity.inserted[0].Action)
	assert.Equal(t, "v-1", f.activity.inserted[0].VisitorID)

	// The cached snapshot was invalidated, so the next read recomputes.
	_, err = f.svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tasks.calls)
}

func TestLogVisitRequiresVisitorID(t *testing.T) {
	f := newAnalyticsFixture(t)
	err := f.svc.LogVisit(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestHealthScoreCaps(t *testing.T) {
	assert.Equal(t, 50, healthScore(0))
	assert.Equal(t, 60, healthScore(100))
	assert.Equal(t, 100, healthScore(500))
	assert.Equal(t, 100, healthScore(10000))
}

func TestPriorityBucket(t *testing.T) {
	tests := []struct {
		priority int
		want     string
	}{
		{0, "none"},
		{1, "high"},
		{3, "high"},
		{4, "medium"},
		{6, "medium"},
		{7, "low"},
		{10, "low"},
		{11, "none"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, priorityBucket(tt.priority), "priority %d", tt.priority)
	}
}
