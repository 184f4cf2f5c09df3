package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/telemetry"
)

// snapshotTTL is how long a computed summary stays cached.
const snapshotTTL = 5 * time.Minute

// AnalyticsTaskSource supplies the task and subtask rows the aggregator
// derives from.
type AnalyticsTaskSource interface {
	List(ctx context.Context, includeHidden bool) ([]models.Task, error)
	ListAllSubtasks(ctx context.Context) ([]models.Subtask, error)
}

// AnalyticsProjectSource supplies project rows.
type AnalyticsProjectSource interface {
	List(ctx context.Context) ([]models.Project, error)
}

// AnalyticsActivitySource supplies and extends the activity log.
type AnalyticsActivitySource interface {
	Insert(ctx context.Context, e *models.ActivityEntry) error
	ListSince(ctx context.Context, since time.Time) ([]models.ActivityEntry, error)
	CountUniqueVisitorsSince(ctx context.Context, since time.Time) (int64, error)
}

// AnalyticsVisitorSource records visits against visitor profiles.
type AnalyticsVisitorSource interface {
	RecordVisit(ctx context.Context, visitorID string) error
}

// AnalyticsService derives dashboard snapshots from raw task, project,
// and activity records at request time. Snapshots are cached for five
// minutes and are never authoritative.
type AnalyticsService struct {
	tasks    AnalyticsTaskSource
	projects AnalyticsProjectSource
	activity AnalyticsActivitySource
	visitors AnalyticsVisitorSource
	cache    *cache.Manager
	metrics  *telemetry.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService. metrics may be nil.
func NewAnalyticsService(
	tasks AnalyticsTaskSource,
	projects AnalyticsProjectSource,
	activity AnalyticsActivitySource,
	visitors AnalyticsVisitorSource,
	c *cache.Manager,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *AnalyticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsService{
		tasks:    tasks,
		projects: projects,
		activity: activity,
		visitors: visitors,
		cache:    c,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// Summary returns the dashboard snapshot for the given activity range in
// days (7, 30, or 90), served from cache when fresh.
func (s *AnalyticsService) Summary(ctx context.Context, rangeDays int) (*models.AnalyticsSnapshot, error) {
	switch rangeDays {
	case 7, 30, 90:
	default:
		return nil, fmt.Errorf("%w: range must be 7, 30 or 90 days", ErrInvalid)
	}

	key := fmt.Sprintf("analytics:summary:%d", rangeDays)
	value, err := s.cache.Get(ctx, key, func(ctx context.Context) (any, error) {
		return s.compute(ctx, rangeDays)
	}, cache.Options{TTL: snapshotTTL})
	if err != nil {
		return nil, err
	}
	return value.(*models.AnalyticsSnapshot), nil
}

// LogVisit records a page visit: it bumps the visitor's counters,
// appends an activity entry, and invalidates cached snapshots so the
// next read reflects the new visit.
func (s *AnalyticsService) LogVisit(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return fmt.Errorf("%w: visitorId is required", ErrInvalid)
	}

	if err := s.visitors.RecordVisit(ctx, visitorID); err != nil {
		return err
	}

	entry := &models.ActivityEntry{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Action:    models.ActionVisit,
		CreatedAt: s.now(),
	}
	if err := s.activity.Insert(ctx, entry); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.VisitsLogged.Inc()
		s.metrics.ActivityEntries.Inc()
	}

	s.cache.InvalidatePattern(analyticsKeys)
	return nil
}

// compute builds a snapshot from scratch. All tasks (including hidden)
// participate in the counts.
func (s *AnalyticsService) compute(ctx context.Context, rangeDays int) (*models.AnalyticsSnapshot, error) {
	now := s.now()

	tasks, err := s.tasks.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	subtasks, err := s.tasks.ListAllSubtasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subtasks: %w", err)
	}
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	entries, err := s.activity.ListSince(ctx, now.AddDate(0, 0, -rangeDays))
	if err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	uniqueVisitors, err := s.activity.CountUniqueVisitorsSince(ctx, now.AddDate(0, 0, -rangeDays))
	if err != nil {
		return nil, fmt.Errorf("count unique visitors: %w", err)
	}

	snap := &models.AnalyticsSnapshot{
		RangeDays:      rangeDays,
		TotalProjects:  len(projects),
		TotalTasks:     len(tasks),
		TotalSubtasks:  len(subtasks),
		ProjectStats:   make(map[string]models.ProjectStats, len(projects)),
		UniqueVisitors: uniqueVisitors,
		GeneratedAt:    now,
	}

	for _, p := range projects {
		snap.ProjectStats[p.ID] = models.ProjectStats{Name: p.Name}
	}

	subtasksByTask := make(map[string]int, len(tasks))
	for _, sub := range subtasks {
		subtasksByTask[sub.TaskID]++
	}

	for _, t := range tasks {
		switch bucket := priorityBucket(t.Priority); bucket {
		case "high":
			snap.HighPriorityTasks++
		case "medium":
			snap.MediumPriorityTasks++
		case "low":
			snap.LowPriorityTasks++
		default:
			snap.NoPriorityTasks++
		}

		stats := snap.ProjectStats[t.ProjectID]
		stats.TaskCount++
		stats.SubtaskCount += subtasksByTask[t.ID]
		if priorityBucket(t.Priority) == "high" {
			stats.HighPriority++
		}
		snap.ProjectStats[t.ProjectID] = stats
	}

	snap.Daily = bucketDaily(entries, now, rangeDays)

	weekAgo := now.AddDate(0, 0, -7)
	twoWeeksAgo := now.AddDate(0, 0, -14)
	for _, e := range entries {
		thisWeek := !e.CreatedAt.Before(weekAgo)
		lastWeek := !thisWeek && !e.CreatedAt.Before(twoWeeksAgo)
		switch {
		case strings.Contains(e.Action, models.ActionTaskCreated):
			if thisWeek {
				snap.TasksCreatedThisWeek++
			} else if lastWeek {
				snap.TasksCreatedLastWeek++
			}
		case strings.Contains(e.Action, models.ActionVisit):
			if thisWeek {
				snap.VisitsThisWeek++
			} else if lastWeek {
				snap.VisitsLastWeek++
			}
		}
	}

	snap.HealthScore = healthScore(len(entries))
	return snap, nil
}

// priorityBucket maps a 0-10 priority to its display bucket:
// 1-3 high, 4-6 medium, 7-10 low, 0 none.
func priorityBucket(p int) string {
	switch {
	case p >= 1 && p <= 3:
		return "high"
	case p >= 4 && p <= 6:
		return "medium"
	case p >= 7 && p <= 10:
		return "low"
	default:
		return "none"
	}
}

// bucketDaily initializes one zeroed bucket per calendar day in range,
// oldest first, then increments buckets from matching activity entries.
func bucketDaily(entries []models.ActivityEntry, now time.Time, rangeDays int) []models.DailyActivity {
	const day = "2006-01-02"

	buckets := make([]models.DailyActivity, 0, rangeDays)
	index := make(map[string]int, rangeDays)
	for i := rangeDays - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(day)
		index[date] = len(buckets)
		buckets = append(buckets, models.DailyActivity{Date: date})
	}

	for _, e := range entries {
		i, ok := index[e.CreatedAt.Format(day)]
		if !ok {
			continue
		}
		switch {
		case strings.Contains(e.Action, models.ActionVisit):
			buckets[i].Visits++
		case strings.Contains(e.Action, models.ActionSubtaskCreated):
			buckets[i].SubtasksCreated++
		case strings.Contains(e.Action, models.ActionTaskCreated):
			buckets[i].TasksCreated++
		}
	}
	return buckets
}

// healthScore derives a 0-100 figure from total activity volume. It is
// a cosmetic indicator, not a monitoring signal.
func healthScore(activityCount int) int {
	score := 50 + activityCount/10
	if score > 100 {
		score = 100
	}
	return score
}
