// Package models defines the core data structures for users, projects,
// tasks, visitors, permissions, and activity records.
package models

import "time"

// Role identifies the access level assigned to a user.
type Role string

const (
	// RoleAdmin has full access to every capability.
	RoleAdmin Role = "admin"
	// RoleManager manages projects, tasks and daily updates.
	RoleManager Role = "manager"
	// RoleDriver is a regular task-executing user.
	RoleDriver Role = "driver"
)

// User represents an application user with credentials and a role.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Username is the login name chosen by the user.
	Username string `json:"username"`
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte `json:"-"`
	// Role determines the user's default permission set.
	Role Role `json:"role"`
	// Hidden excludes the user from listings without deleting the record.
	Hidden bool `json:"hidden"`
	// CreatedAt is when the user record was created.
	CreatedAt time.Time `json:"createdAt"`
}

// Permission is a single resolved access flag with its origin.
type Permission struct {
	// Value is the effective boolean access flag.
	Value bool `json:"value"`
	// Source reports where the value came from: "role" or "user".
	Source string `json:"source"`
}

// Permission sources.
const (
	// PermissionSourceRole marks a value inherited from role defaults.
	PermissionSourceRole = "role"
	// PermissionSourceUser marks a per-user override.
	PermissionSourceUser = "user"
)

// Well-known permission keys.
const (
	PermUsersEdit       = "users:edit"
	PermUsersView       = "users:view"
	PermTasksEdit       = "tasks:edit"
	PermTasksView       = "tasks:view"
	PermProjectsEdit    = "projects:edit"
	PermAnalyticsView   = "analytics:view"
	PermUpdatesEdit     = "updates:edit"
	PermPermissionsEdit = "permissions:edit"
)

// Project groups tasks under a common name.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Task is a unit of driver work inside a project.
type Task struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Details   string `json:"details"`
	// Priority ranges 0-10: 1-3 high, 4-6 medium, 7-10 low, 0 none.
	Priority  int       `json:"priority"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Hidden    bool      `json:"hidden"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Subtask is a checklist item belonging to a task.
type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyUpdate is an announcement banner shown between StartsAt and EndsAt.
type DailyUpdate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"createdAt"`
}

// Visitor is the server-side record of an anonymous browser identity.
type Visitor struct {
	// VisitorID is the durable client-generated identifier.
	VisitorID string `json:"visitorId"`
	// Name is the self-reported display name, empty if unregistered.
	Name string `json:"name"`
	// IsRegistered is true iff a non-empty name is stored.
	IsRegistered bool      `json:"isRegistered"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastSeen     time.Time `json:"lastSeen"`
	TotalVisits  int64     `json:"totalVisits"`
	TotalActions int64     `json:"totalActions"`
}

// ActivityEntry is an append-only log row used by the analytics aggregator.
type ActivityEntry struct {
	ID        string `json:"id"`
	VisitorID string `json:"visitorId"`
	// Action is the localized activity description, matched by the
	// aggregator against the Action* constants below.
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
}

// Localized activity actions recorded by the product UI. The aggregator
// buckets entries by substring match on these.
const (
	// ActionVisit marks a page visit.
	ActionVisit = "ביקר באתר"
	// ActionTaskCreated marks creation of a new task.
	ActionTaskCreated = "יצר משימה חדשה"
	// ActionSubtaskCreated marks creation of a new subtask.
	ActionSubtaskCreated = "יצר תת-משימה חדשה"
)

// AnalyticsSnapshot is a derived dashboard summary. It is never
// authoritative and is safe to discard and recompute at any time.
type AnalyticsSnapshot struct {
	// RangeDays is the activity window the snapshot covers (7/30/90).
	RangeDays int `json:"rangeDays"`

	TotalProjects int `json:"totalProjects"`
	TotalTasks    int `json:"totalTasks"`
	TotalSubtasks int `json:"totalSubtasks"`

	// Priority buckets: 1-3 high, 4-6 medium, 7-10 low, 0 none.
	HighPriorityTasks   int `json:"highPriorityTasks"`
	MediumPriorityTasks int `json:"mediumPriorityTasks"`
	LowPriorityTasks    int `json:"lowPriorityTasks"`
	NoPriorityTasks     int `json:"noPriorityTasks"`

	// ProjectStats is keyed by project ID.
	ProjectStats map[string]ProjectStats `json:"projectStats"`

	// Daily holds one bucket per calendar day in range, oldest first.
	Daily []DailyActivity `json:"daily"`

	// Week-over-week deltas: current 7-day window vs the prior one.
	VisitsThisWeek       int `json:"visitsThisWeek"`
	VisitsLastWeek       int `json:"visitsLastWeek"`
	TasksCreatedThisWeek int `json:"tasksCreatedThisWeek"`
	TasksCreatedLastWeek int `json:"tasksCreatedLastWeek"`

	// UniqueVisitors counts distinct visitor ids with activity in range.
	UniqueVisitors int64 `json:"uniqueVisitors"`

	// HealthScore is a volume-derived convenience figure, not a probe.
	HealthScore int `json:"healthScore"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// ProjectStats carries per-project aggregate counts.
type ProjectStats struct {
	Name         string `json:"name"`
	TaskCount    int    `json:"taskCount"`
	SubtaskCount int    `json:"subtaskCount"`
	HighPriority int    `json:"highPriority"`
}

// DailyActivity is a single day bucket of activity counts.
type DailyActivity struct {
	// Date is the bucket day formatted as 2006-01-02.
	Date            string `json:"date"`
	Visits          int    `json:"visits"`
	TasksCreated    int    `json:"tasksCreated"`
	SubtasksCreated int    `json:"subtasksCreated"`
}
