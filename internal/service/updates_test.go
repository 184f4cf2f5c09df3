package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyetask/driverhub/internal/models"
)

type fakeUpdateRepo struct {
	updates map[string]*models.DailyUpdate
}

func newFakeUpdateRepo() *fakeUpdateRepo {
	return &fakeUpdateRepo{updates: make(map[string]*models.DailyUpdate)}
}

func (f *fakeUpdateRepo) GetByID(_ context.Context, id string) (*models.DailyUpdate, error) {
	u, ok := f.updates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUpdateRepo) ListActive(context.Context) ([]models.DailyUpdate, error) {
	now := time.Now()
	var out []models.DailyUpdate
	for _, u := range f.updates {
		if !now.Before(u.StartsAt) && now.Before(u.EndsAt) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUpdateRepo) Create(_ context.Context, u *models.DailyUpdate) error {
	f.updates[u.ID] = u
	return nil
}

func (f *fakeUpdateRepo) Update(_ context.Context, u *models.DailyUpdate) error {
	if _, ok := f.updates[u.ID]; !ok {
		return sql.ErrNoRows
	}
	f.updates[u.ID] = u
	return nil
}

func (f *fakeUpdateRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.updates[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.updates, id)
	return nil
}

func TestUpdateCreateValidatesWindow(t *testing.T) {
	svc := NewUpdateService(newFakeUpdateRepo())
	now := time.Now()

	_, err := svc.Create(context.Background(), &models.DailyUpdate{
		Title: "road closed", StartsAt: now, EndsAt: now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = svc.Create(context.Background(), &models.DailyUpdate{
		StartsAt: now, EndsAt: now.Add(time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalid)

	created, err := svc.Create(context.Background(), &models.DailyUpdate{
		Title: "road closed", StartsAt: now, EndsAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

func TestListActiveFiltersByWindow(t *testing.T) {
	repo := newFakeUpdateRepo()
	svc := NewUpdateService(repo)
	now := time.Now()

	_, err := svc.Create(context.Background(), &models.DailyUpdate{
		Title: "current", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), &models.DailyUpdate{
		Title: "future", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "current", active[0].Title)
}

func TestUpdateDeleteUnknown(t *testing.T) {
	svc := NewUpdateService(newFakeUpdateRepo())
	err := svc.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
