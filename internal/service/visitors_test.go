package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyetask/driverhub/internal/models"
)

type fakeVisitorRepo struct {
	visitors map[string]*models.Visitor

	setNames [][2]string
}

func newFakeVisitorRepo() *fakeVisitorRepo {
	return &fakeVisitorRepo{visitors: make(map[string]*models.Visitor)}
}

func (f *fakeVisitorRepo) GetByID(_ context.Context, visitorID string) (*models.Visitor, error) {
	v, ok := f.visitors[visitorID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeVisitorRepo) List(context.Context) ([]models.Visitor, error) {
	var out []models.Visitor
	for _, v := range f.visitors {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeVisitorRepo) SetName(_ context.Context, visitorID, name string) error {
	f.setNames = append(f.setNames, [2]string{visitorID, name})
	f.visitors[visitorID] = &models.Visitor{
		VisitorID: visitorID, Name: name, IsRegistered: name != "",
	}
	return nil
}

func (f *fakeVisitorRepo) RecordAction(_ context.Context, visitorID string) error {
	if v, ok := f.visitors[visitorID]; ok {
		v.TotalActions++
	}
	return nil
}

func TestVisitorRegisterTrimsAndValidates(t *testing.T) {
	repo := newFakeVisitorRepo()
	svc := NewVisitorService(repo)

	require.NoError(t, svc.Register(context.Background(), "v-1", "  Dana  "))
	require.Len(t, repo.setNames, 1)
	assert.Equal(t, [2]string{"v-1", "Dana"}, repo.setNames[0])

	assert.ErrorIs(t, svc.Register(context.Background(), "", "Dana"), ErrInvalid)
	assert.ErrorIs(t, svc.Register(context.Background(), "v-1", "   "), ErrInvalid)
}

func TestVisitorClearNameRevokes(t *testing.T) {
	repo := newFakeVisitorRepo()
	svc := NewVisitorService(repo)

	require.NoError(t, svc.Register(context.Background(), "v-1", "Dana"))
	require.NoError(t, svc.ClearName(context.Background(), "v-1"))

	visitor, err := svc.Get(context.Background(), "v-1")
	require.NoError(t, err)
	assert.False(t, visitor.IsRegistered)
	assert.Empty(t, visitor.Name)
}

func TestVisitorClearNameUnknown(t *testing.T) {
	svc := NewVisitorService(newFakeVisitorRepo())
	err := svc.ClearName(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVisitorGetUnknown(t *testing.T) {
	svc := NewVisitorService(newFakeVisitorRepo())
	_, err := svc.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
