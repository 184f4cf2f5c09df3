package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/eyetask/driverhub/internal/models"
	"github.com/eyetask/driverhub/internal/service"
)

// fakeVisitorService implements VisitorService for testing.
type fakeVisitorService struct {
	visitors map[string]*models.Visitor

	cleared []string
}

func (f *fakeVisitorService) Get(_ context.Context, visitorID string) (*models.Visitor, error) {
	v, ok := f.visitors[visitorID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return v, nil
}

func (f *fakeVisitorService) List(context.Context) ([]models.Visitor, error) {
	var out []models.Visitor
	for _, v := range f.visitors {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeVisitorService) Register(_ context.Context, visitorID, name string) error {
	if visitorID == "" || name == "" {
		return service.ErrInvalid
	}
	f.visitors[visitorID] = &models.Visitor{VisitorID: visitorID, Name: name, IsRegistered: true}
	return nil
}

func (f *fakeVisitorService) ClearName(_ context.Context, visitorID string) error {
	v, ok := f.visitors[visitorID]
	if !ok {
		return service.ErrNotFound
	}
	v.Name = ""
	v.IsRegistered = false
	f.cleared = append(f.cleared, visitorID)
	return nil
}

func visitorsTestRouter(h *VisitorsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/visitors", h.List)
	r.Post("/api/visitors", h.Register)
	r.Get("/api/visitors/{id}", h.Get)
	r.Delete("/api/visitors/{id}/name", h.ClearName)
	return r
}

func newVisitorsFixture() (*VisitorsHandler, *fakeVisitorService) {
	visitors := &fakeVisitorService{visitors: map[string]*models.Visitor{
		"v-1": {VisitorID: "v-1", Name: "Dana", IsRegistered: true},
	}}
	perms := &fakePermissionService{grants: map[string]map[string]bool{
		"admin-1": {models.PermUsersView: true, models.PermUsersEdit: true},
	}}
	return &VisitorsHandler{Visitors: visitors, Permissions: perms}, visitors
}

func TestVisitorsHandler_Routes(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		actor        string
		expectedCode int
	}{
		{name: "public get known visitor", method: "GET", path: "/api/visitors/v-1", expectedCode: http.StatusOK},
		{name: "public get unknown is 404", method: "GET", path: "/api/visitors/ghost", expectedCode: http.StatusNotFound},
		{name: "public register", method: "POST", path: "/api/visitors", body: `{"visitorId":"v-2","name":"Omer"}`, expectedCode: http.StatusOK},
		{name: "register without name rejected", method: "POST", path: "/api/visitors", body: `{"visitorId":"v-2"}`, expectedCode: http.StatusBadRequest},
		{name: "list gated", method: "GET", path: "/api/visitors", actor: "stranger", expectedCode: http.StatusForbidden},
		{name: "list for admin", method: "GET", path: "/api/visitors", actor: "admin-1", expectedCode: http.StatusOK},
		{name: "clear name gated", method: "DELETE", path: "/api/visitors/v-1/name", actor: "stranger", expectedCode: http.StatusForbidden},
		{name: "clear name for admin", method: "DELETE", path: "/api/visitors/v-1/name", actor: "admin-1", expectedCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newVisitorsFixture()
			router := visitorsTestRouter(h)

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.actor != "" {
				req = asUser(req, tt.actor, models.RoleAdmin)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.expectedCode {
				t.Fatalf("expected status %d, got %d (body: %s)", tt.expectedCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestVisitorsHandler_ClearNameRevokes(t *testing.T) {
	h, visitors := newVisitorsFixture()
	router := visitorsTestRouter(h)

	req := httptest.NewRequest("DELETE", "/api/visitors/v-1/name", nil)
	req = asUser(req, "admin-1", models.RoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if visitors.visitors["v-1"].IsRegistered {
		t.Errorf("expected registration revoked")
	}
	if len(visitors.cleared) != 1 || visitors.cleared[0] != "v-1" {
		t.Errorf("expected v-1 cleared, got %v", visitors.cleared)
	}
}
