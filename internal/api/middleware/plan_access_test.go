package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadbook/planner-api/internal/api/metrics"
	"github.com/roadbook/planner-api/internal/core/domain"
)

type fakePermissions struct {
	records map[string]domain.PermissionRecord // key: userID|planID
	err     error
}

func (f *fakePermissions) Get(_ context.Context, userID, planID string) (*domain.PermissionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[userID+"|"+planID]
	if !ok {
		return nil, domain.ErrNotAMember
	}
	return &rec, nil
}

func (f *fakePermissions) Create(context.Context, *domain.PermissionRecord) error { return nil }

func (f *fakePermissions) ListByPlan(context.Context, string) ([]domain.PermissionRecord, error) {
	return nil, nil
}

func (f *fakePermissions) ListByUser(context.Context, string) ([]domain.PermissionRecord, error) {
	return nil, nil
}

func runPlanGate(t *testing.T, mw echo.MiddlewareFunc, userID, planID string) (*httptest.ResponseRecorder, *domain.PermissionRecord) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/plan/"+planID+"/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames(PlanIDParam)
	c.SetParamValues(planID)
	if userID != "" {
		c.Set(userIDKey, userID)
	}

	var bound *domain.PermissionRecord
	h := mw(func(c echo.Context) error {
		bound, _ = Permission(c)
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, bound
}

func TestPlanGates(t *testing.T) {
	perms := &fakePermissions{records: map[string]domain.PermissionRecord{
		"reader|plan-1": {UserID: "reader", PlanID: "plan-1", Write: false},
		"writer|plan-1": {UserID: "writer", PlanID: "plan-1", Write: true},
		"owner|plan-1":  {UserID: "owner", PlanID: "plan-1", Write: true, Creator: true},
	}}
	read := PlanRead(perms, zerolog.Nop())
	write := PlanWrite(perms, zerolog.Nop())

	tests := []struct {
		name      string
		userID    string
		wantRead  int
		wantWrite int
	}{
		{"non-member", "stranger", http.StatusNotFound, http.StatusNotFound},
		{"read-only member", "reader", http.StatusOK, http.StatusForbidden},
		{"write member", "writer", http.StatusOK, http.StatusOK},
		{"creator", "owner", http.StatusOK, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, bound := runPlanGate(t, read, tt.userID, "plan-1")
			assert.Equal(t, tt.wantRead, rec.Code, "read gate")
			if tt.wantRead == http.StatusOK {
				require.NotNil(t, bound)
				assert.Equal(t, tt.userID, bound.UserID)
			}

			rec, _ = runPlanGate(t, write, tt.userID, "plan-1")
			assert.Equal(t, tt.wantWrite, rec.Code, "write gate")
		})
	}
}

func TestPlanGate_OtherPlanIsNotFound(t *testing.T) {
	perms := &fakePermissions{records: map[string]domain.PermissionRecord{
		"writer|plan-1": {UserID: "writer", PlanID: "plan-1", Write: true},
	}}

	rec, _ := runPlanGate(t, PlanWrite(perms, zerolog.Nop()), "writer", "plan-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanGate_RequiresIdentity(t *testing.T) {
	rec, _ := runPlanGate(t, PlanRead(&fakePermissions{}, zerolog.Nop()), "", "plan-1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlanGate_StoreError(t *testing.T) {
	perms := &fakePermissions{err: errors.New("mongo: server selection timeout")}

	rec, _ := runPlanGate(t, PlanRead(perms, zerolog.Nop()), "writer", "plan-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPlanGate_Metrics(t *testing.T) {
	perms := &fakePermissions{records: map[string]domain.PermissionRecord{
		"reader|plan-1": {UserID: "reader", PlanID: "plan-1"},
	}}
	readOnly := metrics.PlanAccessDecisionsTotal.WithLabelValues("write", "read_only")
	before := testutil.ToFloat64(readOnly)

	rec, _ := runPlanGate(t, PlanWrite(perms, zerolog.Nop()), "reader", "plan-1")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(readOnly))
}
