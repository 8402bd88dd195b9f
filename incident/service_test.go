package incident

import (
	"context"
	"testing"
	"time"

	"github.com/backline-app/server/errs"
	"github.com/backline-app/server/model"
	"github.com/backline-app/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(testutil.SetupTestDB(t), nop())
}

func TestCreate_Defaults(t *testing.T) {
	svc := newService(t)
	inc := &model.Incident{Title: "Flat tire", VehicleID: 1, ReportedByUserID: 2}
	require.NoError(t, svc.Create(context.Background(), inc))
	assert.Positive(t, inc.ID)
	assert.Equal(t, model.IncidentOpen, inc.Status)
	assert.Equal(t, model.PriorityMedium, inc.Priority)
}

func TestCreate_RequiresTitle(t *testing.T) {
	svc := newService(t)
	err := svc.Create(context.Background(), &model.Incident{VehicleID: 1})
	assert.True(t, errs.IsValidation(err))
}

func TestGet_NotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.Get(context.Background(), 999)
	assert.True(t, errs.IsNotFound(err))
}

func TestFindActiveForItem_PicksOldestUnresolved(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	itemID := int64(5)

	resolved := &model.Incident{Title: "old", VehicleID: 1, InventoryItemID: &itemID, Status: model.IncidentResolved}
	require.NoError(t, svc.Create(ctx, resolved))
	// Create sets status open when empty; force resolved explicitly.
	require.NoError(t, svc.db.Model(resolved).Update("status", model.IncidentResolved).Error)

	first := &model.Incident{Title: "first open", VehicleID: 1, InventoryItemID: &itemID}
	require.NoError(t, svc.Create(ctx, first))
	second := &model.Incident{Title: "second open", VehicleID: 2, InventoryItemID: &itemID}
	require.NoError(t, svc.Create(ctx, second))

	got, err := svc.FindActiveForItem(ctx, itemID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestFindActiveForItem_NoneReturnsNil(t *testing.T) {
	svc := newService(t)
	got, err := svc.FindActiveForItem(context.Background(), 123)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolve_Idempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	inc := &model.Incident{Title: "Broken mic", VehicleID: 1}
	require.NoError(t, svc.Create(ctx, inc))

	require.NoError(t, svc.Resolve(ctx, inc.ID))
	got, err := svc.Get(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IncidentResolved, got.Status)

	// Second resolve is a no-op, not an error.
	require.NoError(t, svc.Resolve(ctx, inc.ID))
}

func TestResolve_NotFound(t *testing.T) {
	svc := newService(t)
	err := svc.Resolve(context.Background(), 404)
	assert.True(t, errs.IsNotFound(err))
}

func TestList_Filters(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	itemID := int64(9)

	require.NoError(t, svc.Create(ctx, &model.Incident{Title: "a", VehicleID: 1, InventoryItemID: &itemID}))
	require.NoError(t, svc.Create(ctx, &model.Incident{Title: "b", VehicleID: 2}))

	byVehicle, err := svc.List(ctx, Filter{VehicleID: 1})
	require.NoError(t, err)
	require.Len(t, byVehicle, 1)
	assert.Equal(t, "a", byVehicle[0].Title)

	byItem, err := svc.List(ctx, Filter{ItemID: 9})
	require.NoError(t, err)
	assert.Len(t, byItem, 1)

	all, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdate_ManualEdit(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	inc := &model.Incident{Title: "Scratched side panel", VehicleID: 1}
	require.NoError(t, svc.Create(ctx, inc))

	require.NoError(t, svc.Update(ctx, inc.ID, map[string]interface{}{
		"status":   model.IncidentInProgress,
		"priority": model.PriorityLow,
	}))

	got, err := svc.Get(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IncidentInProgress, got.Status)
	assert.Equal(t, model.PriorityLow, got.Priority)
}

func TestMarkStale(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	inc := &model.Incident{Title: "forgotten", VehicleID: 1}
	require.NoError(t, svc.Create(ctx, inc))

	// Age the row past the cutoff.
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, svc.db.Model(inc).Update("updated_at", old).Error)

	n, err := svc.MarkStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.Get(ctx, inc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IncidentInProgress, got.Status)
}
