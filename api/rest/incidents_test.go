package rest_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/backline-app/server/api/rest"
	"github.com/backline-app/server/audit"
	"github.com/backline-app/server/incident"
	"github.com/backline-app/server/inventory"
	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/backline-app/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type incidentFixture struct {
	r     *gin.Engine
	db    *gorm.DB
	admin string
	drv   string
}

func newIncidentFixture(t *testing.T) *incidentFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	incidentSvc := incident.NewService(db, logger)
	inventorySvc := inventory.NewService(db, incidentSvc, c, 30*time.Second, logger)
	auditSvc := audit.New(db, logger)
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	authH := rest.NewAuthHandler(db, c, testSec)
	incidentH := rest.NewIncidentHandler(incidentSvc, inventorySvc, auditSvc)

	r := gin.New()
	r.POST("/api/auth/login", authH.Login)
	g := r.Group("/api/incidents", mw.Auth(testSec, c))
	g.GET("", incidentH.List)
	g.GET("/:id", incidentH.Get)
	g.POST("", incidentH.Create)
	g.PUT("/:id", mw.RequireRole(model.RoleAdmin), incidentH.Update)
	g.POST("/:id/resolve", mw.RequireRole(model.RoleAdmin), incidentH.Resolve)

	seedUser(t, db, "ops2", "pass1234", model.RoleAdmin)
	seedUser(t, db, "driver2", "pass1234", model.RoleDriver)

	return &incidentFixture{
		r:     r,
		db:    db,
		admin: login(t, r, "ops2", "pass1234"),
		drv:   login(t, r, "driver2", "pass1234"),
	}
}

func TestIncidentCreate_DefaultsAndGet(t *testing.T) {
	f := newIncidentFixture(t)

	w := postJSON(f.r, "/api/incidents", map[string]interface{}{
		"title": "Flat tire", "vehicle_id": 3,
	}, "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	inc := resp["incident"].(map[string]interface{})
	assert.Equal(t, "open", inc["status"])
	assert.Equal(t, "medium", inc["priority"])

	id := int64(inc["id"].(float64))
	w2 := getJSON(f.r, fmt.Sprintf("/api/incidents/%d", id), "Authorization", "Bearer "+f.drv)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestIncidentCreate_MissingTitle(t *testing.T) {
	f := newIncidentFixture(t)
	w := postJSON(f.r, "/api/incidents", map[string]interface{}{
		"vehicle_id": 3,
	}, "Authorization", "Bearer "+f.drv)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIncidentList_FilterByVehicle(t *testing.T) {
	f := newIncidentFixture(t)
	for _, vid := range []int64{1, 1, 2} {
		w := postJSON(f.r, "/api/incidents", map[string]interface{}{
			"title": "noise", "vehicle_id": vid,
		}, "Authorization", "Bearer "+f.drv)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := getJSON(f.r, "/api/incidents?vehicle_id=1", "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["incidents"].([]interface{}), 2)
}

func TestIncidentUpdate_DriverForbidden(t *testing.T) {
	f := newIncidentFixture(t)
	w := postJSON(f.r, "/api/incidents", map[string]interface{}{
		"title": "rattle", "vehicle_id": 9,
	}, "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := int64(resp["incident"].(map[string]interface{})["id"].(float64))

	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/incidents/%d", id), nil)
	req.Header.Set("Authorization", "Bearer "+f.drv)
	rec := httptest.NewRecorder()
	f.r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIncidentResolve_VehicleOnly(t *testing.T) {
	f := newIncidentFixture(t)
	w := postJSON(f.r, "/api/incidents", map[string]interface{}{
		"title": "mirror cracked", "vehicle_id": 5,
	}, "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id := int64(resp["incident"].(map[string]interface{})["id"].(float64))

	w2 := postJSON(f.r, fmt.Sprintf("/api/incidents/%d/resolve", id), map[string]interface{}{},
		"Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())

	var inc model.Incident
	require.NoError(t, f.db.First(&inc, id).Error)
	assert.Equal(t, model.IncidentResolved, inc.Status)
}

func TestIncidentResolve_LinkedItemNeedsDestination(t *testing.T) {
	f := newIncidentFixture(t)

	raw, err := inventory.EncodeLocations([]inventory.Partition{
		{Type: inventory.LocationVehicle, ID: 6, Quantity: 1, Status: inventory.StatusTotallyBroken},
	})
	require.NoError(t, err)
	item := &model.InventoryItem{Name: "Strap", SKU: "ST-9", Quantity: 1, Locations: raw}
	require.NoError(t, f.db.Create(item).Error)

	inc := &model.Incident{
		Title: "strap snapped", Status: model.IncidentOpen, Priority: model.PriorityHigh,
		VehicleID: 6, InventoryItemID: &item.ID,
	}
	require.NoError(t, f.db.Create(inc).Error)

	// Without a destination the resolve is rejected.
	w := postJSON(f.r, fmt.Sprintf("/api/incidents/%d/resolve", inc.ID), map[string]interface{}{},
		"Authorization", "Bearer "+f.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// With a destination the unit is restored and the incident resolved.
	w2 := postJSON(f.r, fmt.Sprintf("/api/incidents/%d/resolve", inc.ID), map[string]interface{}{
		"destination_type": "warehouse", "destination_id": 2,
	}, "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusOK, w2.Code, w2.Body.String())

	var got model.InventoryItem
	require.NoError(t, f.db.First(&got, item.ID).Error)
	parts, err := inventory.DecodeLocations(&got)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, inventory.LocationWarehouse, parts[0].Type)
	assert.Equal(t, inventory.StatusNewFunctional, parts[0].Status)

	var resolved model.Incident
	require.NoError(t, f.db.First(&resolved, inc.ID).Error)
	assert.Equal(t, model.IncidentResolved, resolved.Status)
}

func TestIncidentGet_NotFound(t *testing.T) {
	f := newIncidentFixture(t)
	w := getJSON(f.r, "/api/incidents/424242", "Authorization", "Bearer "+f.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
