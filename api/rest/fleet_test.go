package rest_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/backline-app/server/api/rest"
	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/backline-app/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fleetFixture struct {
	r     *gin.Engine
	db    *gorm.DB
	admin string
	drv   string
	drvID int64
}

func newFleetFixture(t *testing.T) *fleetFixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c := testutil.SetupTestCache(t)

	authH := rest.NewAuthHandler(db, c, testSec)
	fleetH := rest.NewFleetHandler(db)

	r := gin.New()
	r.POST("/api/auth/login", authH.Login)
	g := r.Group("/api", mw.Auth(testSec, c))
	g.GET("/fleet", fleetH.MyFleet)
	g.GET("/vehicles", fleetH.ListVehicles)
	g.GET("/vehicles/:id", fleetH.GetVehicle)
	g.POST("/vehicles", mw.RequireRole(model.RoleAdmin), fleetH.CreateVehicle)
	g.PUT("/vehicles/:id", mw.RequireRole(model.RoleAdmin), fleetH.UpdateVehicle)
	g.GET("/warehouses", fleetH.ListWarehouses)
	g.POST("/warehouses", mw.RequireRole(model.RoleAdmin), fleetH.CreateWarehouse)

	seedUser(t, db, "ops3", "pass1234", model.RoleAdmin)
	drv := seedUser(t, db, "driver3", "pass1234", model.RoleDriver)

	return &fleetFixture{
		r:     r,
		db:    db,
		admin: login(t, r, "ops3", "pass1234"),
		drv:   login(t, r, "driver3", "pass1234"),
		drvID: drv.ID,
	}
}

func TestVehicleCreateAndList(t *testing.T) {
	f := newFleetFixture(t)

	w := postJSON(f.r, "/api/vehicles", map[string]interface{}{
		"plate": "LJ-42-XYZ", "make": "MAN", "model": "TGE", "year": 2022,
	}, "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w2 := getJSON(f.r, "/api/vehicles", "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Len(t, resp["vehicles"].([]interface{}), 1)
}

func TestVehicleCreate_DuplicatePlate(t *testing.T) {
	f := newFleetFixture(t)
	body := map[string]interface{}{"plate": "LJ-11-AAA"}
	w := postJSON(f.r, "/api/vehicles", body, "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusCreated, w.Code)
	w2 := postJSON(f.r, "/api/vehicles", body, "Authorization", "Bearer "+f.admin)
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestMyFleet_DriverSeesOnlyAssigned(t *testing.T) {
	f := newFleetFixture(t)
	mine := &model.Vehicle{Plate: "MINE-1", Status: model.VehicleActive, DriverID: &f.drvID}
	other := &model.Vehicle{Plate: "OTHER-1", Status: model.VehicleActive}
	require.NoError(t, f.db.Create(mine).Error)
	require.NoError(t, f.db.Create(other).Error)
	require.NoError(t, f.db.Create(&model.Incident{
		Title: "wiper broken", Status: model.IncidentOpen, VehicleID: mine.ID,
	}).Error)

	w := getJSON(f.r, "/api/fleet", "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["vehicles"].([]interface{}), 1)
	assert.Len(t, resp["open_incidents"].([]interface{}), 1)

	// Admin sees the whole fleet.
	w2 := getJSON(f.r, "/api/fleet", "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp2 map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp2))
	assert.Len(t, resp2["vehicles"].([]interface{}), 2)
}

func TestVehicleUpdate_Status(t *testing.T) {
	f := newFleetFixture(t)
	v := &model.Vehicle{Plate: "REP-1", Status: model.VehicleActive}
	require.NoError(t, f.db.Create(v).Error)

	req := map[string]interface{}{"status": "in_repair"}
	w := putJSON(f.r, fmt.Sprintf("/api/vehicles/%d", v.ID), req, "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got model.Vehicle
	require.NoError(t, f.db.First(&got, v.ID).Error)
	assert.Equal(t, model.VehicleInRepair, got.Status)
}

func TestGetVehicle_IncludesOpenIncidents(t *testing.T) {
	f := newFleetFixture(t)
	v := &model.Vehicle{Plate: "INC-1", Status: model.VehicleActive}
	require.NoError(t, f.db.Create(v).Error)
	require.NoError(t, f.db.Create(&model.Incident{
		Title: "open", Status: model.IncidentOpen, VehicleID: v.ID,
	}).Error)
	require.NoError(t, f.db.Create(&model.Incident{
		Title: "done", Status: model.IncidentResolved, VehicleID: v.ID,
	}).Error)

	w := getJSON(f.r, fmt.Sprintf("/api/vehicles/%d", v.ID), "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["open_incidents"].([]interface{}), 1)
}

func TestWarehouseCreateAndList(t *testing.T) {
	f := newFleetFixture(t)
	w := postJSON(f.r, "/api/warehouses", map[string]string{
		"name": "Central", "address": "Industrijska 1",
	}, "Authorization", "Bearer "+f.admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w2 := getJSON(f.r, "/api/warehouses", "Authorization", "Bearer "+f.drv)
	require.Equal(t, http.StatusOK, w2.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
	assert.Len(t, resp["warehouses"].([]interface{}), 1)
}
