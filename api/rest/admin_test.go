package rest_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/backline-app/server/api/rest"
	"github.com/backline-app/server/model"
	"github.com/backline-app/server/scheduler"
	"github.com/backline-app/server/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newAdminRouter(t *testing.T, adminKey string) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)

	h := rest.NewAdminHandler(db, sched)
	r := gin.New()
	g := r.Group("/api/admin", rest.AdminAuth(adminKey))
	g.GET("/overview", h.Overview)
	g.POST("/users", h.CreateUser)
	g.PUT("/users/:id/status", h.SetUserStatus)
	g.GET("/tasks", h.Tasks)
	return r, db
}

func TestAdminAuth_WrongKey(t *testing.T) {
	r, _ := newAdminRouter(t, "secret-key")
	w := getJSON(r, "/api/admin/overview", "X-Admin-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAuth_EmptyKeyDisablesEndpoints(t *testing.T) {
	r, _ := newAdminRouter(t, "")
	w := getJSON(r, "/api/admin/overview", "X-Admin-Key", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCreateUser(t *testing.T) {
	r, db := newAdminRouter(t, "secret-key")

	w := postJSON(r, "/api/admin/users", map[string]string{
		"username": "newdriver", "password": "pass1234", "role": "driver",
	}, "X-Admin-Key", "secret-key")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user model.User
	require.NoError(t, db.Where("username = ?", "newdriver").First(&user).Error)
	assert.Equal(t, model.RoleDriver, user.Role)
	assert.Equal(t, 1, user.Status)

	// Duplicate username rejected.
	w2 := postJSON(r, "/api/admin/users", map[string]string{
		"username": "newdriver", "password": "pass1234", "role": "driver",
	}, "X-Admin-Key", "secret-key")
	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestAdminCreateUser_InvalidRole(t *testing.T) {
	r, _ := newAdminRouter(t, "secret-key")
	w := postJSON(r, "/api/admin/users", map[string]string{
		"username": "x", "password": "pass1234", "role": "superuser",
	}, "X-Admin-Key", "secret-key")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminOverview_Counts(t *testing.T) {
	r, db := newAdminRouter(t, "secret-key")
	require.NoError(t, db.Create(&model.Vehicle{Plate: "AB-123"}).Error)
	require.NoError(t, db.Create(&model.Incident{Title: "t", Status: model.IncidentOpen, VehicleID: 1}).Error)

	w := getJSON(r, "/api/admin/overview", "X-Admin-Key", "secret-key")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["counts"]["vehicles"])
	assert.Equal(t, float64(1), resp["counts"]["open_incidents"])
}
