package rest

import (
	"net/http"

	"github.com/backline-app/server/model"
	"github.com/backline-app/server/scheduler"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminAuth gates operational endpoints behind a shared admin key,
// independent of JWT auth. Used for provisioning before any user exists.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" || c.GetHeader("X-Admin-Key") != adminKey {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// AdminHandler exposes operational endpoints for deploy-time provisioning
// and dashboard overviews.
type AdminHandler struct {
	db    *gorm.DB
	sched *scheduler.Scheduler
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *gorm.DB, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{db: db, sched: sched}
}

// Overview handles GET /admin/overview: entity counts for the dashboard.
func (h *AdminHandler) Overview(c *gin.Context) {
	counts := map[string]int64{}
	for name, m := range map[string]interface{}{
		"users":      &model.User{},
		"vehicles":   &model.Vehicle{},
		"warehouses": &model.Warehouse{},
		"items":      &model.InventoryItem{},
		"incidents":  &model.Incident{},
	} {
		var n int64
		if err := h.db.Model(m).Count(&n).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		counts[name] = n
	}

	var openIncidents int64
	if err := h.db.Model(&model.Incident{}).
		Where("status <> ?", model.IncidentResolved).Count(&openIncidents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	counts["open_incidents"] = openIncidents

	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

type createUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=32"`
	Password string `json:"password" binding:"required,min=4,max=64"`
	Email    string `json:"email" binding:"omitempty,email,max=128"`
	FullName string `json:"full_name" binding:"max=64"`
	Role     string `json:"role" binding:"required,oneof=admin driver"`
}

// CreateUser handles POST /admin/users. Accounts are provisioned, there
// is no self-registration.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash error"})
		return
	}
	user := &model.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		Status:       1,
	}
	if err := h.db.Create(user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID})
}

type setUserStatusRequest struct {
	Status *int `json:"status" binding:"required,oneof=0 1"`
}

// SetUserStatus handles PUT /admin/users/:id/status to disable or
// re-enable an account.
func (h *AdminHandler) SetUserStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req setUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := h.db.Model(&model.User{}).Where("id = ?", id).Update("status", *req.Status)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Tasks handles GET /admin/tasks: the registered scheduler tickers.
func (h *AdminHandler) Tasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tickers": h.sched.ListTickers()})
}
