package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/backline-app/server/audit"
	"github.com/backline-app/server/inventory"
	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ItemHandler handles inventory catalog and reconciliation endpoints.
type ItemHandler struct {
	db    *gorm.DB
	svc   *inventory.Service
	audit *audit.Service
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(db *gorm.DB, svc *inventory.Service, auditSvc *audit.Service) *ItemHandler {
	return &ItemHandler{db: db, svc: svc, audit: auditSvc}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// List handles GET /api/items. Optional ?category= filter.
func (h *ItemHandler) List(c *gin.Context) {
	q := h.db.Model(&model.InventoryItem{})
	if cat := c.Query("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}
	var items []model.InventoryItem
	if err := q.Order("name asc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Get handles GET /api/items/:id, returning the item with its decoded
// partition document.
func (h *ItemHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var item model.InventoryItem
	if err := h.db.First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	parts, err := inventory.DecodeLocations(&item)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":        item,
		"locations":   parts,
		"unallocated": item.Quantity - inventory.Total(parts),
	})
}

type createItemRequest struct {
	Name     string `json:"name" binding:"required,max=128"`
	SKU      string `json:"sku" binding:"required,max=64"`
	Category string `json:"category" binding:"max=64"`
	Quantity int    `json:"quantity" binding:"min=0"`
}

// Create handles POST /api/items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item := &model.InventoryItem{
		Name:     req.Name,
		SKU:      req.SKU,
		Category: req.Category,
		Quantity: req.Quantity,
	}
	if err := h.db.Create(item).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

type updateItemRequest struct {
	Name     *string `json:"name"`
	Category *string `json:"category"`
	Quantity *int    `json:"quantity"`
}

// Update handles PUT /api/items/:id for descriptive metadata and the
// total quantity. Locations are only touched by the engine endpoints.
func (h *ItemHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Category != nil {
		fields["category"] = *req.Category
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be non-negative"})
			return
		}
		fields["quantity"] = *req.Quantity
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	res := h.db.Model(&model.InventoryItem{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete handles DELETE /api/items/:id (explicit operator delete).
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.Delete(&model.InventoryItem{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type addLocationRequest struct {
	Type     string `json:"type" binding:"required,oneof=warehouse vehicle"`
	ID       int64  `json:"id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

// AddLocation handles POST /api/items/:id/locations.
func (h *ItemHandler) AddLocation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req addLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.svc.AddLocation(c.Request.Context(), id, inventory.Partition{
		Type:     inventory.LocationType(req.Type),
		ID:       req.ID,
		Quantity: req.Quantity,
		Status:   inventory.StatusNewFunctional,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type reportDefectRequest struct {
	PartitionIndex *int   `json:"partition_index" binding:"required"`
	Condition      string `json:"condition" binding:"required"`
	VehicleID      int64  `json:"vehicle_id"`
}

// ReportDefect handles POST /api/items/:id/report-defect. Every break
// flow in both portals lands here.
func (h *ItemHandler) ReportDefect(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req reportDefectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := mw.GetUserID(c)
	start := time.Now()
	incidentID, err := h.svc.ReportDefect(c.Request.Context(), id, *req.PartitionIndex,
		inventory.Status(req.Condition), userID, req.VehicleID)

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     &userID,
		Action:     "report_defect",
		ItemID:     &id,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if req.VehicleID != 0 {
		entry.VehicleID = &req.VehicleID
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		writeError(c, err)
		return
	}
	entry.Response = gin.H{"incident_id": incidentID}
	h.audit.Log(entry)
	c.JSON(http.StatusOK, gin.H{"incident_id": incidentID})
}

type markOrderedRequest struct {
	PartitionIndex *int `json:"partition_index" binding:"required"`
}

// MarkOrdered handles POST /api/items/:id/mark-ordered.
func (h *ItemHandler) MarkOrdered(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req markOrderedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.MarkOrdered(c.Request.Context(), id, *req.PartitionIndex); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// SendToRepair handles POST /api/items/:id/send-to-repair.
func (h *ItemHandler) SendToRepair(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req markOrderedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SendToRepair(c.Request.Context(), id, *req.PartitionIndex); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type restoreRequest struct {
	IncidentID      int64  `json:"incident_id"`
	DestinationType string `json:"destination_type" binding:"required,oneof=warehouse vehicle"`
	DestinationID   int64  `json:"destination_id" binding:"required"`
}

// Restore handles POST /api/items/:id/restore.
func (h *ItemHandler) Restore(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := mw.GetUserID(c)
	start := time.Now()
	err := h.svc.RestoreToStock(c.Request.Context(), id, req.IncidentID, inventory.Location{
		Type: inventory.LocationType(req.DestinationType),
		ID:   req.DestinationID,
	})

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     &userID,
		Action:     "restore_to_stock",
		ItemID:     &id,
		Request:    req,
		IP:         c.ClientIP(),
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		entry.Error = err.Error()
		h.audit.Log(entry)
		writeError(c, err)
		return
	}
	h.audit.Log(entry)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
