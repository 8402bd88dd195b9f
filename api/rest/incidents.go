package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/backline-app/server/audit"
	"github.com/backline-app/server/incident"
	"github.com/backline-app/server/inventory"
	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// IncidentHandler handles incident REST endpoints.
type IncidentHandler struct {
	incidents *incident.Service
	items     *inventory.Service
	audit     *audit.Service
}

// NewIncidentHandler creates a new IncidentHandler.
func NewIncidentHandler(incidents *incident.Service, items *inventory.Service, auditSvc *audit.Service) *IncidentHandler {
	return &IncidentHandler{incidents: incidents, items: items, audit: auditSvc}
}

// List handles GET /api/incidents with optional vehicle_id, item_id and
// status query filters.
func (h *IncidentHandler) List(c *gin.Context) {
	var f incident.Filter
	if v := c.Query("vehicle_id"); v != "" {
		f.VehicleID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := c.Query("item_id"); v != "" {
		f.ItemID, _ = strconv.ParseInt(v, 10, 64)
	}
	f.Status = c.Query("status")

	incidents, err := h.incidents.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}

// Get handles GET /api/incidents/:id.
func (h *IncidentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	inc, err := h.incidents.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": inc})
}

type createIncidentRequest struct {
	Title       string   `json:"title" binding:"required,max=128"`
	Description string   `json:"description" binding:"max=2048"`
	Priority    string   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	VehicleID   int64    `json:"vehicle_id" binding:"required"`
	ItemID      *int64   `json:"item_id"`
	Images      []string `json:"images"`
}

// Create handles POST /api/incidents. Drivers file vehicle-level
// incidents here; item defects go through the report-defect endpoint,
// which creates the incident itself.
func (h *IncidentHandler) Create(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := mw.GetUserID(c)
	inc := &model.Incident{
		Title:            req.Title,
		Description:      req.Description,
		Priority:         req.Priority,
		VehicleID:        req.VehicleID,
		InventoryItemID:  req.ItemID,
		ReportedByUserID: userID,
	}
	if len(req.Images) > 0 {
		raw, err := encodeImages(req.Images)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid images"})
			return
		}
		inc.Images = raw
	}
	if err := h.incidents.Create(c.Request.Context(), inc); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Log(audit.Entry{
		TraceID:   mw.GetTraceID(c),
		UserID:    &userID,
		Action:    "create_incident",
		VehicleID: &req.VehicleID,
		ItemID:    req.ItemID,
		Request:   req,
		Response:  gin.H{"incident_id": inc.ID},
		IP:        c.ClientIP(),
	})
	c.JSON(http.StatusCreated, gin.H{"incident": inc})
}

type updateIncidentRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	Status      *string `json:"status" binding:"omitempty,oneof=open in_progress closed"`
}

// Update handles PUT /api/incidents/:id. The resolved status is only
// reachable through Resolve so stock restoration cannot be skipped.
func (h *IncidentHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Priority != nil {
		fields["priority"] = *req.Priority
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if err := h.incidents.Update(c.Request.Context(), id, fields); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type resolveIncidentRequest struct {
	DestinationType string `json:"destination_type" binding:"omitempty,oneof=warehouse vehicle"`
	DestinationID   int64  `json:"destination_id"`
}

// Resolve handles POST /api/incidents/:id/resolve. Incidents linked to
// an inventory item run the full restoration path so the broken unit
// returns to stock together with the resolution; vehicle-only incidents
// just flip status.
func (h *IncidentHandler) Resolve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req resolveIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inc, err := h.incidents.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	userID := mw.GetUserID(c)
	start := time.Now()

	if inc.InventoryItemID != nil {
		if req.DestinationType == "" || req.DestinationID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "destination required for incidents linked to an inventory item"})
			return
		}
		err = h.items.RestoreToStock(c.Request.Context(), *inc.InventoryItemID, id, inventory.Location{
			Type: inventory.LocationType(req.DestinationType),
			ID:   req.DestinationID,
		})
	} else {
		err = h.incidents.Resolve(c.Request.Context(), id)
	}

	entry := audit.Entry{
		TraceID:    mw.GetTraceID(c),
		UserID:     &userID,
		Action:     "resolve_incident",
		ItemID:     inc.InventoryItemID,
		VehicleID:  &inc.VehicleID,
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

func encodeImages(images []string) (datatypes.JSON, error) {
	raw, err := json.Marshal(images)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
