package rest

import (
	"errors"
	"net/http"

	mw "github.com/backline-app/server/middleware"
	"github.com/backline-app/server/model"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// FleetHandler handles vehicles, warehouses, workshops and renters.
type FleetHandler struct {
	db *gorm.DB
}

// NewFleetHandler creates a new FleetHandler.
func NewFleetHandler(db *gorm.DB) *FleetHandler {
	return &FleetHandler{db: db}
}

// MyFleet handles GET /api/fleet: the driver portal view, vehicles
// assigned to the calling user with their open incidents.
func (h *FleetHandler) MyFleet(c *gin.Context) {
	userID := mw.GetUserID(c)

	var vehicles []model.Vehicle
	q := h.db.Model(&model.Vehicle{})
	if mw.GetRole(c) != model.RoleAdmin {
		q = q.Where("driver_id = ?", userID)
	}
	if err := q.Order("plate asc").Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ids := make([]int64, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.ID)
	}
	var open []model.Incident
	if len(ids) > 0 {
		if err := h.db.Where("vehicle_id IN ? AND status <> ?", ids, model.IncidentResolved).
			Order("created_at desc").Find(&open).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles, "open_incidents": open})
}

// ListVehicles handles GET /api/vehicles with optional status filter.
func (h *FleetHandler) ListVehicles(c *gin.Context) {
	q := h.db.Model(&model.Vehicle{})
	if s := c.Query("status"); s != "" {
		q = q.Where("status = ?", s)
	}
	var vehicles []model.Vehicle
	if err := q.Order("plate asc").Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

// GetVehicle handles GET /api/vehicles/:id, including the vehicle's
// unresolved incidents.
func (h *FleetHandler) GetVehicle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var v model.Vehicle
	if err := h.db.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	var open []model.Incident
	if err := h.db.Where("vehicle_id = ? AND status <> ?", id, model.IncidentResolved).
		Order("created_at desc").Find(&open).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicle": v, "open_incidents": open})
}

type vehicleRequest struct {
	Plate    string `json:"plate" binding:"required,max=16"`
	Make     string `json:"make" binding:"max=32"`
	Model    string `json:"model" binding:"max=32"`
	Year     int    `json:"year"`
	DriverID *int64 `json:"driver_id"`
	RenterID *int64 `json:"renter_id"`
	Mileage  int    `json:"mileage" binding:"min=0"`
}

// CreateVehicle handles POST /api/vehicles.
func (h *FleetHandler) CreateVehicle(c *gin.Context) {
	var req vehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := &model.Vehicle{
		Plate:    req.Plate,
		Make:     req.Make,
		Model:    req.Model,
		Year:     req.Year,
		Status:   model.VehicleActive,
		DriverID: req.DriverID,
		RenterID: req.RenterID,
		Mileage:  req.Mileage,
	}
	if err := h.db.Create(v).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vehicle": v})
}

type updateVehicleRequest struct {
	Status   *string `json:"status" binding:"omitempty,oneof=active in_repair retired"`
	DriverID *int64  `json:"driver_id"`
	RenterID *int64  `json:"renter_id"`
	Mileage  *int    `json:"mileage"`
}

// UpdateVehicle handles PUT /api/vehicles/:id.
func (h *FleetHandler) UpdateVehicle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req updateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.DriverID != nil {
		fields["driver_id"] = *req.DriverID
	}
	if req.RenterID != nil {
		fields["renter_id"] = *req.RenterID
	}
	if req.Mileage != nil {
		fields["mileage"] = *req.Mileage
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	res := h.db.Model(&model.Vehicle{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListWarehouses handles GET /api/warehouses.
func (h *FleetHandler) ListWarehouses(c *gin.Context) {
	var rows []model.Warehouse
	if err := h.db.Order("name asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"warehouses": rows})
}

type warehouseRequest struct {
	Name    string `json:"name" binding:"required,max=64"`
	Address string `json:"address" binding:"max=256"`
}

// CreateWarehouse handles POST /api/warehouses.
func (h *FleetHandler) CreateWarehouse(c *gin.Context) {
	var req warehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := &model.Warehouse{Name: req.Name, Address: req.Address}
	if err := h.db.Create(w).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"warehouse": w})
}

// ListWorkshops handles GET /api/workshops.
func (h *FleetHandler) ListWorkshops(c *gin.Context) {
	var rows []model.Workshop
	if err := h.db.Order("name asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workshops": rows})
}

type workshopRequest struct {
	Name    string `json:"name" binding:"required,max=64"`
	Address string `json:"address" binding:"max=256"`
	Phone   string `json:"phone" binding:"max=32"`
	Email   string `json:"email" binding:"omitempty,email,max=128"`
}

// CreateWorkshop handles POST /api/workshops.
func (h *FleetHandler) CreateWorkshop(c *gin.Context) {
	var req workshopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := &model.Workshop{Name: req.Name, Address: req.Address, Phone: req.Phone, Email: req.Email}
	if err := h.db.Create(w).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"workshop": w})
}

// UpdateWarehouse handles PUT /api/warehouses/:id.
func (h *FleetHandler) UpdateWarehouse(c *gin.Context) {
	h.updateNamed(c, &model.Warehouse{}, "warehouse")
}

// DeleteWarehouse handles DELETE /api/warehouses/:id.
func (h *FleetHandler) DeleteWarehouse(c *gin.Context) {
	h.deleteByID(c, &model.Warehouse{}, "warehouse")
}

// UpdateWorkshop handles PUT /api/workshops/:id.
func (h *FleetHandler) UpdateWorkshop(c *gin.Context) {
	h.updateNamed(c, &model.Workshop{}, "workshop")
}

// DeleteWorkshop handles DELETE /api/workshops/:id.
func (h *FleetHandler) DeleteWorkshop(c *gin.Context) {
	h.deleteByID(c, &model.Workshop{}, "workshop")
}

// ListRenters handles GET /api/renters.
func (h *FleetHandler) ListRenters(c *gin.Context) {
	var rows []model.Renter
	if err := h.db.Order("name asc").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"renters": rows})
}

type renterRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	ContactName string `json:"contact_name" binding:"max=64"`
	Email       string `json:"email" binding:"omitempty,email,max=128"`
	Phone       string `json:"phone" binding:"max=32"`
}

// CreateRenter handles POST /api/renters.
func (h *FleetHandler) CreateRenter(c *gin.Context) {
	var req renterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r := &model.Renter{Name: req.Name, ContactName: req.ContactName, Email: req.Email, Phone: req.Phone}
	if err := h.db.Create(r).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"renter": r})
}

// UpdateRenter handles PUT /api/renters/:id.
func (h *FleetHandler) UpdateRenter(c *gin.Context) {
	h.updateNamed(c, &model.Renter{}, "renter")
}

// DeleteRenter handles DELETE /api/renters/:id.
func (h *FleetHandler) DeleteRenter(c *gin.Context) {
	h.deleteByID(c, &model.Renter{}, "renter")
}

// updateNamed applies a partial JSON body of known string fields to any
// of the simple registry models.
func (h *FleetHandler) updateNamed(c *gin.Context, m interface{}, label string) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fields := map[string]interface{}{}
	for _, k := range []string{"name", "address", "phone", "email", "contact_name"} {
		if v, ok := body[k].(string); ok {
			fields[k] = v
		}
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	res := h.db.Model(m).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": label + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *FleetHandler) deleteByID(c *gin.Context, m interface{}, label string) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.Delete(m, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": label + " not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
