package model

import (
	"time"

	"gorm.io/datatypes"
)

// Incident priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Incident statuses.
const (
	IncidentOpen       = "open"
	IncidentInProgress = "in_progress"
	IncidentResolved   = "resolved"
	IncidentClosed     = "closed"
)

// Incident is a defect or damage report. When InventoryItemID is set the
// incident annotates a material defect and resolving it triggers stock
// restoration; otherwise it is a plain vehicle incident.
type Incident struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string         `gorm:"size:128;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	Priority        string         `gorm:"size:16;default:medium" json:"priority"` // low | medium | high | critical
	Status          string         `gorm:"size:16;default:open;index:idx_incident_status" json:"status"`
	VehicleID       int64          `gorm:"index:idx_incident_vehicle;not null" json:"vehicle_id"`
	InventoryItemID *int64         `gorm:"index:idx_incident_item" json:"inventory_item_id,omitempty"`
	ReportedByUserID int64         `json:"reported_by_user_id"`
	Images          datatypes.JSON `json:"images,omitempty"` // []string of stored image keys
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
