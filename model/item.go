package model

import (
	"time"

	"gorm.io/datatypes"
)

// InventoryItem is one catalog entry of stocked equipment. Its units are
// partitioned across locations and conditions in the Locations document;
// the reconciliation engine owns every mutation of that document.
type InventoryItem struct {
	ID       int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name     string         `gorm:"size:128;not null" json:"name"`
	SKU      string         `gorm:"uniqueIndex;size:64;not null" json:"sku"`
	Category string         `gorm:"size:64;index:idx_item_category" json:"category"`
	Quantity int            `gorm:"not null;default:0" json:"quantity"`
	Locations datatypes.JSON `json:"locations"` // []inventory.Partition

	// Version guards the read-modify-write cycle on Locations. Every
	// engine write increments it and matches the value it read.
	Version int64 `gorm:"not null;default:0" json:"version"`

	// Deprecated single-location columns from the first schema. Items
	// still carrying them get a synthesized Locations document at read
	// time; no destructive backfill is required.
	VehicleID   *int64 `json:"vehicle_id,omitempty"`
	WarehouseID *int64 `json:"warehouse_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
