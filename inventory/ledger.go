package inventory

import (
	"encoding/json"

	"github.com/backline-app/server/errs"
	"github.com/backline-app/server/model"
	"gorm.io/datatypes"
)

// LocationType is where a partition of stock lives.
type LocationType string

const (
	LocationWarehouse  LocationType = "warehouse"
	LocationVehicle    LocationType = "vehicle"
	LocationRepairPool LocationType = "repair_pool"
)

// Location identifies one holder of stock. The repair pool is a proper
// variant with no ID, not a sentinel identifier.
type Location struct {
	Type LocationType
	ID   int64
}

// Warehouse returns the Location of the given warehouse.
func Warehouse(id int64) Location { return Location{Type: LocationWarehouse, ID: id} }

// Vehicle returns the Location of the given vehicle.
func Vehicle(id int64) Location { return Location{Type: LocationVehicle, ID: id} }

// RepairPool is the implicit holder of units out for repair.
var RepairPool = Location{Type: LocationRepairPool}

// Valid reports whether the location can be a stock destination.
func (l Location) Valid() bool {
	switch l.Type {
	case LocationWarehouse, LocationVehicle:
		return l.ID > 0
	case LocationRepairPool:
		return true
	}
	return false
}

// Partition is one (location, quantity, condition) slice of an item's
// stock. Uniqueness within an item is on the full (type, id, status)
// triple: a defect split legitimately duplicates (type, id).
type Partition struct {
	Type     LocationType `json:"type"`
	ID       int64        `json:"id,omitempty"`
	Quantity int          `json:"quantity"`
	Status   Status       `json:"status,omitempty"`
}

// Location returns the partition's location.
func (p Partition) Location() Location { return Location{Type: p.Type, ID: p.ID} }

// Total sums the quantity across all partitions.
func Total(parts []Partition) int {
	n := 0
	for _, p := range parts {
		n += p.Quantity
	}
	return n
}

// Add appends a new partition. It rejects non-positive quantities and an
// existing entry at the same (type, id): the add-location workflow must
// edit the existing row instead. Splits bypass this guard on purpose.
func Add(parts []Partition, p Partition) ([]Partition, error) {
	if p.Quantity <= 0 {
		return nil, errs.Validation("partition quantity must be positive, got %d", p.Quantity)
	}
	if !p.Location().Valid() {
		return nil, errs.Validation("invalid location %s/%d", p.Type, p.ID)
	}
	for _, existing := range parts {
		if existing.Type == p.Type && existing.ID == p.ID {
			return nil, errs.Validation("location %s/%d already holds stock, edit the existing entry", p.Type, p.ID)
		}
	}
	p.Status = NormalizeStatus(p.Status)
	return append(parts, p), nil
}

// Split takes amount units from the partition at index and gives them
// newStatus. Taking the whole partition mutates the row in place; taking
// part of it decrements the row and appends a new one. Total quantity
// across the touched rows is unchanged.
func Split(parts []Partition, index, amount int, newStatus Status) ([]Partition, error) {
	if index < 0 || index >= len(parts) {
		return nil, errs.NotFound("partition index %d out of range", index)
	}
	if amount <= 0 {
		return nil, errs.Validation("split amount must be positive, got %d", amount)
	}
	src := parts[index]
	if amount > src.Quantity {
		return nil, errs.Validation("split amount %d exceeds available %d", amount, src.Quantity)
	}
	if amount == src.Quantity {
		parts[index].Status = NormalizeStatus(newStatus)
		return parts, nil
	}
	parts[index].Quantity -= amount
	return append(parts, Partition{
		Type:     src.Type,
		ID:       src.ID,
		Quantity: amount,
		Status:   NormalizeStatus(newStatus),
	}), nil
}

// RemoveOrDecrement takes amount units out of the partition at index,
// deleting the row when it reaches zero. No zero-quantity row survives.
func RemoveOrDecrement(parts []Partition, index, amount int) ([]Partition, error) {
	if index < 0 || index >= len(parts) {
		return nil, errs.NotFound("partition index %d out of range", index)
	}
	if amount <= 0 {
		return nil, errs.Validation("amount must be positive, got %d", amount)
	}
	if amount > parts[index].Quantity {
		return nil, errs.Validation("amount %d exceeds available %d", amount, parts[index].Quantity)
	}
	if amount == parts[index].Quantity {
		return append(parts[:index], parts[index+1:]...), nil
	}
	parts[index].Quantity -= amount
	return parts, nil
}

// FindPartition returns the index of the row matching the full
// (location, status) key, or -1. Statuses are compared normalized.
func FindPartition(parts []Partition, loc Location, status Status) int {
	want := NormalizeStatus(status)
	for i, p := range parts {
		if p.Type == loc.Type && p.ID == loc.ID && NormalizeStatus(p.Status) == want {
			return i
		}
	}
	return -1
}

// DecodeLocations reads an item's partition document, normalizing legacy
// status aliases. Items from the first schema carrying only a vehicle_id
// or warehouse_id column get a single synthesized partition holding the
// whole quantity; the stored document is not rewritten.
func DecodeLocations(item *model.InventoryItem) ([]Partition, error) {
	var parts []Partition
	if len(item.Locations) > 0 {
		if err := json.Unmarshal(item.Locations, &parts); err != nil {
			return nil, errs.Validation("item %d has a malformed locations document: %v", item.ID, err)
		}
	}
	if len(parts) == 0 {
		switch {
		case item.VehicleID != nil:
			parts = []Partition{{Type: LocationVehicle, ID: *item.VehicleID, Quantity: item.Quantity, Status: StatusNewFunctional}}
		case item.WarehouseID != nil:
			parts = []Partition{{Type: LocationWarehouse, ID: *item.WarehouseID, Quantity: item.Quantity, Status: StatusNewFunctional}}
		}
	}
	for i := range parts {
		parts[i].Status = NormalizeStatus(parts[i].Status)
	}
	return parts, nil
}

// EncodeLocations marshals the partition document for storage.
func EncodeLocations(parts []Partition) (datatypes.JSON, error) {
	if parts == nil {
		parts = []Partition{}
	}
	raw, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
