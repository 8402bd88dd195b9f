// Package inventory implements the location/condition reconciliation
// engine: the partition ledger of each stocked item, the condition state
// machine, and the restoration flow that moves repaired units back into
// usable stock. Every UI surface that breaks or restores equipment goes
// through this one service.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backline-app/server/cache"
	"github.com/backline-app/server/errs"
	"github.com/backline-app/server/incident"
	"github.com/backline-app/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultLockTTL = 30 * time.Second

// Service is the reconciliation engine.
type Service struct {
	db        *gorm.DB
	incidents *incident.Service
	cache     cache.Cache
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewService creates the reconciliation Service.
func NewService(db *gorm.DB, incidents *incident.Service, c cache.Cache, lockTTL time.Duration, logger *zap.Logger) *Service {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Service{db: db, incidents: incidents, cache: c, lockTTL: lockTTL, logger: logger}
}

// withItemLock serializes reconciliation on one item across sessions.
// A held lock means another operation is mid-flight: the caller gets a
// ConflictError and retries, same contract as a version mismatch.
func (svc *Service) withItemLock(ctx context.Context, itemID int64, fn func() error) error {
	key := fmt.Sprintf("lock:item:%d", itemID)
	ok, err := svc.cache.SetNX(ctx, key, "1", svc.lockTTL)
	if err != nil {
		return errs.Store("acquire item lock", err)
	}
	if !ok {
		return errs.Conflict("item %d is being updated, retry", itemID)
	}
	defer svc.cache.Del(ctx, key)
	return fn()
}

func (svc *Service) getItem(ctx context.Context, itemID int64) (*model.InventoryItem, error) {
	var item model.InventoryItem
	err := svc.db.WithContext(ctx).First(&item, itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("item %d not found", itemID)
	}
	if err != nil {
		return nil, errs.Store("get item", err)
	}
	return &item, nil
}

// saveLocations writes the whole partition document back in one UPDATE,
// guarded by the version the snapshot was read at. Zero rows affected
// means a concurrent edit won; the caller re-reads and retries.
func (svc *Service) saveLocations(ctx context.Context, item *model.InventoryItem, parts []Partition) error {
	raw, err := EncodeLocations(parts)
	if err != nil {
		return errs.Store("encode locations", err)
	}
	res := svc.db.WithContext(ctx).Model(&model.InventoryItem{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]interface{}{
			"locations": raw,
			"version":   item.Version + 1,
		})
	if res.Error != nil {
		return errs.Store("save locations", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Conflict("item %d was modified concurrently", item.ID)
	}
	return nil
}

// AddLocation assigns unallocated stock to a new location. The same
// (type, id) holding stock already is rejected; the caller edits the
// existing entry instead.
func (svc *Service) AddLocation(ctx context.Context, itemID int64, p Partition) error {
	return svc.withItemLock(ctx, itemID, func() error {
		item, err := svc.getItem(ctx, itemID)
		if err != nil {
			return err
		}
		parts, err := DecodeLocations(item)
		if err != nil {
			return err
		}
		if Total(parts)+p.Quantity > item.Quantity {
			return errs.Validation("allocating %d units exceeds the %d unallocated",
				p.Quantity, item.Quantity-Total(parts))
		}
		parts, err = Add(parts, p)
		if err != nil {
			return err
		}
		return svc.saveLocations(ctx, item, parts)
	})
}

// ReportDefect isolates exactly one unit of the partition at
// partitionIndex into the given defect condition and creates the linked
// incident. The inventory write lands first; a failed incident write is
// logged and never rolls the ledger back. Returns the incident ID, or 0
// when the annotation write failed.
func (svc *Service) ReportDefect(ctx context.Context, itemID int64, partitionIndex int, condition Status, reporterID, vehicleID int64) (int64, error) {
	condition = NormalizeStatus(condition)
	if !IsReportableCondition(condition) {
		return 0, errs.Validation("condition %q is not a reportable defect condition", condition)
	}

	var item *model.InventoryItem
	err := svc.withItemLock(ctx, itemID, func() error {
		var err error
		item, err = svc.getItem(ctx, itemID)
		if err != nil {
			return err
		}
		parts, err := DecodeLocations(item)
		if err != nil {
			return err
		}
		if partitionIndex < 0 || partitionIndex >= len(parts) {
			return errs.NotFound("partition index %d out of range", partitionIndex)
		}
		if NormalizeStatus(parts[partitionIndex].Status) != StatusNewFunctional {
			return errs.Validation("partition %d is already in condition %q",
				partitionIndex, parts[partitionIndex].Status)
		}
		// Business rule: a defect report always isolates one unit, even
		// when the stack holds more.
		parts, err = Split(parts, partitionIndex, 1, condition)
		if err != nil {
			return err
		}
		return svc.saveLocations(ctx, item, parts)
	})
	if err != nil {
		return 0, err
	}

	inc := &model.Incident{
		Title:            fmt.Sprintf("Material defect: %s", item.Name),
		Description:      fmt.Sprintf("1 unit of %s (SKU %s) reported %s", item.Name, item.SKU, condition),
		Priority:         PriorityFor(condition),
		Status:           model.IncidentOpen,
		VehicleID:        vehicleID,
		InventoryItemID:  &item.ID,
		ReportedByUserID: reporterID,
	}
	if err := svc.incidents.Create(ctx, inc); err != nil {
		// Annotation write only; the ledger mutation stands.
		svc.logger.Warn("incident creation failed after defect split",
			zap.Int64("item_id", itemID), zap.Error(err))
		return 0, nil
	}
	svc.logger.Info("defect reported",
		zap.Int64("item_id", itemID),
		zap.Int64("incident_id", inc.ID),
		zap.String("condition", string(condition)))
	return inc.ID, nil
}

// MarkOrdered transitions the defect partition at partitionIndex to
// ordered. In-place status mutation, no quantity change, no split.
func (svc *Service) MarkOrdered(ctx context.Context, itemID int64, partitionIndex int) error {
	return svc.withItemLock(ctx, itemID, func() error {
		item, err := svc.getItem(ctx, itemID)
		if err != nil {
			return err
		}
		parts, err := DecodeLocations(item)
		if err != nil {
			return err
		}
		if partitionIndex < 0 || partitionIndex >= len(parts) {
			return errs.NotFound("partition index %d out of range", partitionIndex)
		}
		if !CanMarkOrdered(parts[partitionIndex].Status) {
			return errs.Validation("partition %d in condition %q cannot be marked ordered",
				partitionIndex, parts[partitionIndex].Status)
		}
		parts[partitionIndex].Status = StatusOrdered
		return svc.saveLocations(ctx, item, parts)
	})
}

// SendToRepair moves one unit of the defect partition at partitionIndex
// into the repair pool, keeping its condition.
func (svc *Service) SendToRepair(ctx context.Context, itemID int64, partitionIndex int) error {
	return svc.withItemLock(ctx, itemID, func() error {
		item, err := svc.getItem(ctx, itemID)
		if err != nil {
			return err
		}
		parts, err := DecodeLocations(item)
		if err != nil {
			return err
		}
		if partitionIndex < 0 || partitionIndex >= len(parts) {
			return errs.NotFound("partition index %d out of range", partitionIndex)
		}
		src := parts[partitionIndex]
		if !IsDefect(src.Status) {
			return errs.Validation("partition %d in condition %q is not awaiting repair",
				partitionIndex, src.Status)
		}
		parts, err = RemoveOrDecrement(parts, partitionIndex, 1)
		if err != nil {
			return err
		}
		if i := FindPartition(parts, RepairPool, src.Status); i >= 0 {
			parts[i].Quantity++
		} else {
			parts = append(parts, Partition{Type: LocationRepairPool, Quantity: 1, Status: src.Status})
		}
		return svc.saveLocations(ctx, item, parts)
	})
}

// RestoreToStock moves one repaired or replaced unit back into usable
// stock at the chosen destination and closes the linked incident last.
// incidentID 0 means "none known": the engine looks the incident up and,
// failing that, locates the broken partition heuristically. Restoring
// against an already-resolved incident is a no-op.
func (svc *Service) RestoreToStock(ctx context.Context, itemID, incidentID int64, dest Location) error {
	if dest.Type != LocationWarehouse && dest.Type != LocationVehicle || dest.ID <= 0 {
		return errs.Validation("a warehouse or vehicle destination must be selected")
	}

	var inc *model.Incident
	if incidentID != 0 {
		var err error
		inc, err = svc.incidents.Get(ctx, incidentID)
		if err != nil {
			return err
		}
		if inc.Status == model.IncidentResolved {
			return nil
		}
	} else {
		var err error
		inc, err = svc.incidents.FindActiveForItem(ctx, itemID)
		if err != nil {
			svc.logger.Warn("active incident lookup failed, falling back to heuristic scan",
				zap.Int64("item_id", itemID), zap.Error(err))
			inc = nil
		}
	}

	err := svc.withItemLock(ctx, itemID, func() error {
		item, err := svc.getItem(ctx, itemID)
		if err != nil {
			return err
		}
		parts, err := DecodeLocations(item)
		if err != nil {
			return err
		}

		srcIdx := locateDefect(parts, inc)
		if srcIdx < 0 {
			return errs.NotFound("item %d has no broken partition to restore", itemID)
		}

		parts, err = RemoveOrDecrement(parts, srcIdx, 1)
		if err != nil {
			return err
		}
		if i := FindPartition(parts, dest, StatusNewFunctional); i >= 0 {
			parts[i].Quantity++
		} else {
			parts = append(parts, Partition{
				Type:     dest.Type,
				ID:       dest.ID,
				Quantity: 1,
				Status:   StatusNewFunctional,
			})
		}
		return svc.saveLocations(ctx, item, parts)
	})
	if err != nil {
		return err
	}

	// Resolution is the last step: a failure here leaves the inventory
	// consistent and the incident re-resolvable.
	if inc != nil {
		if err := svc.incidents.Resolve(ctx, inc.ID); err != nil {
			svc.logger.Warn("incident resolution failed after restore",
				zap.Int64("incident_id", inc.ID), zap.Error(err))
		}
	}
	svc.logger.Info("stock restored",
		zap.Int64("item_id", itemID),
		zap.String("dest_type", string(dest.Type)),
		zap.Int64("dest_id", dest.ID))
	return nil
}

// locateDefect finds the partition a restoration should draw from. An
// incident pins the defect to its vehicle when possible; otherwise the
// first partition in defect-priority order wins.
func locateDefect(parts []Partition, inc *model.Incident) int {
	if inc != nil && inc.VehicleID != 0 {
		for _, status := range defectScanOrder {
			if i := FindPartition(parts, Vehicle(inc.VehicleID), status); i >= 0 {
				return i
			}
		}
	}
	for _, status := range defectScanOrder {
		for i, p := range parts {
			if NormalizeStatus(p.Status) == status {
				return i
			}
		}
	}
	return -1
}

// Locations returns the item's decoded partition document.
func (svc *Service) Locations(ctx context.Context, itemID int64) ([]Partition, error) {
	item, err := svc.getItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return DecodeLocations(item)
}
