// Package incident binds defect events to incident records and owns
// their lifecycle. Incidents are an annotation on the inventory ledger,
// never a precondition: callers tolerate a missing or failed incident
// write without rolling back stock mutations.
package incident

import (
	"context"
	"errors"
	"time"

	"github.com/backline-app/server/errs"
	"github.com/backline-app/server/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service handles incident persistence and lookup.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService creates a new incident Service.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Create stores a new incident.
func (svc *Service) Create(ctx context.Context, inc *model.Incident) error {
	if inc.Title == "" {
		return errs.Validation("incident title is required")
	}
	if inc.Status == "" {
		inc.Status = model.IncidentOpen
	}
	if inc.Priority == "" {
		inc.Priority = model.PriorityMedium
	}
	if err := svc.db.WithContext(ctx).Create(inc).Error; err != nil {
		return errs.Store("create incident", err)
	}
	return nil
}

// Get returns the incident by ID.
func (svc *Service) Get(ctx context.Context, id int64) (*model.Incident, error) {
	var inc model.Incident
	err := svc.db.WithContext(ctx).First(&inc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("incident %d not found", id)
	}
	if err != nil {
		return nil, errs.Store("get incident", err)
	}
	return &inc, nil
}

// FindActiveForItem returns the oldest unresolved incident referencing
// the item, or nil when none exists. When several partitions of the same
// item are broken at once this pick is ambiguous; the restoration
// resolver narrows it further using the incident's vehicle.
func (svc *Service) FindActiveForItem(ctx context.Context, itemID int64) (*model.Incident, error) {
	var inc model.Incident
	err := svc.db.WithContext(ctx).
		Where("inventory_item_id = ? AND status <> ?", itemID, model.IncidentResolved).
		Order("created_at asc").
		First(&inc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Store("find active incident", err)
	}
	return &inc, nil
}

// Resolve marks the incident resolved. Resolving an already-resolved
// incident is a no-op, not an error.
func (svc *Service) Resolve(ctx context.Context, id int64) error {
	inc, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if inc.Status == model.IncidentResolved {
		return nil
	}
	err = svc.db.WithContext(ctx).Model(inc).Updates(map[string]interface{}{
		"status":     model.IncidentResolved,
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		return errs.Store("resolve incident", err)
	}
	svc.logger.Info("incident resolved", zap.Int64("incident_id", id))
	return nil
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	VehicleID int64
	ItemID    int64
	Status    string
}

// List returns incidents matching the filter, newest first.
func (svc *Service) List(ctx context.Context, f Filter) ([]model.Incident, error) {
	q := svc.db.WithContext(ctx).Model(&model.Incident{})
	if f.VehicleID != 0 {
		q = q.Where("vehicle_id = ?", f.VehicleID)
	}
	if f.ItemID != 0 {
		q = q.Where("inventory_item_id = ?", f.ItemID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var incidents []model.Incident
	if err := q.Order("created_at desc").Find(&incidents).Error; err != nil {
		return nil, errs.Store("list incidents", err)
	}
	return incidents, nil
}

// Update applies a manual admin edit to mutable incident fields.
func (svc *Service) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	fields["updated_at"] = time.Now()
	err := svc.db.WithContext(ctx).Model(&model.Incident{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return errs.Store("update incident", err)
	}
	return nil
}

// MarkStale flags open incidents untouched for longer than maxAge as
// in_progress so the admin dashboard surfaces them. Called from the
// scheduler's aging sweep.
func (svc *Service) MarkStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := svc.db.WithContext(ctx).Model(&model.Incident{}).
		Where("status = ? AND updated_at < ?", model.IncidentOpen, cutoff).
		Update("status", model.IncidentInProgress)
	if res.Error != nil {
		return 0, errs.Store("mark stale incidents", res.Error)
	}
	return res.RowsAffected, nil
}
