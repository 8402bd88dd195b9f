package model

import "time"

// Vehicle statuses.
const (
	VehicleActive   = "active"
	VehicleInRepair = "in_repair"
	VehicleRetired  = "retired"
)

// Vehicle is a van or truck in the fleet.
type Vehicle struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Plate     string    `gorm:"uniqueIndex;size:16;not null" json:"plate"`
	Make      string    `gorm:"size:32" json:"make"`
	Model     string    `gorm:"size:32" json:"model"`
	Year      int       `json:"year"`
	Status    string    `gorm:"size:16;default:active" json:"status"` // active | in_repair | retired
	DriverID  *int64    `gorm:"index:idx_vehicle_driver" json:"driver_id"`
	RenterID  *int64    `json:"renter_id"`
	Mileage   int       `gorm:"default:0" json:"mileage"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Warehouse is a storage location for stocked equipment.
type Warehouse struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Address   string    `gorm:"size:256" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Workshop is an external repair shop vehicles and gear are sent to.
type Workshop struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:64;not null" json:"name"`
	Address   string    `gorm:"size:256" json:"address"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Email     string    `gorm:"size:128" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Renter is a renting company the fleet serves.
type Renter struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"size:64;not null" json:"name"`
	ContactName string    `gorm:"size:64" json:"contact_name"`
	Email       string    `gorm:"size:128" json:"email"`
	Phone       string    `gorm:"size:32" json:"phone"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
