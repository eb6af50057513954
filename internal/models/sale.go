package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sale is one closed transaction. Rows are immutable once created.
type Sale struct {
	ID        string `gorm:"primaryKey;size:64" json:"sale_id"`
	VehicleID string `gorm:"size:64;not null;index" json:"vehicle_id"`
	LeadID    string `gorm:"size:64;index" json:"lead_id"`

	DealerName string `gorm:"size:128" json:"dealer_name"`
	DealerZip  string `gorm:"size:10;index" json:"dealer_zip"`

	SoldPrice float64 `gorm:"not null" json:"sold_price"`
	// ListedPrice snapshots the vehicle price at sale time.
	ListedPrice float64 `json:"listed_price"`

	SourceChannel string `gorm:"size:32;default:direct;index" json:"source_channel"`
	SalespersonID string `gorm:"size:64" json:"salesperson_id"`

	SoldAt     time.Time      `gorm:"index" json:"sold_at"`
	RecordedAt time.Time      `json:"recorded_at"`
	Metadata   datatypes.JSON `json:"metadata"`
}
