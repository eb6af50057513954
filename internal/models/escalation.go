package models

import (
	"time"

	"gorm.io/datatypes"
)

// Escalation is one fired status-boundary alert. Rows are mutated only
// to flip the delivered flag.
type Escalation struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	LeadID string `gorm:"size:64;not null;index" json:"lead_id"`

	EscalationType string     `gorm:"size:32;not null;index" json:"escalation_type"`
	OldStatus      LeadStatus `gorm:"size:16;not null" json:"old_status"`
	NewStatus      LeadStatus `gorm:"size:16;not null" json:"new_status"`
	Score          float64    `json:"score"`

	VehicleID        string `gorm:"size:64" json:"vehicle_id"`
	CustomerName     string `gorm:"size:128" json:"customer_name"`
	CustomerContact  string `gorm:"size:128" json:"customer_contact"`
	SourceChannel    string `gorm:"size:32;default:direct" json:"source_channel"`
	TriggeringAction string `gorm:"size:32" json:"triggering_action"`

	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	EnrichedPayload datatypes.JSON `json:"enriched_payload,omitempty"`

	Delivered   bool       `gorm:"index" json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at"`
}
