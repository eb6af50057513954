package models

import (
	"time"

	"gorm.io/datatypes"
)

// LeadStatus is the lifecycle state of a lead profile. Automatic
// transitions only move forward; won and lost are terminal.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadEngaged   LeadStatus = "engaged"
	LeadQualified LeadStatus = "qualified"
	LeadWon       LeadStatus = "won"
	LeadLost      LeadStatus = "lost"
)

// Terminal reports whether the status freezes further automatic transitions.
func (s LeadStatus) Terminal() bool {
	return s == LeadWon || s == LeadLost
}

// LeadEvent is one immutable engagement action against a vehicle, with
// whatever identity signals were available at call time. The vehicle
// snapshot columns (VIN, dealer) let lead analytics survive archival.
type LeadEvent struct {
	ID         string `gorm:"primaryKey;size:64" json:"event_id"`
	VehicleID  string `gorm:"size:64;not null;index;index:idx_lead_events_vehicle_created,priority:1" json:"vehicle_id"`
	VehicleVIN string `gorm:"size:17" json:"vehicle_vin"`
	DealerName string `gorm:"size:128" json:"dealer_name"`
	DealerZip  string `gorm:"size:10;index" json:"dealer_zip"`

	LeadID          string `gorm:"size:64;index;index:idx_lead_events_lead_created,priority:1" json:"lead_id"`
	CustomerID      string `gorm:"size:64;index" json:"customer_id"`
	SessionID       string `gorm:"size:64;index" json:"session_id"`
	CustomerName    string `gorm:"size:128" json:"customer_name"`
	CustomerContact string `gorm:"size:128" json:"customer_contact"`

	Action        string         `gorm:"size:32;not null;index" json:"action"`
	UserQuery     string         `gorm:"type:text" json:"user_query"`
	SourceChannel string         `gorm:"size:32;default:direct;index" json:"source_channel"`
	EventMeta     datatypes.JSON `json:"event_meta"`

	CreatedAt time.Time `gorm:"index;index:idx_lead_events_vehicle_created,priority:2;index:idx_lead_events_lead_created,priority:2" json:"created_at"`
}

// LeadProfile is the identity-resolved aggregate of one customer's
// engagement history. Profiles are created on first contact and never
// deleted.
type LeadProfile struct {
	ID              string `gorm:"primaryKey;size:64" json:"lead_id"`
	CustomerID      string `gorm:"size:64;index" json:"customer_id"`
	SessionID       string `gorm:"size:64;index" json:"session_id"`
	CustomerName    string `gorm:"size:128" json:"customer_name"`
	CustomerContact string `gorm:"size:128;index" json:"customer_contact"`

	Status LeadStatus `gorm:"size:16;default:new;index" json:"status"`
	Score  float64    `gorm:"index" json:"score"`

	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastActivityAt time.Time `gorm:"index" json:"last_activity_at"`
	LastVehicleID  string    `gorm:"size:64" json:"last_vehicle_id"`
	SourceChannel  string    `gorm:"size:32;default:direct" json:"source_channel"`
	Notes          string    `gorm:"type:text" json:"notes"`
}
