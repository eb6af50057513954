package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// AvailabilityStatus is the visibility lifecycle state of a listing.
type AvailabilityStatus string

const (
	StatusInStock         AvailabilityStatus = "in_stock"
	StatusInTransit       AvailabilityStatus = "in_transit"
	StatusOffMarket       AvailabilityStatus = "off_market"
	StatusSold            AvailabilityStatus = "sold"
	StatusArchivedSold    AvailabilityStatus = "archived_sold"
	StatusArchivedRemoved AvailabilityStatus = "archived_removed"
)

// ArchivedStatuses are hidden from every read path. Rows are kept for
// lead and sale referential integrity.
var ArchivedStatuses = []AvailabilityStatus{StatusArchivedSold, StatusArchivedRemoved}

// HiddenFromSearchStatuses are excluded from customer-facing search
// unless the caller opts into sold inventory.
var HiddenFromSearchStatuses = []AvailabilityStatus{
	StatusSold, StatusArchivedSold, StatusArchivedRemoved,
}

// Vehicle is one inventory listing. IDs are caller-assigned; VINs are
// stored upper-cased and unique among non-archived rows.
type Vehicle struct {
	ID             string   `gorm:"primaryKey;size:64" json:"id"`
	Year           int      `gorm:"not null;index" json:"year"`
	Make           string   `gorm:"size:64;not null;index;index:idx_vehicles_make_model,priority:1" json:"make"`
	Model          string   `gorm:"size:64;not null;index:idx_vehicles_make_model,priority:2" json:"model"`
	Trim           string   `gorm:"size:64" json:"trim"`
	BodyType       string   `gorm:"size:32;index" json:"body_type"`
	Price          float64  `gorm:"not null;index" json:"price"`
	Mileage        int      `json:"mileage"`
	ExteriorColor  string   `gorm:"size:32" json:"exterior_color"`
	InteriorColor  string   `gorm:"size:32" json:"interior_color"`
	FuelType       string   `gorm:"size:32;index" json:"fuel_type"`
	MPGCity        int      `json:"mpg_city"`
	MPGHighway     int      `json:"mpg_highway"`
	Engine         string   `gorm:"size:64" json:"engine"`
	Transmission   string   `gorm:"size:64" json:"transmission"`
	Drivetrain     string   `gorm:"size:32" json:"drivetrain"`
	Features       string   `gorm:"type:json;default:'[]'" json:"features"`
	SafetyRating   int      `json:"safety_rating"`
	DealerName     string   `gorm:"size:128" json:"dealer_name"`
	DealerLocation string   `gorm:"size:128;index" json:"dealer_location"`
	DealerZip      string   `gorm:"size:10;index" json:"dealer_zip"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`

	AvailabilityStatus AvailabilityStatus `gorm:"size:24;default:in_stock;index" json:"availability_status"`
	VIN                string             `gorm:"size:17;index" json:"vin"`

	Source    string `gorm:"size:32;default:feed;index" json:"source"`
	SourceURL string `gorm:"size:512" json:"source_url"`

	IngestedAt   *time.Time `gorm:"index" json:"ingested_at"`
	ExpiresAt    *time.Time `gorm:"index" json:"expires_at"`
	LastVerified *time.Time `json:"last_verified"`

	IsFeatured bool `json:"is_featured"`
	LeadCount  int  `json:"lead_count"`

	// UpdatedAt is maintained internally and never exposed to callers.
	UpdatedAt time.Time `json:"-"`
}

// Archived reports whether the row is hidden from all read paths.
func (v *Vehicle) Archived() bool {
	return v.AvailabilityStatus == StatusArchivedSold ||
		v.AvailabilityStatus == StatusArchivedRemoved
}

// Summary renders the "2022 Toyota RAV4 XLE" display line.
func (v *Vehicle) Summary() string {
	s := ""
	if v.Year > 0 {
		s = strconv.Itoa(v.Year) + " "
	}
	s += v.Make + " " + v.Model
	if v.Trim != "" {
		s += " " + v.Trim
	}
	return s
}

// FeatureList decodes the JSON features column. Malformed or non-list
// payloads decode to an empty list, matching the "[]" storage contract.
func (v *Vehicle) FeatureList() []string {
	if v.Features == "" || v.Features == "[]" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(v.Features), &out); err != nil {
		return []string{}
	}
	return out
}

// SetFeatures encodes an ordered feature list into the JSON column.
// An empty or nil list round-trips as "[]".
func (v *Vehicle) SetFeatures(features []string) {
	if len(features) == 0 {
		v.Features = "[]"
		return
	}
	data, err := json.Marshal(features)
	if err != nil {
		v.Features = "[]"
		return
	}
	v.Features = string(data)
}
