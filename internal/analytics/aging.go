// Package analytics produces the dealer-facing inventory reports:
// aging, pricing position and engagement funnel.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Thresholds tune the reports. Zero values fall back to defaults.
type Thresholds struct {
	MinDaysOnLot       int
	StaleDaysThreshold int
	OverpricedPct      float64
	UnderpricedPct     float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.MinDaysOnLot <= 0 {
		t.MinDaysOnLot = 30
	}
	if t.StaleDaysThreshold <= 0 {
		t.StaleDaysThreshold = 45
	}
	if t.OverpricedPct == 0 {
		t.OverpricedPct = 5.0
	}
	if t.UnderpricedPct == 0 {
		t.UnderpricedPct = -5.0
	}
	return t
}

// Engine computes reports over the shared store.
type Engine struct {
	h   *db.Handle
	th  Thresholds
	log *zap.SugaredLogger
}

// NewEngine creates a report engine with the given thresholds.
func NewEngine(h *db.Handle, th Thresholds, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{h: h, th: th.withDefaults(), log: log.With("component", "analytics")}
}

// Lead velocity buckets for a listing's last-7-day engagement.
const (
	VelocityHigh   = "high"
	VelocityMedium = "medium"
	VelocityLow    = "low"
)

func velocityFor(leads7d int64) string {
	switch {
	case leads7d >= 5:
		return VelocityHigh
	case leads7d >= 2:
		return VelocityMedium
	default:
		return VelocityLow
	}
}

// leadActivity holds recent engagement counts for one vehicle.
type leadActivity struct {
	Leads7d  int64
	Leads30d int64
}

// leadActivityByVehicle counts events in the last 7 and 30 days in one
// grouped query so reports never fan out per vehicle.
func leadActivityByVehicle(tx *gorm.DB, now time.Time) (map[string]leadActivity, error) {
	since7 := now.AddDate(0, 0, -7)
	since30 := now.AddDate(0, 0, -30)
	var rows []struct {
		VehicleID string
		N7        int64
		N30       int64
	}
	err := tx.Model(&models.LeadEvent{}).
		Select("vehicle_id, SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END) AS n7, COUNT(*) AS n30", since7).
		Where("created_at >= ?", since30).
		Group("vehicle_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("analytics: lead activity: %w", err)
	}
	out := make(map[string]leadActivity, len(rows))
	for _, r := range rows {
		out[r.VehicleID] = leadActivity{Leads7d: r.N7, Leads30d: r.N30}
	}
	return out, nil
}

// AgedListing is one active listing's time-on-lot position.
type AgedListing struct {
	VehicleID  string  `json:"vehicle_id"`
	Summary    string  `json:"summary"`
	BodyType   string  `json:"body_type"`
	Price      float64 `json:"price"`
	AgeDays    int     `json:"age_days"`
	UnknownAge bool    `json:"unknown_age,omitempty"`
	Leads7d    int64   `json:"leads_7d"`
	Leads30d   int64   `json:"leads_30d"`
	Velocity   string  `json:"velocity"`
	Stale      bool    `json:"stale"`
}

// BodyTypeSummary aggregates the aging report per body type.
type BodyTypeSummary struct {
	Count         int     `json:"count"`
	MedianAgeDays float64 `json:"median_age_days"`
	StaleCount    int     `json:"stale_count"`
	LowVelocity   int     `json:"low_velocity"`
}

// AgingReport lists every active vehicle's age and engagement
// velocity, oldest first, with per-body-type rollups.
type AgingReport struct {
	TotalActive  int64                      `json:"total_active"`
	AvgDaysOnLot float64                    `json:"avg_days_on_lot"`
	StaleCount   int64                      `json:"stale_count"`
	Listings     []AgedListing              `json:"listings"`
	ByBodyType   map[string]BodyTypeSummary `json:"by_body_type"`
}

// listingAge derives a listing's age in days from its ingest
// timestamp, falling back to the row's update time. A listing with
// neither reports unknown.
func listingAge(v models.Vehicle, now time.Time) (int, bool) {
	ref := v.IngestedAt
	if ref == nil && !v.UpdatedAt.IsZero() {
		t := v.UpdatedAt
		ref = &t
	}
	if ref == nil {
		return 0, true
	}
	return int(now.Sub(*ref).Hours() / 24), false
}

// Aging computes days on lot and lead velocity for every active
// listing. Ages are derived in Go so the query stays portable.
func (e *Engine) Aging() (*AgingReport, error) {
	now := time.Now().UTC()
	rep := &AgingReport{ByBodyType: make(map[string]BodyTypeSummary)}
	agesByBody := make(map[string][]int)

	err := e.h.WithLock(func(tx *gorm.DB) error {
		var rows []models.Vehicle
		err := tx.Where("availability_status NOT IN ?", models.HiddenFromSearchStatuses).
			Find(&rows).Error
		if err != nil {
			return err
		}
		activity, err := leadActivityByVehicle(tx, now)
		if err != nil {
			return err
		}

		rep.TotalActive = int64(len(rows))
		var totalDays int
		for _, v := range rows {
			days, unknown := listingAge(v, now)
			totalDays += days
			act := activity[v.ID]
			stale := !unknown && days >= e.th.MinDaysOnLot
			if stale {
				rep.StaleCount++
			}
			listing := AgedListing{
				VehicleID:  v.ID,
				Summary:    v.Summary(),
				BodyType:   v.BodyType,
				Price:      v.Price,
				AgeDays:    days,
				UnknownAge: unknown,
				Leads7d:    act.Leads7d,
				Leads30d:   act.Leads30d,
				Velocity:   velocityFor(act.Leads7d),
				Stale:      stale,
			}
			rep.Listings = append(rep.Listings, listing)

			body := v.BodyType
			if body == "" {
				body = "unknown"
			}
			s := rep.ByBodyType[body]
			s.Count++
			if stale {
				s.StaleCount++
			}
			if listing.Velocity == VelocityLow {
				s.LowVelocity++
			}
			rep.ByBodyType[body] = s
			if !unknown {
				agesByBody[body] = append(agesByBody[body], days)
			}
		}
		if len(rows) > 0 {
			rep.AvgDaysOnLot = float64(totalDays) / float64(len(rows))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: aging: %w", err)
	}

	// Known ages first, then oldest first, id as tiebreak.
	sort.Slice(rep.Listings, func(i, j int) bool {
		a, b := rep.Listings[i], rep.Listings[j]
		if a.UnknownAge != b.UnknownAge {
			return !a.UnknownAge
		}
		if a.AgeDays != b.AgeDays {
			return a.AgeDays > b.AgeDays
		}
		return a.VehicleID < b.VehicleID
	})
	for body, ages := range agesByBody {
		s := rep.ByBodyType[body]
		s.MedianAgeDays = medianInts(ages)
		rep.ByBodyType[body] = s
	}
	return rep, nil
}

func medianInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]int(nil), vals...)
	sort.Ints(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
