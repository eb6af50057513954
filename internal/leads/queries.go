package leads

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// detailEventLimit caps the event history returned by LeadDetail.
const detailEventLimit = 250

// highIntentActions are the signals surfaced in a lead's recent
// activity summary.
var highIntentActions = []string{
	"contact_dealer", "availability_check", "test_drive",
	"reserve_vehicle", "purchase_deposit",
}

// HotLead is one profile in the follow-up queue with its activity
// breakdown.
type HotLead struct {
	models.LeadProfile
	Band          string           `json:"band"`
	EventCount    int64            `json:"event_count"`
	ActionCounts  map[string]int64 `json:"action_counts"`
	VehicleCounts map[string]int64 `json:"vehicle_counts"`
}

// HotLeadFilters narrows the follow-up queue. Zero values fall back to
// the engaged threshold, no zip restriction, a 30-day recency window
// (Days=-1 for all time) and a limit of 25.
type HotLeadFilters struct {
	Limit     int
	MinScore  float64
	DealerZip string
	Days      int
}

// HotLeads lists non-terminal profiles at or above the score floor,
// highest score first, then most recently active. The recency window
// defaults to 30 days; a negative Days disables it. The dealer zip
// filter matches through each profile's last-touched vehicle. Action
// and vehicle breakdowns are fetched in grouped queries rather than
// per lead.
func (e *Engine) HotLeads(f HotLeadFilters) ([]HotLead, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 25
	}
	if f.MinScore <= 0 {
		f.MinScore = EngagedThreshold
	}
	if f.Days == 0 {
		f.Days = 30
	}
	var out []HotLead
	err := e.h.WithLock(func(tx *gorm.DB) error {
		q := tx.Model(&models.LeadProfile{}).
			Where("lead_profiles.score >= ? AND lead_profiles.status NOT IN ?", f.MinScore,
				[]models.LeadStatus{models.LeadWon, models.LeadLost})
		if f.DealerZip != "" {
			q = q.Select("lead_profiles.*").
				Joins("JOIN vehicles ON vehicles.id = lead_profiles.last_vehicle_id").
				Where("vehicles.dealer_zip = ?", f.DealerZip)
		}
		if f.Days > 0 {
			q = q.Where("lead_profiles.last_activity_at >= ?",
				time.Now().UTC().AddDate(0, 0, -f.Days))
		}
		var profiles []models.LeadProfile
		err := q.Order("lead_profiles.score DESC, lead_profiles.last_activity_at DESC").
			Limit(f.Limit).
			Find(&profiles).Error
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			return nil
		}

		leadIDs := make([]string, len(profiles))
		for i, p := range profiles {
			leadIDs[i] = p.ID
		}
		var rows []struct {
			LeadID string
			Label  string
			N      int64
		}
		err = tx.Model(&models.LeadEvent{}).
			Select("lead_id, action AS label, COUNT(*) AS n").
			Where("lead_id IN ?", leadIDs).
			Group("lead_id, action").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		actionCounts := make(map[string]map[string]int64, len(profiles))
		for _, r := range rows {
			if actionCounts[r.LeadID] == nil {
				actionCounts[r.LeadID] = make(map[string]int64)
			}
			actionCounts[r.LeadID][r.Label] = r.N
		}

		rows = rows[:0]
		err = tx.Model(&models.LeadEvent{}).
			Select("lead_id, vehicle_id AS label, COUNT(*) AS n").
			Where("lead_id IN ?", leadIDs).
			Group("lead_id, vehicle_id").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		vehicleCounts := make(map[string]map[string]int64, len(profiles))
		for _, r := range rows {
			if vehicleCounts[r.LeadID] == nil {
				vehicleCounts[r.LeadID] = make(map[string]int64)
			}
			vehicleCounts[r.LeadID][r.Label] = r.N
		}

		out = make([]HotLead, len(profiles))
		for i, p := range profiles {
			hl := HotLead{
				LeadProfile:   p,
				Band:          ScoreBand(p.Score),
				ActionCounts:  actionCounts[p.ID],
				VehicleCounts: vehicleCounts[p.ID],
			}
			for _, n := range hl.ActionCounts {
				hl.EventCount += n
			}
			out[i] = hl
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("leads: hot leads: %w", err)
	}
	return out, nil
}

// EventWithContribution is one history entry annotated with its current
// share of the lead's score.
type EventWithContribution struct {
	models.LeadEvent
	Contribution float64 `json:"contribution"`
}

// Detail is the full picture of one lead.
type Detail struct {
	Profile       models.LeadProfile      `json:"profile"`
	Band          string                  `json:"band"`
	Events        []EventWithContribution `json:"events"`
	RecentSignals map[string]int64        `json:"recent_signals"`
}

// LeadDetail returns a profile with its event history, newest first,
// capped at detailEventLimit entries. Unknown leads return nil.
func (e *Engine) LeadDetail(leadID string) (*Detail, error) {
	now := time.Now().UTC()
	var d *Detail
	err := e.h.WithLock(func(tx *gorm.DB) error {
		var p models.LeadProfile
		err := tx.Where("id = ?", leadID).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var events []models.LeadEvent
		err = tx.Where("lead_id = ?", leadID).
			Order("created_at DESC").
			Limit(detailEventLimit).
			Find(&events).Error
		if err != nil {
			return err
		}

		d = &Detail{
			Profile:       p,
			Band:          ScoreBand(p.Score),
			Events:        make([]EventWithContribution, len(events)),
			RecentSignals: make(map[string]int64),
		}
		cutoff := now.AddDate(0, 0, -e.windowDays)
		weekAgo := now.AddDate(0, 0, -7)
		for i, ev := range events {
			var c float64
			if !ev.CreatedAt.Before(cutoff) {
				c = Contribution(ev.Action, ev.CreatedAt, now)
			}
			d.Events[i] = EventWithContribution{LeadEvent: ev, Contribution: c}
			if !ev.CreatedAt.Before(weekAgo) {
				for _, a := range highIntentActions {
					if ev.Action == a {
						d.RecentSignals[a]++
						break
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("leads: detail %s: %w", leadID, err)
	}
	return d, nil
}

// LabelCount pairs a grouping label with its count.
type LabelCount struct {
	Label string `json:"label"`
	N     int64  `json:"count"`
}

// DayCount is one day of event volume.
type DayCount struct {
	Day string `json:"day"` // YYYY-MM-DD
	N   int64  `json:"count"`
}

// Analytics is the lead-book summary over a trailing window.
type Analytics struct {
	WindowDays    int              `json:"window_days"`
	TotalProfiles int64            `json:"total_profiles"`
	TotalEvents   int64            `json:"total_events"`
	ByStatus      map[string]int64 `json:"by_status"`
	ByBand        map[string]int64 `json:"by_band"`
	BySource      map[string]int64 `json:"by_source"`
	ByAction      map[string]int64 `json:"by_action"`
	TopVehicles   []LabelCount     `json:"top_vehicles"`
	TopDealers    []LabelCount     `json:"top_dealers"`
	DailyTrend    []DayCount       `json:"daily_trend"`
	AverageScore  float64          `json:"average_score"`
	NewInWindow   int64            `json:"new_in_window"`
	Velocity      string           `json:"velocity"`
}

// velocityLabel buckets weekly lead creation into high, medium or low.
func velocityLabel(perWeek float64) string {
	switch {
	case perWeek >= 5:
		return "high"
	case perWeek >= 2:
		return "medium"
	default:
		return "low"
	}
}

// topN sorts a count map descending and keeps the n largest entries.
func topN(counts map[string]int64, n int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for label, c := range counts {
		out = append(out, LabelCount{Label: label, N: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Analytics summarizes the lead book in one critical section. Event
// aggregates cover the trailing window (default 30 days); profile
// totals are all-time.
func (e *Engine) Analytics(days int) (*Analytics, error) {
	if days <= 0 {
		days = 30
	}
	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)
	a := &Analytics{
		WindowDays: days,
		ByStatus:   make(map[string]int64),
		ByBand:     make(map[string]int64),
		BySource:   make(map[string]int64),
		ByAction:   make(map[string]int64),
	}
	err := e.h.WithLock(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LeadProfile{}).Count(&a.TotalProfiles).Error; err != nil {
			return err
		}

		var rows []struct {
			Label string
			N     int64
		}
		err := tx.Model(&models.LeadProfile{}).
			Select("status AS label, COUNT(*) AS n").
			Group("status").Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			a.ByStatus[r.Label] = r.N
		}

		rows = rows[:0]
		err = tx.Model(&models.LeadProfile{}).
			Select("source_channel AS label, COUNT(*) AS n").
			Group("source_channel").Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			a.BySource[r.Label] = r.N
		}

		rows = rows[:0]
		err = tx.Model(&models.LeadEvent{}).
			Select("action AS label, COUNT(*) AS n").
			Where("created_at >= ?", since).
			Group("action").Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, r := range rows {
			a.ByAction[r.Label] = r.N
			a.TotalEvents += r.N
		}

		rows = rows[:0]
		err = tx.Model(&models.LeadEvent{}).
			Select("vehicle_id AS label, COUNT(*) AS n").
			Where("created_at >= ?", since).
			Group("vehicle_id").Scan(&rows).Error
		if err != nil {
			return err
		}
		vehicles := make(map[string]int64, len(rows))
		for _, r := range rows {
			vehicles[r.Label] = r.N
		}
		a.TopVehicles = topN(vehicles, 5)

		rows = rows[:0]
		err = tx.Model(&models.LeadEvent{}).
			Select("dealer_name AS label, COUNT(*) AS n").
			Where("created_at >= ? AND dealer_name != ''", since).
			Group("dealer_name").Scan(&rows).Error
		if err != nil {
			return err
		}
		dealers := make(map[string]int64, len(rows))
		for _, r := range rows {
			dealers[r.Label] = r.N
		}
		a.TopDealers = topN(dealers, 5)

		// Daily trend bucketed in Go; date functions differ between
		// sqlite and mysql.
		var stamps []time.Time
		err = tx.Model(&models.LeadEvent{}).
			Where("created_at >= ?", since).
			Pluck("created_at", &stamps).Error
		if err != nil {
			return err
		}
		byDay := make(map[string]int64)
		for _, ts := range stamps {
			byDay[ts.UTC().Format("2006-01-02")]++
		}
		dayKeys := make([]string, 0, len(byDay))
		for day := range byDay {
			dayKeys = append(dayKeys, day)
		}
		sort.Strings(dayKeys)
		for _, day := range dayKeys {
			a.DailyTrend = append(a.DailyTrend, DayCount{Day: day, N: byDay[day]})
		}

		var avg *float64
		err = tx.Model(&models.LeadProfile{}).Select("AVG(score)").Scan(&avg).Error
		if err != nil {
			return err
		}
		if avg != nil {
			a.AverageScore = *avg
		}

		// Bands come from scores in Go so the thresholds live in one place.
		var scores []float64
		err = tx.Model(&models.LeadProfile{}).Pluck("score", &scores).Error
		if err != nil {
			return err
		}
		for _, sc := range scores {
			a.ByBand[ScoreBand(sc)]++
		}

		return tx.Model(&models.LeadProfile{}).
			Where("first_seen_at >= ?", since).
			Count(&a.NewInWindow).Error
	})
	if err != nil {
		return nil, fmt.Errorf("leads: analytics: %w", err)
	}
	a.Velocity = velocityLabel(float64(a.NewInWindow) / float64(days) * 7)
	return a, nil
}
