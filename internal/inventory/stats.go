package inventory

import (
	"fmt"
	"time"

	"github.com/lotline/lotline/internal/geo"
	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// PriceRange summarizes prices across active listings.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// PriceDistribution buckets active listings into three price tiers.
type PriceDistribution struct {
	Under20K    int64 `json:"under_20k"`
	From20To40K int64 `json:"from_20k_to_40k"`
	Over40K     int64 `json:"over_40k"`
}

// Freshness describes how current the inventory data is.
type Freshness struct {
	VerifiedWithin24h int64   `json:"verified_within_24h"`
	VerifiedWithin7d  int64   `json:"verified_within_7d"`
	StaleOver7d       int64   `json:"stale_over_7d"`
	AvgAgeDays        float64 `json:"avg_age_days"`
	OldestAgeDays     int     `json:"oldest_age_days"`
}

// Stats is the store-wide inventory snapshot.
type Stats struct {
	TotalActive       int64             `json:"total_active"`
	TotalSold         int64             `json:"total_sold"`
	TotalExpired      int64             `json:"total_expired"`
	ByStatus          map[string]int64  `json:"by_status"`
	ByMake            map[string]int64  `json:"by_make"`
	ByBodyType        map[string]int64  `json:"by_body_type"`
	BySource          map[string]int64  `json:"by_source"`
	ByMetro           map[string]int64  `json:"by_metro"`
	PriceRange        PriceRange        `json:"price_range"`
	PriceDistribution PriceDistribution `json:"price_distribution"`
	TotalLeadEvents   int64             `json:"total_lead_events"`
	TotalLeadProfiles int64             `json:"total_lead_profiles"`
	Freshness         Freshness         `json:"freshness"`
}

type labelCount struct {
	Label string
	N     int64
}

func groupCount(tx *gorm.DB, column string) (map[string]int64, error) {
	var rows []labelCount
	err := tx.Select(column + " AS label, COUNT(*) AS n").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		if r.Label == "" {
			r.Label = "unknown"
		}
		out[r.Label] = r.N
	}
	return out, nil
}

// Stats computes the inventory snapshot in one critical section. The
// metro breakdown resolves dealer ZIPs through the geo index; ZIPs the
// index does not know land under "other".
func (s *Store) Stats(gi *geo.Index) (*Stats, error) {
	now := time.Now().UTC()
	st := &Stats{}
	err := s.h.WithLock(func(tx *gorm.DB) error {
		active := func() *gorm.DB {
			return searchable(tx.Model(&models.Vehicle{}), false)
		}
		if err := active().Count(&st.TotalActive).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Vehicle{}).
			Where("availability_status IN ?", []models.AvailabilityStatus{models.StatusSold, models.StatusArchivedSold}).
			Count(&st.TotalSold).Error; err != nil {
			return err
		}
		if err := active().
			Where("expires_at IS NOT NULL AND expires_at < ?", now).
			Count(&st.TotalExpired).Error; err != nil {
			return err
		}

		var err error
		if st.ByStatus, err = groupCount(visible(tx.Model(&models.Vehicle{})), "availability_status"); err != nil {
			return err
		}
		if st.ByMake, err = groupCount(active(), "make"); err != nil {
			return err
		}
		if st.ByBodyType, err = groupCount(active(), "body_type"); err != nil {
			return err
		}
		if st.BySource, err = groupCount(active(), "source"); err != nil {
			return err
		}

		byZip, err := groupCount(active(), "dealer_zip")
		if err != nil {
			return err
		}
		st.ByMetro = make(map[string]int64)
		for zip, n := range byZip {
			if c, ok := gi.Lookup(zip); ok {
				st.ByMetro[c.City+", "+c.State] += n
			} else {
				st.ByMetro["other"] += n
			}
		}

		var pr struct {
			Min *float64
			Max *float64
			Avg *float64
		}
		if err := active().
			Select("MIN(price) AS min, MAX(price) AS max, AVG(price) AS avg").
			Scan(&pr).Error; err != nil {
			return err
		}
		if pr.Min != nil {
			st.PriceRange = PriceRange{Min: *pr.Min, Max: *pr.Max, Avg: *pr.Avg}
		}

		var pd struct {
			Low  int64
			Mid  int64
			High int64
		}
		if err := active().
			Select("SUM(CASE WHEN price < 20000 THEN 1 ELSE 0 END) AS low, " +
				"SUM(CASE WHEN price >= 20000 AND price < 40000 THEN 1 ELSE 0 END) AS mid, " +
				"SUM(CASE WHEN price >= 40000 THEN 1 ELSE 0 END) AS high").
			Scan(&pd).Error; err != nil {
			return err
		}
		st.PriceDistribution = PriceDistribution{Under20K: pd.Low, From20To40K: pd.Mid, Over40K: pd.High}

		if err := tx.Model(&models.LeadEvent{}).Count(&st.TotalLeadEvents).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.LeadProfile{}).Count(&st.TotalLeadProfiles).Error; err != nil {
			return err
		}

		// Verification and listing ages are bucketed in Go so the
		// query stays portable across drivers.
		var stamps []struct {
			LastVerified *time.Time
			IngestedAt   *time.Time
		}
		if err := active().Select("last_verified, ingested_at").Scan(&stamps).Error; err != nil {
			return err
		}
		var totalAge, aged int
		for _, r := range stamps {
			switch {
			case r.LastVerified == nil:
				st.Freshness.StaleOver7d++
			case now.Sub(*r.LastVerified) <= 24*time.Hour:
				st.Freshness.VerifiedWithin24h++
			case now.Sub(*r.LastVerified) <= 7*24*time.Hour:
				st.Freshness.VerifiedWithin7d++
			default:
				st.Freshness.StaleOver7d++
			}
			if r.IngestedAt != nil {
				days := int(now.Sub(*r.IngestedAt).Hours() / 24)
				totalAge += days
				aged++
				if days > st.Freshness.OldestAgeDays {
					st.Freshness.OldestAgeDays = days
				}
			}
		}
		if aged > 0 {
			st.Freshness.AvgAgeDays = float64(totalAge) / float64(aged)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: stats: %w", err)
	}
	return st, nil
}
