package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// Pricing recommendations, in descending urgency.
const (
	RecRepriceDown    = "reprice_down"
	RecPromoteListing = "promote_listing"
	RecHoldPrice      = "hold_price"
)

// recPriority orders recommendations for report sorting.
var recPriority = map[string]int{
	RecRepriceDown:    0,
	RecPromoteListing: 1,
	RecHoldPrice:      2,
}

// Peer group kinds, strongest match first.
const (
	PeersMakeModel = "make_model"
	PeersBodyFuel  = "body_fuel"
)

// PricedListing is one flagged listing's position against its peers.
type PricedListing struct {
	VehicleID      string  `json:"vehicle_id"`
	Summary        string  `json:"summary"`
	Price          float64 `json:"price"`
	PeerGroup      string  `json:"peer_group"`
	PeerCount      int     `json:"peer_count"`
	MedianPrice    float64 `json:"median_peer_price"`
	DeltaPct       float64 `json:"delta_pct"`
	AgeDays        int     `json:"age_days"`
	Velocity       string  `json:"velocity"`
	Overpriced     bool    `json:"overpriced"`
	Underpriced    bool    `json:"underpriced"`
	Stale          bool    `json:"stale"`
	Recommendation string  `json:"recommendation"`
}

// PricingReport lists every active listing carrying at least one
// pricing flag, most urgent first.
type PricingReport struct {
	Counts        map[string]int64 `json:"recommendation_counts"`
	Opportunities []PricedListing  `json:"opportunities"`
	NoComparables int64            `json:"no_comparables"`
}

// median of a non-empty slice.
func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Pricing positions each active listing against the median price of
// its peers: same make and model when at least one such peer exists,
// otherwise same body type and fuel type. Listings with no peers in
// either group are counted and carry no price flags, but can still be
// flagged stale. An overpriced listing is recommended for repricing; a
// stale listing with low lead velocity is recommended for promotion.
func (e *Engine) Pricing() (*PricingReport, error) {
	now := time.Now().UTC()
	rep := &PricingReport{Counts: make(map[string]int64)}
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

		// Group prices once so peer lookup stays O(n).
		byMakeModel := make(map[string][]float64)
		byBodyFuel := make(map[string][]float64)
		for _, v := range rows {
			byMakeModel[makeModelKey(v)] = append(byMakeModel[makeModelKey(v)], v.Price)
			byBodyFuel[bodyFuelKey(v)] = append(byBodyFuel[bodyFuelKey(v)], v.Price)
		}

		for _, v := range rows {
			peers, group := peerPrices(v, byMakeModel, byBodyFuel)
			var med, delta float64
			if len(peers) == 0 {
				// No market position, but staleness still applies.
				rep.NoComparables++
			} else {
				med = median(peers)
				if med > 0 {
					delta = (v.Price - med) / med * 100
				}
			}

			days, unknown := listingAge(v, now)
			velocity := velocityFor(activity[v.ID].Leads7d)
			listing := PricedListing{
				VehicleID:   v.ID,
				Summary:     v.Summary(),
				Price:       v.Price,
				PeerGroup:   group,
				PeerCount:   len(peers),
				MedianPrice: med,
				DeltaPct:    delta,
				AgeDays:     days,
				Velocity:    velocity,
				Overpriced:  delta >= e.th.OverpricedPct,
				Underpriced: delta <= e.th.UnderpricedPct,
				Stale:       !unknown && days >= e.th.StaleDaysThreshold,
			}
			if !listing.Overpriced && !listing.Underpriced && !listing.Stale {
				continue
			}
			switch {
			case listing.Overpriced:
				listing.Recommendation = RecRepriceDown
			case listing.Stale && listing.Velocity == VelocityLow:
				listing.Recommendation = RecPromoteListing
			default:
				listing.Recommendation = RecHoldPrice
			}
			rep.Counts[listing.Recommendation]++
			rep.Opportunities = append(rep.Opportunities, listing)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: pricing: %w", err)
	}

	sort.Slice(rep.Opportunities, func(i, j int) bool {
		a, b := rep.Opportunities[i], rep.Opportunities[j]
		if recPriority[a.Recommendation] != recPriority[b.Recommendation] {
			return recPriority[a.Recommendation] < recPriority[b.Recommendation]
		}
		if math.Abs(a.DeltaPct) != math.Abs(b.DeltaPct) {
			return math.Abs(a.DeltaPct) > math.Abs(b.DeltaPct)
		}
		if a.AgeDays != b.AgeDays {
			return a.AgeDays > b.AgeDays
		}
		return a.VehicleID < b.VehicleID
	})
	return rep, nil
}

func makeModelKey(v models.Vehicle) string {
	return strings.ToLower(v.Make) + "|" + strings.ToLower(v.Model)
}

func bodyFuelKey(v models.Vehicle) string {
	return strings.ToLower(v.BodyType) + "|" + strings.ToLower(v.FuelType)
}

// peerPrices returns the prices of a listing's peers, excluding the
// listing itself: the make/model group when it has anyone else in it,
// otherwise the body/fuel group.
func peerPrices(v models.Vehicle, byMakeModel, byBodyFuel map[string][]float64) ([]float64, string) {
	if prices := excludeOne(byMakeModel[makeModelKey(v)], v.Price); len(prices) > 0 {
		return prices, PeersMakeModel
	}
	if v.BodyType != "" || v.FuelType != "" {
		if prices := excludeOne(byBodyFuel[bodyFuelKey(v)], v.Price); len(prices) > 0 {
			return prices, PeersBodyFuel
		}
	}
	return nil, ""
}

// excludeOne removes a single occurrence of price from the group.
func excludeOne(group []float64, price float64) []float64 {
	out := make([]float64, 0, len(group))
	removed := false
	for _, p := range group {
		if !removed && p == price {
			removed = true
			continue
		}
		out = append(out, p)
	}
	return out
}
