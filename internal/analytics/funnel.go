package analytics

import (
	"fmt"
	"time"

	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// Funnel stages in order. Each engagement action belongs to exactly
// one stage; a lead counts toward a stage if it performed any of its
// actions.
var funnelStages = []string{"discovery", "consideration", "financial", "intent", "outcome"}

var stageForAction = map[string]string{
	"viewed": "discovery",

	"compared":             "consideration",
	"save_favorite":        "consideration",
	"get_similar_vehicles": "consideration",

	"financed":                    "financial",
	"compare_financing_scenarios": "financial",
	"estimate_financing":          "financial",
	"estimate_out_the_door_price": "financial",

	"availability_check": "intent",
	"test_drive":         "intent",
	"reserve_vehicle":    "intent",
	"contact_dealer":     "intent",
	"purchase_deposit":   "intent",

	"sale_closed": "outcome",
}

// ChannelSales is the closed-business rollup for one source channel.
type ChannelSales struct {
	Count int64   `json:"count"`
	Gross float64 `json:"gross"`
}

// FunnelReport tracks lead progression from discovery to sale.
type FunnelReport struct {
	WindowDays    int                         `json:"window_days,omitempty"`
	DealerZip     string                      `json:"dealer_zip,omitempty"`
	Stages        map[string]int64            `json:"stages"`
	Conversion    map[string]float64          `json:"conversion"`
	BySource      map[string]map[string]int64 `json:"by_source"`
	SalesCount    int64                       `json:"sales_count"`
	SalesGross    float64                     `json:"sales_gross"`
	SalesBySource map[string]ChannelSales     `json:"sales_by_source"`
}

// Funnel counts distinct leads per stage within the window (0 means
// all time), stage-to-stage conversion rates and per-source
// breakdowns, then folds in recorded sales. A non-empty dealerZip
// narrows both events and sales to that dealer's lot.
func (e *Engine) Funnel(days int, dealerZip string) (*FunnelReport, error) {
	rep := &FunnelReport{
		WindowDays:    days,
		DealerZip:     dealerZip,
		Stages:        make(map[string]int64),
		Conversion:    make(map[string]float64),
		BySource:      make(map[string]map[string]int64),
		SalesBySource: make(map[string]ChannelSales),
	}
	var since time.Time
	if days > 0 {
		since = time.Now().UTC().AddDate(0, 0, -days)
	}

	err := e.h.WithLock(func(tx *gorm.DB) error {
		var rows []struct {
			LeadID        string
			Action        string
			SourceChannel string
		}
		q := tx.Model(&models.LeadEvent{}).
			Select("lead_id, action, source_channel").
			Where("lead_id != ''")
		if !since.IsZero() {
			q = q.Where("created_at >= ?", since)
		}
		if dealerZip != "" {
			q = q.Where("dealer_zip = ?", dealerZip)
		}
		if err := q.Scan(&rows).Error; err != nil {
			return err
		}

		// Distinct leads per stage, overall and per source channel.
		seen := make(map[string]map[string]bool)
		seenBySource := make(map[string]map[string]map[string]bool)
		for _, r := range rows {
			stage, ok := stageForAction[r.Action]
			if !ok {
				continue
			}
			if seen[stage] == nil {
				seen[stage] = make(map[string]bool)
			}
			seen[stage][r.LeadID] = true

			src := r.SourceChannel
			if src == "" {
				src = "direct"
			}
			if seenBySource[src] == nil {
				seenBySource[src] = make(map[string]map[string]bool)
			}
			if seenBySource[src][stage] == nil {
				seenBySource[src][stage] = make(map[string]bool)
			}
			seenBySource[src][stage][r.LeadID] = true
		}
		for _, stage := range funnelStages {
			rep.Stages[stage] = int64(len(seen[stage]))
		}
		for src, stages := range seenBySource {
			rep.BySource[src] = make(map[string]int64)
			for stage, leadSet := range stages {
				rep.BySource[src][stage] = int64(len(leadSet))
			}
		}
		for i := 1; i < len(funnelStages); i++ {
			prev, cur := funnelStages[i-1], funnelStages[i]
			if rep.Stages[prev] > 0 {
				rep.Conversion[prev+"_to_"+cur] =
					float64(rep.Stages[cur]) / float64(rep.Stages[prev]) * 100
			}
		}

		var sales []struct {
			SourceChannel string
			N             int64
			Gross         float64
		}
		sq := tx.Model(&models.Sale{}).
			Select("source_channel, COUNT(*) AS n, SUM(sold_price) AS gross").
			Group("source_channel")
		if !since.IsZero() {
			sq = sq.Where("recorded_at >= ?", since)
		}
		if dealerZip != "" {
			sq = sq.Where("dealer_zip = ?", dealerZip)
		}
		if err := sq.Scan(&sales).Error; err != nil {
			return err
		}
		for _, s := range sales {
			src := s.SourceChannel
			if src == "" {
				src = "direct"
			}
			rep.SalesBySource[src] = ChannelSales{Count: s.N, Gross: s.Gross}
			rep.SalesCount += s.N
			rep.SalesGross += s.Gross
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: funnel: %w", err)
	}
	return rep, nil
}
