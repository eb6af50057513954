package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *db.Handle {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := conn.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db.NewHandle(conn)
}

func testEngine(t *testing.T) (*Engine, *db.Handle) {
	t.Helper()
	h := testDB(t)
	return NewEngine(h, Thresholds{}, nil), h
}

func seedVehicle(t *testing.T, h *db.Handle, v models.Vehicle) {
	t.Helper()
	if v.AvailabilityStatus == "" {
		v.AvailabilityStatus = models.StatusInStock
	}
	if v.Features == "" {
		v.Features = "[]"
	}
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Create(&v).Error
	}); err != nil {
		t.Fatalf("seed %s: %v", v.ID, err)
	}
}

func seedEvent(t *testing.T, h *db.Handle, leadID, vehicleID, action, source string, at time.Time) {
	t.Helper()
	ev := models.LeadEvent{
		ID:            "lead-" + leadID + "-" + vehicleID + "-" + action,
		VehicleID:     vehicleID,
		LeadID:        leadID,
		Action:        action,
		SourceChannel: source,
		CreatedAt:     at,
	}
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Create(&ev).Error
	}); err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return &t
}

func TestAgingReport(t *testing.T) {
	e, h := testEngine(t)
	seedVehicle(t, h, models.Vehicle{ID: "veh-fresh", Make: "Toyota", Model: "RAV4", BodyType: "suv", Year: 2023, Price: 31000, IngestedAt: daysAgo(5)})
	seedVehicle(t, h, models.Vehicle{ID: "veh-aging", Make: "Toyota", Model: "RAV4", BodyType: "suv", Year: 2022, Price: 29000, IngestedAt: daysAgo(35)})
	seedVehicle(t, h, models.Vehicle{ID: "veh-stale", Make: "Honda", Model: "Civic", BodyType: "sedan", Year: 2021, Price: 22000, IngestedAt: daysAgo(60)})
	seedVehicle(t, h, models.Vehicle{ID: "veh-sold", Make: "Honda", Model: "Civic", BodyType: "sedan", Year: 2021, Price: 23000, IngestedAt: daysAgo(90), AvailabilityStatus: models.StatusSold})

	now := time.Now().UTC()
	// Two events in the last week puts veh-aging at medium velocity.
	seedEvent(t, h, "leadprof-1", "veh-aging", "viewed", "web", now.AddDate(0, 0, -1))
	seedEvent(t, h, "leadprof-2", "veh-aging", "compared", "web", now.AddDate(0, 0, -2))

	rep, err := e.Aging()
	if err != nil {
		t.Fatalf("aging: %v", err)
	}
	if rep.TotalActive != 3 {
		t.Errorf("total_active = %d, want 3 (sold excluded)", rep.TotalActive)
	}
	// Both listings past min_days_on_lot (30) are stale, not just the 60-day one.
	if rep.StaleCount != 2 {
		t.Errorf("stale = %d, want 2", rep.StaleCount)
	}
	if len(rep.Listings) != 3 {
		t.Fatalf("listings = %d, want 3", len(rep.Listings))
	}
	if rep.Listings[0].VehicleID != "veh-stale" {
		t.Errorf("first listing = %s, want oldest first", rep.Listings[0].VehicleID)
	}
	wantAvg := float64(5+35+60) / 3
	if math.Abs(rep.AvgDaysOnLot-wantAvg) > 1 {
		t.Errorf("avg days = %v, want about %v", rep.AvgDaysOnLot, wantAvg)
	}

	var aging AgedListing
	for _, l := range rep.Listings {
		if l.VehicleID == "veh-aging" {
			aging = l
		}
	}
	if aging.Velocity != VelocityMedium || aging.Leads7d != 2 {
		t.Errorf("veh-aging velocity = %s (7d=%d), want medium with 2", aging.Velocity, aging.Leads7d)
	}
	if !aging.Stale {
		t.Error("35-day listing not stale, want stale at min_days_on_lot")
	}

	suv := rep.ByBodyType["suv"]
	if suv.Count != 2 || suv.StaleCount != 1 {
		t.Errorf("suv summary = %+v", suv)
	}
	if math.Abs(suv.MedianAgeDays-20) > 1 {
		t.Errorf("suv median age = %v, want about 20", suv.MedianAgeDays)
	}
	sedan := rep.ByBodyType["sedan"]
	if sedan.Count != 1 || sedan.StaleCount != 1 || sedan.LowVelocity != 1 {
		t.Errorf("sedan summary = %+v", sedan)
	}
}

func TestPricingOpportunities(t *testing.T) {
	e, h := testEngine(t)
	// Three comparable RAV4s: 30000 against a 20500 peer median is far
	// over the 5% threshold.
	seedVehicle(t, h, models.Vehicle{ID: "veh-high", Make: "Toyota", Model: "RAV4", Year: 2022, Price: 30000})
	seedVehicle(t, h, models.Vehicle{ID: "veh-a", Make: "Toyota", Model: "RAV4", Year: 2022, Price: 20000})
	seedVehicle(t, h, models.Vehicle{ID: "veh-b", Make: "Toyota", Model: "RAV4", Year: 2022, Price: 21000})
	// Only one Civic, no body/fuel either: no peers at all.
	seedVehicle(t, h, models.Vehicle{ID: "veh-lone", Make: "Honda", Model: "Civic", Year: 2021, Price: 22000})

	rep, err := e.Pricing()
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if rep.NoComparables != 1 {
		t.Errorf("no_comparables = %d, want 1", rep.NoComparables)
	}

	if len(rep.Opportunities) == 0 {
		t.Fatal("expected flagged opportunities")
	}
	top := rep.Opportunities[0]
	if top.VehicleID != "veh-high" || top.Recommendation != RecRepriceDown || !top.Overpriced {
		t.Fatalf("top = %+v, want veh-high reprice_down first", top)
	}
	if top.MedianPrice != 20500 {
		t.Errorf("median = %v, want 20500", top.MedianPrice)
	}
	if math.Abs(top.DeltaPct-46.34) > 0.01 {
		t.Errorf("delta = %v, want about 46.34", top.DeltaPct)
	}
	if top.PeerGroup != PeersMakeModel || top.PeerCount != 2 {
		t.Errorf("peer group = %s/%d, want make_model with 2", top.PeerGroup, top.PeerCount)
	}

	// veh-a sits under its 25500 peer median: flagged underpriced but
	// neither overpriced nor stale, so the price holds.
	var underA *PricedListing
	for i := range rep.Opportunities {
		if rep.Opportunities[i].VehicleID == "veh-a" {
			underA = &rep.Opportunities[i]
		}
	}
	if underA == nil {
		t.Fatal("veh-a missing from opportunities")
	}
	if !underA.Underpriced || underA.Recommendation != RecHoldPrice {
		t.Errorf("veh-a = %+v, want underpriced hold_price", underA)
	}
}

func TestPricingPromotesStaleLowVelocity(t *testing.T) {
	e, h := testEngine(t)
	// Two stale trucks priced within the band of each other: no price
	// flag, but no engagement either, so both get promoted.
	seedVehicle(t, h, models.Vehicle{ID: "veh-t1", Make: "Ford", Model: "F-150", Year: 2022, Price: 40000, IngestedAt: daysAgo(60)})
	seedVehicle(t, h, models.Vehicle{ID: "veh-t2", Make: "Ford", Model: "F-150", Year: 2022, Price: 40500, IngestedAt: daysAgo(70)})

	rep, err := e.Pricing()
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if len(rep.Opportunities) != 2 {
		t.Fatalf("opportunities = %d, want 2", len(rep.Opportunities))
	}
	for _, o := range rep.Opportunities {
		if !o.Stale || o.Recommendation != RecPromoteListing {
			t.Errorf("%s = %+v, want stale promote_listing", o.VehicleID, o)
		}
	}
	if rep.Counts[RecPromoteListing] != 2 {
		t.Errorf("counts = %v", rep.Counts)
	}
}

func TestPricingEmitsStaleListingWithoutPeers(t *testing.T) {
	e, h := testEngine(t)
	// A 90-day loner has no market position but still needs attention.
	seedVehicle(t, h, models.Vehicle{ID: "veh-loner", Make: "Lotus", Model: "Emira", Year: 2023, Price: 99000, IngestedAt: daysAgo(90)})

	rep, err := e.Pricing()
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	if rep.NoComparables != 1 {
		t.Errorf("no_comparables = %d, want 1", rep.NoComparables)
	}
	if len(rep.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want the stale loner emitted", len(rep.Opportunities))
	}
	o := rep.Opportunities[0]
	if !o.Stale || o.Overpriced || o.Underpriced {
		t.Errorf("flags = %+v, want stale only", o)
	}
	if o.MedianPrice != 0 || o.DeltaPct != 0 || o.PeerCount != 0 {
		t.Errorf("market position = %+v, want zeroed without peers", o)
	}
	if o.Recommendation != RecPromoteListing {
		t.Errorf("recommendation = %s, want promote_listing", o.Recommendation)
	}
}

func TestPricingFallsBackToBodyFuelPeers(t *testing.T) {
	e, h := testEngine(t)
	seedVehicle(t, h, models.Vehicle{ID: "veh-x", Make: "Kia", Model: "EV6", BodyType: "suv", FuelType: "electric", Price: 52000})
	seedVehicle(t, h, models.Vehicle{ID: "veh-y", Make: "Hyundai", Model: "Ioniq 5", BodyType: "suv", FuelType: "electric", Price: 44000})

	rep, err := e.Pricing()
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	var x *PricedListing
	for i := range rep.Opportunities {
		if rep.Opportunities[i].VehicleID == "veh-x" {
			x = &rep.Opportunities[i]
		}
	}
	if x == nil {
		t.Fatal("veh-x missing: body/fuel fallback should supply a peer")
	}
	if x.PeerGroup != PeersBodyFuel || x.MedianPrice != 44000 || !x.Overpriced {
		t.Errorf("veh-x = %+v, want overpriced against body_fuel peer", x)
	}
}

func TestFunnel(t *testing.T) {
	e, h := testEngine(t)
	now := time.Now().UTC()
	// Lead A goes all the way through; lead B stops at consideration.
	for _, action := range []string{"viewed", "compared", "financed", "test_drive", "sale_closed"} {
		seedEvent(t, h, "leadprof-a", "veh-1", action, "web", now)
	}
	seedEvent(t, h, "leadprof-b", "veh-1", "viewed", "direct", now)
	seedEvent(t, h, "leadprof-b", "veh-1", "compared", "direct", now)

	sale := models.Sale{ID: "sale-1", VehicleID: "veh-1", LeadID: "leadprof-a", SoldPrice: 29500, SourceChannel: "web", SoldAt: now, RecordedAt: now}
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Create(&sale).Error
	}); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	rep, err := e.Funnel(0, "")
	if err != nil {
		t.Fatalf("funnel: %v", err)
	}
	if rep.Stages["discovery"] != 2 || rep.Stages["consideration"] != 2 {
		t.Errorf("stages = %v, want 2 leads through consideration", rep.Stages)
	}
	if rep.Stages["financial"] != 1 || rep.Stages["intent"] != 1 || rep.Stages["outcome"] != 1 {
		t.Errorf("stages = %v, want lead A alone past consideration", rep.Stages)
	}
	if rep.Conversion["consideration_to_financial"] != 50 {
		t.Errorf("conversion = %v, want 50%% consideration to financial", rep.Conversion)
	}
	if rep.BySource["web"]["outcome"] != 1 || rep.BySource["direct"]["discovery"] != 1 {
		t.Errorf("by_source = %v", rep.BySource)
	}
	if rep.SalesCount != 1 || rep.SalesGross != 29500 {
		t.Errorf("sales = %d/%v", rep.SalesCount, rep.SalesGross)
	}
	if rep.SalesBySource["web"].Count != 1 || rep.SalesBySource["web"].Gross != 29500 {
		t.Errorf("sales_by_source = %v", rep.SalesBySource)
	}
}

func TestFunnelWindowExcludesOldEvents(t *testing.T) {
	e, h := testEngine(t)
	now := time.Now().UTC()
	seedEvent(t, h, "leadprof-old", "veh-1", "viewed", "web", now.AddDate(0, 0, -45))
	seedEvent(t, h, "leadprof-new", "veh-1", "viewed", "web", now)

	rep, err := e.Funnel(30, "")
	if err != nil {
		t.Fatalf("funnel: %v", err)
	}
	if rep.Stages["discovery"] != 1 {
		t.Errorf("discovery = %d, want only the recent lead", rep.Stages["discovery"])
	}
}

func TestFunnelFiltersByDealerZip(t *testing.T) {
	e, h := testEngine(t)
	now := time.Now().UTC()
	for _, ev := range []models.LeadEvent{
		{ID: "lead-z1", LeadID: "leadprof-a", VehicleID: "veh-1", Action: "viewed", SourceChannel: "web", DealerZip: "94103", CreatedAt: now},
		{ID: "lead-z2", LeadID: "leadprof-b", VehicleID: "veh-2", Action: "viewed", SourceChannel: "web", DealerZip: "10001", CreatedAt: now},
	} {
		rec := ev
		if err := h.WithLock(func(tx *gorm.DB) error { return tx.Create(&rec).Error }); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
	sale := models.Sale{ID: "sale-z", VehicleID: "veh-2", SoldPrice: 18000, SourceChannel: "web", DealerZip: "10001", SoldAt: now, RecordedAt: now}
	if err := h.WithLock(func(tx *gorm.DB) error { return tx.Create(&sale).Error }); err != nil {
		t.Fatalf("seed sale: %v", err)
	}

	rep, err := e.Funnel(0, "94103")
	if err != nil {
		t.Fatalf("funnel: %v", err)
	}
	if rep.Stages["discovery"] != 1 {
		t.Errorf("discovery = %d, want only the 94103 lead", rep.Stages["discovery"])
	}
	if rep.SalesCount != 0 {
		t.Errorf("sales = %d, want the other lot's sale excluded", rep.SalesCount)
	}

	rep, err = e.Funnel(0, "10001")
	if err != nil {
		t.Fatalf("funnel: %v", err)
	}
	if rep.SalesCount != 1 || rep.SalesGross != 18000 {
		t.Errorf("sales = %d/%v, want the 10001 sale", rep.SalesCount, rep.SalesGross)
	}
}
