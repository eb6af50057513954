package sales

import (
	"errors"
	"testing"

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

func seed(t *testing.T, h *db.Handle, rec interface{}) {
	t.Helper()
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestRecordSaleClosesLeadAndMarksVehicleSold(t *testing.T) {
	h := testDB(t)
	r := NewRecorder(h, nil)
	seed(t, h, &models.Vehicle{
		ID: "veh-1", Year: 2022, Make: "Toyota", Model: "RAV4", Price: 31000,
		DealerName: "Bayside Toyota", DealerZip: "94103",
		AvailabilityStatus: models.StatusInStock, Features: "[]",
	})
	seed(t, h, &models.LeadProfile{ID: "leadprof-1", Status: models.LeadQualified, Score: 25})

	res, err := r.RecordSale(Request{VehicleID: "veh-1", LeadID: "leadprof-1", SoldPrice: floatPtr(29500)})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if res.Sale.SoldPrice != 29500 || res.Sale.ListedPrice != 31000 {
		t.Errorf("sale prices = %v/%v, want 29500 sold against 31000 listed", res.Sale.SoldPrice, res.Sale.ListedPrice)
	}
	if res.Sale.DealerName != "Bayside Toyota" {
		t.Errorf("dealer snapshot = %q", res.Sale.DealerName)
	}
	if res.LeadStatus == nil || *res.LeadStatus != models.LeadWon {
		t.Errorf("lead status = %v, want won", res.LeadStatus)
	}

	var v models.Vehicle
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Where("id = ?", "veh-1").First(&v).Error
	}); err != nil {
		t.Fatalf("load vehicle: %v", err)
	}
	if v.AvailabilityStatus != models.StatusSold {
		t.Errorf("vehicle status = %s, want sold (kept by default)", v.AvailabilityStatus)
	}

	var ev models.LeadEvent
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Where("lead_id = ? AND action = ?", "leadprof-1", "sale_closed").First(&ev).Error
	}); err != nil {
		t.Fatalf("closing event missing: %v", err)
	}
	if ev.VehicleID != "veh-1" {
		t.Errorf("closing event vehicle = %s", ev.VehicleID)
	}
}

func TestRecordSaleArchiveVehicle(t *testing.T) {
	h := testDB(t)
	r := NewRecorder(h, nil)
	seed(t, h, &models.Vehicle{ID: "veh-1", Year: 2022, Make: "Toyota", Model: "RAV4", Price: 31000,
		AvailabilityStatus: models.StatusInStock, Features: "[]"})

	if _, err := r.RecordSale(Request{VehicleID: "veh-1", ArchiveVehicle: true}); err != nil {
		t.Fatalf("record sale: %v", err)
	}
	var v models.Vehicle
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Where("id = ?", "veh-1").First(&v).Error
	}); err != nil {
		t.Fatalf("load vehicle: %v", err)
	}
	if v.AvailabilityStatus != models.StatusArchivedSold {
		t.Errorf("vehicle status = %s, want archived_sold", v.AvailabilityStatus)
	}

	// An archived record still cannot be sold twice.
	_, err := r.RecordSale(Request{VehicleID: "veh-1"})
	if !errors.Is(err, ErrAlreadySold) {
		t.Fatalf("second sale err = %v, want ErrAlreadySold", err)
	}
}

func TestRecordSaleDefaultsAndErrors(t *testing.T) {
	h := testDB(t)
	r := NewRecorder(h, nil)
	seed(t, h, &models.Vehicle{ID: "veh-1", Year: 2022, Make: "Toyota", Model: "RAV4", Price: 31000,
		AvailabilityStatus: models.StatusInStock, Features: "[]"})

	if _, err := r.RecordSale(Request{VehicleID: "veh-missing"}); !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("unknown vehicle err = %v", err)
	}
	if _, err := r.RecordSale(Request{VehicleID: "veh-1", LeadID: "leadprof-missing"}); !errors.Is(err, ErrLeadNotFound) {
		t.Errorf("unknown lead err = %v", err)
	}
	if _, err := r.RecordSale(Request{VehicleID: "veh-1", SoldPrice: floatPtr(-1)}); err == nil {
		t.Error("negative price accepted")
	}

	// A failed attribution must not half-record the sale.
	var n int64
	if err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Model(&models.Sale{}).Count(&n).Error
	}); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("sales = %d after failed attempts, want 0", n)
	}

	// Omitted sold price falls back to the listed price.
	res, err := r.RecordSale(Request{VehicleID: "veh-1"})
	if err != nil {
		t.Fatalf("record sale: %v", err)
	}
	if res.Sale.SoldPrice != 31000 {
		t.Errorf("sold price = %v, want listed 31000", res.Sale.SoldPrice)
	}

	// An explicit zero is a real price, not a request for the default.
	seed(t, h, &models.Vehicle{ID: "veh-2", Year: 2020, Make: "Honda", Model: "Fit", Price: 9000,
		AvailabilityStatus: models.StatusInStock, Features: "[]"})
	res, err = r.RecordSale(Request{VehicleID: "veh-2", SoldPrice: floatPtr(0)})
	if err != nil {
		t.Fatalf("record zero-dollar sale: %v", err)
	}
	if res.Sale.SoldPrice != 0 || res.Sale.ListedPrice != 9000 {
		t.Errorf("sale prices = %v/%v, want 0 sold against 9000 listed", res.Sale.SoldPrice, res.Sale.ListedPrice)
	}
}
