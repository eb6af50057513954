package db

import (
	"fmt"
	"time"

	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// demoVehicles is a small spread of listings across metros, price
// tiers and body types, enough to exercise search, geo and the
// analytics reports.
func demoVehicles(now time.Time, ttlDays int) []models.Vehicle {
	expires := now.AddDate(0, 0, ttlDays)
	coord := func(lat, lng float64) (*float64, *float64) { return &lat, &lng }

	mk := func(id string, year int, brand, model, trim, body, fuel string, price float64, mileage int, dealer, zip string, lat, lng float64) models.Vehicle {
		la, ln := coord(lat, lng)
		ingested := now
		return models.Vehicle{
			ID: id, Year: year, Make: brand, Model: model, Trim: trim,
			BodyType: body, FuelType: fuel, Price: price, Mileage: mileage,
			DealerName: dealer, DealerZip: zip, Latitude: la, Longitude: ln,
			AvailabilityStatus: models.StatusInStock, Source: "seed",
			Features:   "[]",
			IngestedAt: &ingested, LastVerified: &ingested, ExpiresAt: &expires,
		}
	}

	return []models.Vehicle{
		mk("veh-seed-001", 2023, "Toyota", "RAV4", "XLE", "suv", "gasoline", 32500, 12000, "Bayside Toyota", "94103", 37.7849, -122.4194),
		mk("veh-seed-002", 2022, "Toyota", "RAV4", "LE", "suv", "gasoline", 28900, 24000, "Bayside Toyota", "94103", 37.7849, -122.4194),
		mk("veh-seed-003", 2021, "Toyota", "Camry", "SE", "sedan", "gasoline", 24500, 31000, "Mission Motors", "94102", 37.7793, -122.4193),
		mk("veh-seed-004", 2023, "Honda", "CR-V", "EX", "suv", "gasoline", 33900, 8000, "Lakeview Honda", "60601", 41.8858, -87.6229),
		mk("veh-seed-005", 2020, "Honda", "Civic", "Sport", "sedan", "gasoline", 21900, 42000, "Lakeview Honda", "60601", 41.8858, -87.6229),
		mk("veh-seed-006", 2022, "Tesla", "Model 3", "Long Range", "sedan", "electric", 38900, 15000, "Electric Ave Autos", "78701", 30.2711, -97.7437),
		mk("veh-seed-007", 2021, "Ford", "F-150", "XLT", "truck", "gasoline", 41500, 28000, "Lone Star Ford", "78701", 30.2711, -97.7437),
		mk("veh-seed-008", 2019, "Ford", "Escape", "SE", "suv", "gasoline", 17900, 56000, "Lone Star Ford", "78701", 30.2711, -97.7437),
		mk("veh-seed-009", 2023, "Hyundai", "Ioniq 5", "SEL", "suv", "electric", 44200, 5000, "Midtown Hyundai", "10001", 40.7506, -73.9971),
		mk("veh-seed-010", 2020, "Chevrolet", "Malibu", "LT", "sedan", "gasoline", 16800, 61000, "Empire Chevrolet", "10001", 40.7506, -73.9971),
	}
}

// Seed loads the demo inventory. Existing rows with the same ids are
// refreshed, so seeding is idempotent.
func (h *Handle) Seed(ttlDays int) (int, error) {
	if ttlDays <= 0 {
		ttlDays = 7
	}
	vehicles := demoVehicles(time.Now().UTC(), ttlDays)
	err := h.WithLock(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&vehicles).Error
	})
	if err != nil {
		return 0, fmt.Errorf("db: seed: %w", err)
	}
	return len(vehicles), nil
}
