package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lotline/lotline/internal/geo"
	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// maxResults caps any single search response.
const maxResults = 50

// Filters narrows a search. Nil pointer fields mean "no bound"; string
// fields match case-insensitively, DealerLocation as a substring.
type Filters struct {
	Make           string
	Model          string
	YearMin        *int
	YearMax        *int
	PriceMin       *float64
	PriceMax       *float64
	BodyType       string
	FuelType       string
	DealerLocation string
	DealerZip      string
	IncludeSold    bool
}

func (f Filters) apply(tx *gorm.DB) *gorm.DB {
	tx = searchable(tx, f.IncludeSold)
	if f.Make != "" {
		tx = tx.Where("LOWER(make) = ?", strings.ToLower(f.Make))
	}
	if f.Model != "" {
		tx = tx.Where("LOWER(model) = ?", strings.ToLower(f.Model))
	}
	if f.YearMin != nil {
		tx = tx.Where("year >= ?", *f.YearMin)
	}
	if f.YearMax != nil {
		tx = tx.Where("year <= ?", *f.YearMax)
	}
	if f.PriceMin != nil {
		tx = tx.Where("price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		tx = tx.Where("price <= ?", *f.PriceMax)
	}
	if f.BodyType != "" {
		tx = tx.Where("LOWER(body_type) = ?", strings.ToLower(f.BodyType))
	}
	if f.FuelType != "" {
		tx = tx.Where("LOWER(fuel_type) = ?", strings.ToLower(f.FuelType))
	}
	if f.DealerLocation != "" {
		tx = tx.Where("LOWER(dealer_location) LIKE ?", "%"+strings.ToLower(f.DealerLocation)+"%")
	}
	if f.DealerZip != "" {
		tx = tx.Where("dealer_zip = ?", f.DealerZip)
	}
	return tx
}

// Search returns up to maxResults matching listings ordered by price.
func (s *Store) Search(f Filters) ([]models.Vehicle, error) {
	var rows []models.Vehicle
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return f.apply(tx.Model(&models.Vehicle{})).
			Order("price ASC").
			Limit(maxResults).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: search: %w", err)
	}
	return rows, nil
}

// SearchPage returns one page of results, ordered by id so pages
// stay stable across calls.
func (s *Store) SearchPage(f Filters, offset, limit int) ([]models.Vehicle, error) {
	rows, _, err := s.searchPage(f, offset, limit, false)
	return rows, err
}

// SearchPageWithCount returns one page plus the total match count,
// fetched in the same critical section so the two agree.
func (s *Store) SearchPageWithCount(f Filters, offset, limit int) ([]models.Vehicle, int64, error) {
	return s.searchPage(f, offset, limit, true)
}

func (s *Store) searchPage(f Filters, offset, limit int, withCount bool) ([]models.Vehicle, int64, error) {
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	if offset < 0 {
		offset = 0
	}
	var (
		rows  []models.Vehicle
		total int64
	)
	err := s.h.WithLock(func(tx *gorm.DB) error {
		if withCount {
			if err := f.apply(tx.Model(&models.Vehicle{})).Count(&total).Error; err != nil {
				return err
			}
		}
		return f.apply(tx.Model(&models.Vehicle{})).
			Order("id ASC").
			Offset(offset).
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, 0, fmt.Errorf("inventory: search page: %w", err)
	}
	return rows, total, nil
}

// CountFiltered returns the number of listings matching the filters.
func (s *Store) CountFiltered(f Filters) (int64, error) {
	var n int64
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return f.apply(tx.Model(&models.Vehicle{})).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inventory: count filtered: %w", err)
	}
	return n, nil
}

// VehicleWithDistance pairs a listing with its distance from the
// search origin, in miles.
type VehicleWithDistance struct {
	models.Vehicle
	DistanceMiles float64 `json:"distance_miles"`
}

// SearchByLocation finds listings within radiusMiles of a ZIP known to
// the geo index. A bounding-box query narrows candidates before the
// exact haversine check; results sort by distance then price.
func (s *Store) SearchByLocation(gi *geo.Index, zip string, radiusMiles float64, f Filters) ([]VehicleWithDistance, error) {
	origin, ok := gi.Lookup(zip)
	if !ok {
		return nil, fmt.Errorf("inventory: unknown zip %q", zip)
	}
	if radiusMiles <= 0 {
		radiusMiles = 50
	}
	latMin, latMax, lngMin, lngMax := geo.BoundingBox(origin.Lat, origin.Lng, radiusMiles)

	var rows []models.Vehicle
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return f.apply(tx.Model(&models.Vehicle{})).
			Where("latitude IS NOT NULL AND longitude IS NOT NULL").
			Where("latitude BETWEEN ? AND ?", latMin, latMax).
			Where("longitude BETWEEN ? AND ?", lngMin, lngMax).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: search by location: %w", err)
	}

	out := make([]VehicleWithDistance, 0, len(rows))
	for _, v := range rows {
		d := geo.Haversine(origin.Lat, origin.Lng, *v.Latitude, *v.Longitude)
		if d <= radiusMiles {
			out = append(out, VehicleWithDistance{Vehicle: v, DistanceMiles: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMiles != out[j].DistanceMiles {
			return out[i].DistanceMiles < out[j].DistanceMiles
		}
		return out[i].Price < out[j].Price
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}
