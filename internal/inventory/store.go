// Package inventory provides the durable vehicle listing store.
package inventory

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTTLDays is the listing expiry horizon applied when an upsert
// does not carry its own ExpiresAt.
const DefaultTTLDays = 7

var vinPattern = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// ErrDuplicateVIN rejects an upsert whose VIN already belongs to a
// different non-archived listing.
var ErrDuplicateVIN = errors.New("inventory: vin already in use")

// Store persists vehicle listings behind the shared db.Handle mutex.
type Store struct {
	h       *db.Handle
	ttlDays int
	log     *zap.SugaredLogger
}

// Options configures a Store.
type Options struct {
	TTLDays int
	Logger  *zap.SugaredLogger
}

// NewStore creates a vehicle store over the given handle.
func NewStore(h *db.Handle, opts Options) *Store {
	if opts.TTLDays <= 0 {
		opts.TTLDays = DefaultTTLDays
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Store{h: h, ttlDays: opts.TTLDays, log: opts.Logger.With("component", "inventory")}
}

// Handle exposes the shared connection for components that join the
// store's critical sections (lead engine, sales recorder, analytics).
func (s *Store) Handle() *db.Handle {
	return s.h
}

// visible excludes archived rows; every read path goes through it.
func visible(tx *gorm.DB) *gorm.DB {
	return tx.Where("availability_status NOT IN ?", models.ArchivedStatuses)
}

// searchable additionally excludes sold rows unless the caller opts in.
func searchable(tx *gorm.DB, includeSold bool) *gorm.DB {
	if includeSold {
		return visible(tx)
	}
	return tx.Where("availability_status NOT IN ?", models.HiddenFromSearchStatuses)
}

// Get returns the listing with the given id, or nil when absent or archived.
func (s *Store) Get(id string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return visible(tx.Model(&models.Vehicle{})).Where("id = ?", id).First(&v).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get %s: %w", id, err)
	}
	return &v, nil
}

// GetMany fetches several listings in one query, preserving input order
// and skipping unknown or archived ids.
func (s *Store) GetMany(idList []string) ([]models.Vehicle, error) {
	if len(idList) == 0 {
		return nil, nil
	}
	var rows []models.Vehicle
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return visible(tx).Where("id IN ?", idList).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("inventory: get many: %w", err)
	}
	byID := make(map[string]models.Vehicle, len(rows))
	for _, v := range rows {
		byID[v.ID] = v
	}
	out := make([]models.Vehicle, 0, len(rows))
	for _, id := range idList {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// GetByVIN returns the non-archived listing with the given VIN,
// matched case-insensitively, or nil.
func (s *Store) GetByVIN(vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return visible(tx).Where("vin = ?", strings.ToUpper(strings.TrimSpace(vin))).First(&v).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: get by vin: %w", err)
	}
	return &v, nil
}

// Upsert inserts or replaces a listing keyed on id. TTL and provenance
// timestamps default only when absent; a refresh never clears them.
func (s *Store) Upsert(v *models.Vehicle) error {
	now := time.Now().UTC()
	if err := validateVehicle(v, now); err != nil {
		return err
	}
	return s.h.WithLock(func(tx *gorm.DB) error {
		return s.upsertLocked(tx, v, now)
	})
}

// UpsertMany upserts a batch in one transaction. Every item is
// validated before any row is written; a bad item fails the whole batch.
func (s *Store) UpsertMany(vehicles []models.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range vehicles {
		if err := validateVehicle(&vehicles[i], now); err != nil {
			return fmt.Errorf("inventory: item %d: %w", i, err)
		}
	}
	return s.h.WithLock(func(tx *gorm.DB) error {
		return tx.Transaction(func(txn *gorm.DB) error {
			for i := range vehicles {
				if err := s.upsertLocked(txn, &vehicles[i], now); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// upsertLocked runs under the store mutex. The pre-read keeps existing
// provenance timestamps when the incoming record omits them.
func (s *Store) upsertLocked(tx *gorm.DB, v *models.Vehicle, now time.Time) error {
	if v.VIN != "" {
		var n int64
		err := visible(tx.Model(&models.Vehicle{})).
			Where("vin = ? AND id != ?", v.VIN, v.ID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("inventory: check vin %s: %w", v.VIN, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateVIN, v.VIN)
		}
	}

	var existing models.Vehicle
	err := tx.Where("id = ?", v.ID).First(&existing).Error
	switch {
	case err == nil:
		if v.IngestedAt == nil {
			v.IngestedAt = existing.IngestedAt
		}
		if v.LastVerified == nil {
			v.LastVerified = existing.LastVerified
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return fmt.Errorf("inventory: read %s for upsert: %w", v.ID, err)
	}

	if v.IngestedAt == nil {
		t := now
		v.IngestedAt = &t
	}
	if v.LastVerified == nil {
		t := now
		v.LastVerified = &t
	}
	if v.ExpiresAt == nil {
		t := now.AddDate(0, 0, s.ttlDays)
		v.ExpiresAt = &t
	}
	if v.AvailabilityStatus == "" {
		v.AvailabilityStatus = models.StatusInStock
	}
	if v.Source == "" {
		v.Source = "feed"
	}
	if v.Features == "" {
		v.Features = "[]"
	}
	v.UpdatedAt = now

	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("inventory: upsert %s: %w", v.ID, err)
	}
	return nil
}

// validateVehicle rejects malformed listings before any write.
func validateVehicle(v *models.Vehicle, now time.Time) error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("inventory: vehicle id is required")
	}
	if v.Price < 0 {
		return fmt.Errorf("inventory: vehicle %s: price must not be negative", v.ID)
	}
	if v.Year != 0 && (v.Year < 1900 || v.Year > now.Year()+2) {
		return fmt.Errorf("inventory: vehicle %s: model year %d out of range", v.ID, v.Year)
	}
	v.VIN = strings.ToUpper(strings.TrimSpace(v.VIN))
	if v.VIN != "" && !vinPattern.MatchString(v.VIN) {
		return fmt.Errorf("inventory: vehicle %s: malformed vin %q", v.ID, v.VIN)
	}
	return nil
}

// Remove archives a listing (soft delete) so lead and sale history
// stays resolvable. Reports whether a row changed.
func (s *Store) Remove(id string) (bool, error) {
	var affected int64
	err := s.h.WithLock(func(tx *gorm.DB) error {
		res := visible(tx.Model(&models.Vehicle{})).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"availability_status": models.StatusArchivedRemoved,
				"expires_at":          nil,
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("inventory: remove %s: %w", id, err)
	}
	return affected > 0, nil
}

// RemoveExpired archives every active listing past its TTL and returns
// the number archived.
func (s *Store) RemoveExpired() (int64, error) {
	now := time.Now().UTC()
	var affected int64
	err := s.h.WithLock(func(tx *gorm.DB) error {
		res := searchable(tx.Model(&models.Vehicle{}), false).
			Where("expires_at IS NOT NULL AND expires_at < ?", now).
			Updates(map[string]interface{}{
				"availability_status": models.StatusArchivedRemoved,
				"expires_at":          nil,
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("inventory: remove expired: %w", err)
	}
	if affected > 0 {
		s.log.Infow("archived expired listings", "count", affected)
	}
	return affected, nil
}

// Count returns the number of active (unsold, unarchived) listings.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return searchable(tx.Model(&models.Vehicle{}), false).Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inventory: count: %w", err)
	}
	return n, nil
}
