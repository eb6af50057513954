package escalation

import (
	"errors"
	"fmt"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/ids"
	"github.com/lotline/lotline/internal/models"
	"gorm.io/gorm"
)

// Store persists escalations. The Tx variants run inside a caller-held
// critical section; the plain methods take the store lock themselves.
type Store struct {
	h *db.Handle
}

// NewStore creates an escalation store over the given handle.
func NewStore(h *db.Handle) *Store {
	return &Store{h: h}
}

// HasActiveTx reports whether an undelivered escalation of the given
// type already exists for the lead.
func (s *Store) HasActiveTx(tx *gorm.DB, leadID, escType string) (bool, error) {
	var n int64
	err := tx.Model(&models.Escalation{}).
		Where("lead_id = ? AND escalation_type = ? AND delivered = ?", leadID, escType, false).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("escalation: check active: %w", err)
	}
	return n > 0, nil
}

// HasActive is HasActiveTx under the store lock.
func (s *Store) HasActive(leadID, escType string) (bool, error) {
	var active bool
	err := s.h.WithLock(func(tx *gorm.DB) error {
		var err error
		active, err = s.HasActiveTx(tx, leadID, escType)
		return err
	})
	return active, err
}

// SaveTx records an escalation unless an active one of the same type
// already exists for the lead. Reports whether a row was written, and
// fills in the id and creation time when it was.
func (s *Store) SaveTx(tx *gorm.DB, esc *models.Escalation) (bool, error) {
	active, err := s.HasActiveTx(tx, esc.LeadID, esc.EscalationType)
	if err != nil {
		return false, err
	}
	if active {
		return false, nil
	}
	if esc.ID == "" {
		esc.ID = ids.New("esc")
	}
	if esc.CreatedAt.IsZero() {
		esc.CreatedAt = time.Now().UTC()
	}
	if err := tx.Create(esc).Error; err != nil {
		return false, fmt.Errorf("escalation: save %s: %w", esc.ID, err)
	}
	return true, nil
}

// Save is SaveTx under the store lock.
func (s *Store) Save(esc *models.Escalation) (bool, error) {
	var saved bool
	err := s.h.WithLock(func(tx *gorm.DB) error {
		var err error
		saved, err = s.SaveTx(tx, esc)
		return err
	})
	return saved, err
}

// Filters narrows escalation listings. Zero values match everything.
type Filters struct {
	Type  string
	Since time.Time
	Limit int
}

func (f Filters) apply(tx *gorm.DB) *gorm.DB {
	if f.Type != "" {
		tx = tx.Where("escalation_type = ?", f.Type)
	}
	if !f.Since.IsZero() {
		tx = tx.Where("created_at >= ?", f.Since)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return tx.Order("created_at DESC").Limit(limit)
}

// Pending lists undelivered escalations, newest first.
func (s *Store) Pending(f Filters) ([]models.Escalation, error) {
	var rows []models.Escalation
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return f.apply(tx.Where("delivered = ?", false)).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("escalation: pending: %w", err)
	}
	return rows, nil
}

// All lists escalations regardless of delivery state, newest first.
func (s *Store) All(f Filters) ([]models.Escalation, error) {
	var rows []models.Escalation
	err := s.h.WithLock(func(tx *gorm.DB) error {
		return f.apply(tx.Model(&models.Escalation{})).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("escalation: list: %w", err)
	}
	return rows, nil
}

// MarkDelivered flips the delivered flag. Marking an already-delivered
// escalation is a no-op: changed reports whether this call flipped the
// flag, found whether the id exists at all.
func (s *Store) MarkDelivered(id string) (changed, found bool, err error) {
	now := time.Now().UTC()
	err = s.h.WithLock(func(tx *gorm.DB) error {
		var esc models.Escalation
		err := tx.Where("id = ?", id).First(&esc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		if esc.Delivered {
			return nil
		}
		changed = true
		return tx.Model(&models.Escalation{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"delivered": true, "delivered_at": now}).Error
	})
	if err != nil {
		return false, false, fmt.Errorf("escalation: mark delivered %s: %w", id, err)
	}
	return changed, found, nil
}
