// Package sales closes the loop from lead to transaction.
package sales

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/ids"
	"github.com/lotline/lotline/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrVehicleNotFound rejects a sale against an unknown or archived listing.
	ErrVehicleNotFound = errors.New("sales: vehicle not found")
	// ErrAlreadySold rejects a second sale of the same listing.
	ErrAlreadySold = errors.New("sales: vehicle already sold")
	// ErrLeadNotFound rejects a sale attributed to an unknown lead.
	ErrLeadNotFound = errors.New("sales: lead not found")
)

// Recorder writes sales atomically with their inventory and lead
// side effects.
type Recorder struct {
	h   *db.Handle
	log *zap.SugaredLogger
}

// NewRecorder creates a sales recorder over the given handle.
func NewRecorder(h *db.Handle, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{h: h, log: log.With("component", "sales")}
}

// Request describes one closed sale.
type Request struct {
	VehicleID string `json:"vehicle_id"`
	LeadID    string `json:"lead_id"`
	// SoldPrice nil falls back to the listed price. An explicit zero
	// records a zero-dollar sale.
	SoldPrice     *float64               `json:"sold_price"`
	SourceChannel string                 `json:"source_channel"`
	SalespersonID string                 `json:"salesperson_id"`
	SoldAt        time.Time              `json:"sold_at"`
	Metadata      map[string]interface{} `json:"metadata"`

	// ArchiveVehicle hides the listing entirely instead of leaving it
	// visible as sold.
	ArchiveVehicle bool `json:"archive_vehicle"`
}

// Result reports the recorded sale and the lead it closed, if any.
type Result struct {
	Sale       models.Sale        `json:"sale"`
	LeadStatus *models.LeadStatus `json:"lead_status,omitempty"`
}

// RecordSale records the transaction, marks the vehicle sold (or
// archives it on request), and when a lead is named moves it to won
// and appends a closing event to its history. The writes commit
// together or not at all.
func (r *Recorder) RecordSale(req Request) (*Result, error) {
	if strings.TrimSpace(req.VehicleID) == "" {
		return nil, errors.New("sales: vehicle id is required")
	}
	if req.SoldPrice != nil && *req.SoldPrice < 0 {
		return nil, errors.New("sales: sold price must not be negative")
	}
	now := time.Now().UTC()
	if req.SoldAt.IsZero() {
		req.SoldAt = now
	}
	if req.SourceChannel == "" {
		req.SourceChannel = "direct"
	}

	var res Result
	err := r.h.WithLock(func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			return r.recordLocked(tx, req, now, &res)
		})
	})
	if err != nil {
		return nil, err
	}

	r.log.Infow("sale recorded",
		"sale_id", res.Sale.ID,
		"vehicle_id", res.Sale.VehicleID,
		"lead_id", res.Sale.LeadID,
		"sold_price", res.Sale.SoldPrice)
	return &res, nil
}

func (r *Recorder) recordLocked(tx *gorm.DB, req Request, now time.Time, res *Result) error {
	var vehicle models.Vehicle
	err := tx.Where("id = ? AND availability_status NOT IN ?", req.VehicleID, models.ArchivedStatuses).
		First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, req.VehicleID)
	}
	if err != nil {
		return fmt.Errorf("sales: load vehicle %s: %w", req.VehicleID, err)
	}
	if vehicle.AvailabilityStatus == models.StatusSold {
		return fmt.Errorf("%w: %s", ErrAlreadySold, vehicle.ID)
	}

	soldPrice := vehicle.Price
	if req.SoldPrice != nil {
		soldPrice = *req.SoldPrice
	}
	sale := models.Sale{
		ID:            ids.New("sale"),
		VehicleID:     vehicle.ID,
		LeadID:        req.LeadID,
		DealerName:    vehicle.DealerName,
		DealerZip:     vehicle.DealerZip,
		SoldPrice:     soldPrice,
		ListedPrice:   vehicle.Price,
		SourceChannel: req.SourceChannel,
		SalespersonID: req.SalespersonID,
		SoldAt:        req.SoldAt,
		RecordedAt:    now,
	}
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return fmt.Errorf("sales: encode metadata: %w", err)
		}
		sale.Metadata = datatypes.JSON(raw)
	}
	if err := tx.Create(&sale).Error; err != nil {
		return fmt.Errorf("sales: insert sale: %w", err)
	}

	status := models.StatusSold
	if req.ArchiveVehicle {
		status = models.StatusArchivedSold
	}
	err = tx.Model(&models.Vehicle{}).Where("id = ?", vehicle.ID).
		Updates(map[string]interface{}{
			"availability_status": status,
			"expires_at":          nil,
		}).Error
	if err != nil {
		return fmt.Errorf("sales: mark vehicle sold: %w", err)
	}

	if req.LeadID != "" {
		var profile models.LeadProfile
		err := tx.Where("id = ?", req.LeadID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrLeadNotFound, req.LeadID)
		}
		if err != nil {
			return fmt.Errorf("sales: load lead %s: %w", req.LeadID, err)
		}

		profile.Status = models.LeadWon
		profile.LastActivityAt = now
		profile.LastVehicleID = vehicle.ID
		if err := tx.Save(&profile).Error; err != nil {
			return fmt.Errorf("sales: close lead %s: %w", profile.ID, err)
		}
		won := models.LeadWon
		res.LeadStatus = &won

		closing := models.LeadEvent{
			ID:            ids.New("lead"),
			VehicleID:     vehicle.ID,
			VehicleVIN:    vehicle.VIN,
			DealerName:    vehicle.DealerName,
			DealerZip:     vehicle.DealerZip,
			LeadID:        profile.ID,
			Action:        "sale_closed",
			SourceChannel: req.SourceChannel,
			CreatedAt:     now,
		}
		if err := tx.Create(&closing).Error; err != nil {
			return fmt.Errorf("sales: insert closing event: %w", err)
		}
	}

	res.Sale = sale
	return nil
}

// Recent lists sales recorded in the window, newest first.
func (r *Recorder) Recent(since time.Time, limit int) ([]models.Sale, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Sale
	err := r.h.WithLock(func(tx *gorm.DB) error {
		q := tx.Model(&models.Sale{})
		if !since.IsZero() {
			q = q.Where("sold_at >= ?", since)
		}
		return q.Order("sold_at DESC").Limit(limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("sales: recent: %w", err)
	}
	return rows, nil
}
