package leads

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lotline/lotline/internal/db"
	"github.com/lotline/lotline/internal/escalation"
	"github.com/lotline/lotline/internal/ids"
	"github.com/lotline/lotline/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrVehicleNotFound rejects engagement against an unknown or archived
// listing.
var ErrVehicleNotFound = errors.New("leads: vehicle not found")

// Engine records engagement events and maintains lead profiles. All of
// RecordLead runs in one critical section so score, status and
// escalation stay consistent.
type Engine struct {
	h          *db.Handle
	esc        *escalation.Store
	dispatch   *escalation.Dispatcher
	windowDays int
	log        *zap.SugaredLogger
}

// Options tunes the engine. Zero values fall back to defaults.
type Options struct {
	// ScoringWindowDays bounds how far back events contribute to a
	// lead's score. Defaults to ScoringWindowDays.
	ScoringWindowDays int
	Logger            *zap.SugaredLogger
}

// NewEngine wires the engine. The dispatcher may be nil when no
// notifiers are configured.
func NewEngine(h *db.Handle, esc *escalation.Store, dispatch *escalation.Dispatcher, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	windowDays := opts.ScoringWindowDays
	if windowDays <= 0 {
		windowDays = ScoringWindowDays
	}
	return &Engine{
		h:          h,
		esc:        esc,
		dispatch:   dispatch,
		windowDays: windowDays,
		log:        log.With("component", "leads"),
	}
}

// Request is one engagement action with whatever identity signals the
// caller has. All identity fields are optional.
type Request struct {
	VehicleID string `json:"vehicle_id"`
	Action    string `json:"action"`

	LeadID          string `json:"lead_id"`
	CustomerID      string `json:"customer_id"`
	SessionID       string `json:"session_id"`
	CustomerName    string `json:"customer_name"`
	CustomerContact string `json:"customer_contact"`

	UserQuery     string                 `json:"user_query"`
	SourceChannel string                 `json:"source_channel"`
	Meta          map[string]interface{} `json:"meta"`
}

// Result reports the outcome of one recorded engagement.
type Result struct {
	EventID        string             `json:"event_id"`
	LeadID         string             `json:"lead_id"`
	ProfileCreated bool               `json:"profile_created"`
	Score          float64            `json:"score"`
	ScoreBand      string             `json:"score_band"`
	Status         models.LeadStatus  `json:"status"`
	PreviousStatus models.LeadStatus  `json:"previous_status"`
	StatusChanged  bool               `json:"status_changed"`
	Escalation     *models.Escalation `json:"escalation,omitempty"`
}

// RecordLead logs the event, resolves or creates the profile, rescores
// it, advances its status and records any boundary escalation, all in
// one transaction under the store lock. Notifier delivery happens
// after the lock is released.
func (e *Engine) RecordLead(req Request) (*Result, error) {
	if strings.TrimSpace(req.VehicleID) == "" {
		return nil, errors.New("leads: vehicle id is required")
	}
	if strings.TrimSpace(req.Action) == "" {
		return nil, errors.New("leads: action is required")
	}
	if req.SourceChannel == "" {
		req.SourceChannel = "direct"
	}
	now := time.Now().UTC()

	var res Result
	err := e.h.WithLock(func(conn *gorm.DB) error {
		return conn.Transaction(func(tx *gorm.DB) error {
			return e.recordLocked(tx, req, now, &res)
		})
	})
	if err != nil {
		return nil, err
	}

	e.log.Infow("lead recorded",
		"event_id", res.EventID,
		"lead_id", res.LeadID,
		"action", req.Action,
		"score", res.Score,
		"status", res.Status)

	if res.Escalation != nil && e.dispatch != nil {
		e.dispatch.Dispatch(res.Escalation)
	}
	return &res, nil
}

func (e *Engine) recordLocked(tx *gorm.DB, req Request, now time.Time, res *Result) error {
	var vehicle models.Vehicle
	err := tx.Where("id = ? AND availability_status NOT IN ?", req.VehicleID, models.ArchivedStatuses).
		First(&vehicle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrVehicleNotFound, req.VehicleID)
	}
	if err != nil {
		return fmt.Errorf("leads: load vehicle %s: %w", req.VehicleID, err)
	}

	profile, created, err := e.resolveProfile(tx, req, now)
	if err != nil {
		return err
	}
	res.ProfileCreated = created
	res.LeadID = profile.ID

	var meta datatypes.JSON
	if len(req.Meta) > 0 {
		raw, err := json.Marshal(req.Meta)
		if err != nil {
			return fmt.Errorf("leads: encode event meta: %w", err)
		}
		meta = datatypes.JSON(raw)
	}
	event := models.LeadEvent{
		ID:              ids.New("lead"),
		VehicleID:       vehicle.ID,
		VehicleVIN:      vehicle.VIN,
		DealerName:      vehicle.DealerName,
		DealerZip:       vehicle.DealerZip,
		LeadID:          profile.ID,
		CustomerID:      req.CustomerID,
		SessionID:       req.SessionID,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Action:          req.Action,
		UserQuery:       req.UserQuery,
		SourceChannel:   req.SourceChannel,
		EventMeta:       meta,
		CreatedAt:       now,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fmt.Errorf("leads: insert event: %w", err)
	}
	res.EventID = event.ID

	err = tx.Model(&models.Vehicle{}).Where("id = ?", vehicle.ID).
		Update("lead_count", gorm.Expr("lead_count + 1")).Error
	if err != nil {
		return fmt.Errorf("leads: bump lead count: %w", err)
	}

	score, err := e.scoreLocked(tx, profile.ID, now)
	if err != nil {
		return err
	}
	oldStatus := profile.Status
	newStatus := NextStatus(oldStatus, score)

	profile.Score = score
	profile.Status = newStatus
	profile.LastActivityAt = now
	profile.LastVehicleID = vehicle.ID
	if err := tx.Save(profile).Error; err != nil {
		return fmt.Errorf("leads: update profile %s: %w", profile.ID, err)
	}

	res.Score = score
	res.ScoreBand = ScoreBand(score)
	res.Status = newStatus
	res.PreviousStatus = oldStatus
	res.StatusChanged = newStatus != oldStatus

	if !res.StatusChanged {
		return nil
	}
	escType, ok := escalation.Check(oldStatus, newStatus)
	if !ok {
		return nil
	}
	esc := &models.Escalation{
		LeadID:           profile.ID,
		EscalationType:   escType,
		OldStatus:        oldStatus,
		NewStatus:        newStatus,
		Score:            score,
		VehicleID:        vehicle.ID,
		CustomerName:     profile.CustomerName,
		CustomerContact:  profile.CustomerContact,
		SourceChannel:    req.SourceChannel,
		TriggeringAction: req.Action,
		CreatedAt:        now,
	}
	payload, err := json.Marshal(map[string]interface{}{
		"vehicle":    vehicle.Summary(),
		"price":      vehicle.Price,
		"dealer":     vehicle.DealerName,
		"action":     req.Action,
		"score":      score,
		"score_band": ScoreBand(score),
	})
	if err == nil {
		esc.EnrichedPayload = datatypes.JSON(payload)
	}
	saved, err := e.esc.SaveTx(tx, esc)
	if err != nil {
		return err
	}
	if saved {
		res.Escalation = esc
	}
	return nil
}

// resolveProfile finds the profile the request belongs to, trying the
// strongest identity signal first, and creates one when nothing
// matches. A supplied lead id is only trusted with a positive identity
// match against the stored profile; a bare id alone suffices only when
// the profile itself carries no identity fields to verify against. An
// untrusted id quietly falls through to the weaker signals.
func (e *Engine) resolveProfile(tx *gorm.DB, req Request, now time.Time) (*models.LeadProfile, bool, error) {
	var p models.LeadProfile

	find := func(query string, args ...interface{}) (bool, error) {
		err := tx.Where(query, args...).Order("last_activity_at DESC").First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("leads: resolve profile: %w", err)
		}
		return true, nil
	}

	if req.LeadID != "" {
		found, err := find("id = ?", req.LeadID)
		if err != nil {
			return nil, false, err
		}
		if found && leadIDTrusted(p, req) {
			mergeIdentity(&p, req)
			return &p, false, nil
		}
	}
	if req.CustomerID != "" {
		found, err := find("customer_id = ?", req.CustomerID)
		if err != nil {
			return nil, false, err
		}
		if found {
			mergeIdentity(&p, req)
			return &p, false, nil
		}
	}
	if req.CustomerContact != "" {
		found, err := find("LOWER(customer_contact) = ?", strings.ToLower(req.CustomerContact))
		if err != nil {
			return nil, false, err
		}
		if found {
			mergeIdentity(&p, req)
			return &p, false, nil
		}
	}
	if req.SessionID != "" {
		found, err := find("session_id = ?", req.SessionID)
		if err != nil {
			return nil, false, err
		}
		if found {
			mergeIdentity(&p, req)
			return &p, false, nil
		}
	}

	p = models.LeadProfile{
		ID:              ids.New("leadprof"),
		CustomerID:      req.CustomerID,
		SessionID:       req.SessionID,
		CustomerName:    req.CustomerName,
		CustomerContact: req.CustomerContact,
		Status:          models.LeadNew,
		FirstSeenAt:     now,
		LastActivityAt:  now,
		SourceChannel:   req.SourceChannel,
	}
	if err := tx.Create(&p).Error; err != nil {
		return nil, false, fmt.Errorf("leads: create profile: %w", err)
	}
	return &p, true, nil
}

// contactMatches reports whether a claimed contact is consistent with
// the profile's. Either side being empty is consistent.
func contactMatches(have, claimed string) bool {
	if have == "" || claimed == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(claimed))
}

// leadIDTrusted decides whether a supplied lead id may claim a stored
// profile. A profile carrying any identity field demands at least one
// positive match from the request, so a guessed id alone cannot hijack
// it; a profile with no identity at all is claimable by bare id, which
// is how anonymous sessions continue.
func leadIDTrusted(p models.LeadProfile, req Request) bool {
	if p.CustomerID == "" && p.CustomerContact == "" && p.SessionID == "" {
		return true
	}
	if req.CustomerID != "" && req.CustomerID == p.CustomerID {
		return true
	}
	if req.CustomerContact != "" && p.CustomerContact != "" &&
		contactMatches(p.CustomerContact, req.CustomerContact) {
		return true
	}
	return req.SessionID != "" && req.SessionID == p.SessionID
}

// mergeIdentity fills empty profile fields from the request. Existing
// values are never overwritten.
func mergeIdentity(p *models.LeadProfile, req Request) {
	if p.CustomerID == "" {
		p.CustomerID = req.CustomerID
	}
	if p.SessionID == "" {
		p.SessionID = req.SessionID
	}
	if p.CustomerName == "" {
		p.CustomerName = req.CustomerName
	}
	if p.CustomerContact == "" {
		p.CustomerContact = req.CustomerContact
	}
}

// scoreLocked recomputes the decayed score from events inside the
// scoring window.
func (e *Engine) scoreLocked(tx *gorm.DB, leadID string, now time.Time) (float64, error) {
	cutoff := now.AddDate(0, 0, -e.windowDays)
	var events []models.LeadEvent
	err := tx.Select("action", "created_at").
		Where("lead_id = ? AND created_at >= ?", leadID, cutoff).
		Find(&events).Error
	if err != nil {
		return 0, fmt.Errorf("leads: load events for %s: %w", leadID, err)
	}
	var total float64
	for _, ev := range events {
		total += Contribution(ev.Action, ev.CreatedAt, now)
	}
	return total, nil
}
