// Package escalation detects lead status boundary crossings and keeps
// a durable, deduplicated record of the alerts they raise.
package escalation

import (
	"github.com/lotline/lotline/internal/models"
	"go.uber.org/zap"
)

// Escalation type names, keyed by the boundary a lead crossed.
const (
	TypeColdToWarm = "cold_to_warm"
	TypeColdToHot  = "cold_to_hot"
	TypeWarmToHot  = "warm_to_hot"
)

type transition struct {
	from models.LeadStatus
	to   models.LeadStatus
}

// transitions maps each upward status move to its escalation type.
// Downward moves and terminal states never escalate.
var transitions = map[transition]string{
	{models.LeadNew, models.LeadEngaged}:       TypeColdToWarm,
	{models.LeadNew, models.LeadQualified}:     TypeColdToHot,
	{models.LeadEngaged, models.LeadQualified}: TypeWarmToHot,
}

// Check returns the escalation type for a status transition, if the
// transition crosses an alert boundary.
func Check(old, new models.LeadStatus) (string, bool) {
	typ, ok := transitions[transition{old, new}]
	return typ, ok
}

// Subscriber receives escalations as they are recorded. Implementations
// live in the notify package; tests supply fakes.
type Subscriber interface {
	// Name identifies the subscriber in logs.
	Name() string
	// Notify delivers one escalation. Errors are logged, not propagated.
	Notify(esc *models.Escalation) error
}

// Dispatcher fans a recorded escalation out to subscribers. A failing
// subscriber never blocks the others or the caller.
type Dispatcher struct {
	subs []Subscriber
	log  *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher over the given subscribers.
func NewDispatcher(log *zap.SugaredLogger, subs ...Subscriber) *Dispatcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{subs: subs, log: log.With("component", "escalation")}
}

// Subscribe adds a subscriber. Not safe to call once dispatching starts.
func (d *Dispatcher) Subscribe(sub Subscriber) {
	d.subs = append(d.subs, sub)
}

// Dispatch notifies every subscriber of one escalation.
func (d *Dispatcher) Dispatch(esc *models.Escalation) {
	for _, sub := range d.subs {
		if err := sub.Notify(esc); err != nil {
			d.log.Warnw("escalation delivery failed",
				"subscriber", sub.Name(),
				"escalation_id", esc.ID,
				"lead_id", esc.LeadID,
				"error", err)
			continue
		}
		d.log.Infow("escalation delivered",
			"subscriber", sub.Name(),
			"escalation_id", esc.ID,
			"type", esc.EscalationType)
	}
}
