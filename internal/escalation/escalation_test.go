package escalation

import (
	"errors"
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

func TestCheck(t *testing.T) {
	cases := []struct {
		old, new models.LeadStatus
		wantType string
		wantOK   bool
	}{
		{models.LeadNew, models.LeadEngaged, TypeColdToWarm, true},
		{models.LeadNew, models.LeadQualified, TypeColdToHot, true},
		{models.LeadEngaged, models.LeadQualified, TypeWarmToHot, true},
		{models.LeadNew, models.LeadNew, "", false},
		{models.LeadQualified, models.LeadEngaged, "", false},
		{models.LeadQualified, models.LeadWon, "", false},
		{models.LeadEngaged, models.LeadLost, "", false},
	}
	for _, tc := range cases {
		typ, ok := Check(tc.old, tc.new)
		if typ != tc.wantType || ok != tc.wantOK {
			t.Errorf("Check(%s, %s) = (%q, %v), want (%q, %v)",
				tc.old, tc.new, typ, ok, tc.wantType, tc.wantOK)
		}
	}
}

func TestSaveDeduplicates(t *testing.T) {
	s := NewStore(testDB(t))
	esc := &models.Escalation{
		LeadID:         "leadprof-abc",
		EscalationType: TypeColdToWarm,
		OldStatus:      models.LeadNew,
		NewStatus:      models.LeadEngaged,
		Score:          11,
	}
	saved, err := s.Save(esc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved {
		t.Fatal("first save suppressed")
	}
	if esc.ID == "" || esc.CreatedAt.IsZero() {
		t.Fatal("save did not assign id and timestamp")
	}

	// Same lead and type while undelivered: suppressed.
	dup := &models.Escalation{LeadID: "leadprof-abc", EscalationType: TypeColdToWarm}
	saved, err = s.Save(dup)
	if err != nil {
		t.Fatalf("dup save: %v", err)
	}
	if saved {
		t.Error("duplicate active escalation was not suppressed")
	}

	// Different type for the same lead: allowed.
	other := &models.Escalation{LeadID: "leadprof-abc", EscalationType: TypeWarmToHot}
	if saved, err = s.Save(other); err != nil || !saved {
		t.Fatalf("other type save = (%v, %v), want saved", saved, err)
	}

	// Once delivered, the same type may fire again.
	if changed, _, err := s.MarkDelivered(esc.ID); err != nil || !changed {
		t.Fatalf("mark delivered = (%v, %v)", changed, err)
	}
	again := &models.Escalation{LeadID: "leadprof-abc", EscalationType: TypeColdToWarm}
	if saved, err = s.Save(again); err != nil || !saved {
		t.Fatalf("post-delivery save = (%v, %v), want saved", saved, err)
	}
}

func TestPendingAndFilters(t *testing.T) {
	s := NewStore(testDB(t))
	old := &models.Escalation{
		LeadID:         "leadprof-1",
		EscalationType: TypeColdToWarm,
		CreatedAt:      time.Now().UTC().Add(-48 * time.Hour),
	}
	recent := &models.Escalation{LeadID: "leadprof-2", EscalationType: TypeWarmToHot}
	for _, e := range []*models.Escalation{old, recent} {
		if _, err := s.Save(e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	rows, err := s.Pending(Filters{})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(rows) != 2 || rows[0].LeadID != "leadprof-2" {
		t.Fatalf("pending = %+v, want newest first", rows)
	}

	rows, err = s.Pending(Filters{Since: time.Now().UTC().Add(-24 * time.Hour)})
	if err != nil {
		t.Fatalf("pending since: %v", err)
	}
	if len(rows) != 1 || rows[0].LeadID != "leadprof-2" {
		t.Fatalf("since filter = %+v, want recent only", rows)
	}

	rows, err = s.Pending(Filters{Type: TypeColdToWarm})
	if err != nil {
		t.Fatalf("pending type: %v", err)
	}
	if len(rows) != 1 || rows[0].LeadID != "leadprof-1" {
		t.Fatalf("type filter = %+v, want cold_to_warm only", rows)
	}

	if changed, _, err := s.MarkDelivered(recent.ID); err != nil || !changed {
		t.Fatalf("mark delivered = (%v, %v)", changed, err)
	}
	rows, err = s.Pending(Filters{})
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("pending after delivery = %d, want 1", len(rows))
	}
	all, err := s.All(Filters{})
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	s := NewStore(testDB(t))
	esc := &models.Escalation{LeadID: "leadprof-1", EscalationType: TypeColdToHot}
	if _, err := s.Save(esc); err != nil {
		t.Fatalf("save: %v", err)
	}
	changed, found, err := s.MarkDelivered(esc.ID)
	if err != nil || !changed || !found {
		t.Fatalf("first mark = (%v, %v, %v), want changed and found", changed, found, err)
	}
	changed, found, err = s.MarkDelivered(esc.ID)
	if err != nil || !found {
		t.Fatalf("second mark = (%v, %v, %v), want found", changed, found, err)
	}
	if changed {
		t.Error("second mark reported changed, want no-op")
	}
	changed, found, err = s.MarkDelivered("esc-missing")
	if err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	if changed || found {
		t.Errorf("unknown id = (%v, %v), want neither", changed, found)
	}
}

type fakeSubscriber struct {
	name string
	got  []string
	err  error
}

func (f *fakeSubscriber) Name() string { return f.name }
func (f *fakeSubscriber) Notify(esc *models.Escalation) error {
	f.got = append(f.got, esc.ID)
	return f.err
}

func TestDispatchIsolatesFailures(t *testing.T) {
	bad := &fakeSubscriber{name: "bad", err: errors.New("boom")}
	good := &fakeSubscriber{name: "good"}
	d := NewDispatcher(nil, bad, good)

	d.Dispatch(&models.Escalation{ID: "esc-1", LeadID: "leadprof-1"})

	if len(bad.got) != 1 || len(good.got) != 1 {
		t.Fatalf("deliveries = bad:%d good:%d, want 1 each", len(bad.got), len(good.got))
	}
}
