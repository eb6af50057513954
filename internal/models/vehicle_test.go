package models

import "testing"

func TestSummary(t *testing.T) {
	v := Vehicle{Year: 2022, Make: "Toyota", Model: "RAV4", Trim: "XLE"}
	if got := v.Summary(); got != "2022 Toyota RAV4 XLE" {
		t.Errorf("Summary = %q", got)
	}
	v.Trim = ""
	if got := v.Summary(); got != "2022 Toyota RAV4" {
		t.Errorf("Summary without trim = %q", got)
	}
}

func TestFeatureRoundTrip(t *testing.T) {
	var v Vehicle
	v.SetFeatures([]string{"sunroof", "heated seats"})
	got := v.FeatureList()
	if len(got) != 2 || got[0] != "sunroof" || got[1] != "heated seats" {
		t.Errorf("features = %v", got)
	}

	v.SetFeatures(nil)
	if v.Features != "[]" {
		t.Errorf("empty features column = %q, want []", v.Features)
	}
	if got := v.FeatureList(); len(got) != 0 {
		t.Errorf("empty feature list = %v, want empty", got)
	}

	// Malformed stored JSON degrades to no features.
	v.Features = "{broken"
	if got := v.FeatureList(); len(got) != 0 {
		t.Errorf("malformed feature list = %v, want empty", got)
	}
}

func TestArchived(t *testing.T) {
	cases := []struct {
		status AvailabilityStatus
		want   bool
	}{
		{StatusInStock, false},
		{StatusSold, false},
		{StatusArchivedSold, true},
		{StatusArchivedRemoved, true},
	}
	for _, tc := range cases {
		v := Vehicle{AvailabilityStatus: tc.status}
		if v.Archived() != tc.want {
			t.Errorf("Archived(%s) = %v, want %v", tc.status, !tc.want, tc.want)
		}
	}
}

func TestLeadStatusTerminal(t *testing.T) {
	for _, s := range []LeadStatus{LeadNew, LeadEngaged, LeadQualified} {
		if s.Terminal() {
			t.Errorf("%s reported terminal", s)
		}
	}
	for _, s := range []LeadStatus{LeadWon, LeadLost} {
		if !s.Terminal() {
			t.Errorf("%s not reported terminal", s)
		}
	}
}
