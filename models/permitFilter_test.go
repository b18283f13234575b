package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func TestPermitFilterEmptyMatchesEverything(t *testing.T) {
	var filter models.PermitFilter
	if !filter.IsZero() {
		t.Fatal("zero-valued filter should report IsZero")
	}
	permits := []models.Permit{
		{Number: "PTW-1", Company: "Acme", Status: "Active", Day: "Night"},
		{Number: "PTW-2", Company: "Beta", Status: "Closed", Day: "2024-01-01"},
	}
	for i := range permits {
		if !filter.Match(&permits[i]) {
			t.Fatalf("empty filter rejected %s", permits[i].Number)
		}
	}
}

func TestPermitFilterSearch(t *testing.T) {
	p := models.Permit{
		Number:      "PTW-100",
		Description: "scaffold dismantling",
		Company:     "Acme Industrial",
		Location:    "Unit 4",
		Owner:       "K. Aung",
		Project:     "Turnaround",
	}
	hits := []string{"ptw-100", "SCAFFOLD", "acme", "unit 4", "aung", "turnaround"}
	for _, term := range hits {
		f := models.PermitFilter{Search: term}
		if !f.Match(&p) {
			t.Fatalf("search %q should match", term)
		}
	}
	f := models.PermitFilter{Search: "nowhere"}
	if f.Match(&p) {
		t.Fatal("search for absent term should not match")
	}
}

func TestPermitFilterExactFields(t *testing.T) {
	p := models.Permit{Company: "Acme", Status: "Active", Type: "HN"}

	if !(&models.PermitFilter{Company: "Acme"}).Match(&p) {
		t.Fatal("company filter should match")
	}
	// the SQL path compares under a ci collation, so the in-memory path must
	// accept the same case-folded hit
	if !(&models.PermitFilter{Company: "acme"}).Match(&p) {
		t.Fatal("company filter is case-insensitive, lowercase must match")
	}
	if (&models.PermitFilter{Company: "Acm"}).Match(&p) {
		t.Fatal("company filter is equality, not substring")
	}
	if !(&models.PermitFilter{Status: "active"}).Match(&p) {
		t.Fatal("status filter is case-insensitive")
	}
	if !(&models.PermitFilter{Type: "hn"}).Match(&p) {
		t.Fatal("type filter is case-insensitive")
	}
	if (&models.PermitFilter{Status: "Act"}).Match(&p) {
		t.Fatal("status filter is equality, not substring")
	}
}

func TestPermitFilterDateRange(t *testing.T) {
	inRange := models.Permit{Day: "2024-03-10"}
	before := models.Permit{Day: "2024-02-01"}
	after := models.Permit{Day: "2024-04-01"}
	shift := models.Permit{Day: "Night"}
	raw := models.Permit{Day: "whenever"}

	f := models.PermitFilter{DateFrom: "2024-03-01", DateTo: "2024-03-31"}
	if !f.Match(&inRange) {
		t.Fatal("dated row inside range should match")
	}
	if f.Match(&before) || f.Match(&after) {
		t.Fatal("dated rows outside range must not match")
	}
	// the range only constrains date rows
	if !f.Match(&shift) || !f.Match(&raw) {
		t.Fatal("shift and raw rows pass through a date range filter")
	}

	fromOnly := models.PermitFilter{DateFrom: "2024-03-01"}
	if !fromOnly.Match(&after) || fromOnly.Match(&before) {
		t.Fatal("open-ended from filter misbehaved")
	}
}
