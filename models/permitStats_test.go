package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func TestDetermineRiskPrecedence(t *testing.T) {
	cases := map[string]string{
		"HN-1":      models.RiskHigh,
		"hot naked": models.RiskHigh,
		"Hot":       models.RiskMedium,
		"H":         models.RiskMedium,
		"Cold":      models.RiskLow,
		"C-2":       models.RiskLow,
		"":          models.RiskMedium,
		"welding":   models.RiskMedium,
	}
	for workType, want := range cases {
		if got := models.DetermineRisk(workType); got != want {
			t.Fatalf("DetermineRisk(%q) = %q, want %q", workType, got, want)
		}
	}
}

func TestAggregateCompaniesBuckets(t *testing.T) {
	permits := []models.Permit{
		{Company: "Acme", Status: "Extended"},
		{Company: "Acme", Status: "extend"},
		{Company: "Acme", Status: "closed"},
		{Company: "Acme", Status: "foo"},
	}
	stats := models.AggregateCompanies(permits)
	if len(stats) != 1 {
		t.Fatalf("expected one company, got %d", len(stats))
	}
	acme := stats[0]
	if acme.Total != 4 {
		t.Fatalf("total = %d, want 4", acme.Total)
	}
	if acme.Extended != 2 || acme.Closed != 1 {
		t.Fatalf("buckets = extended %d closed %d, want 2 and 1", acme.Extended, acme.Closed)
	}
	// an unmatched status counts in the total only
	if acme.Open != 0 || acme.Planned != 0 || acme.Hold != 0 {
		t.Fatalf("unmatched status leaked into a bucket: %+v", acme)
	}
}

func TestAggregateCompaniesExcludesEmptyAndSorts(t *testing.T) {
	permits := []models.Permit{
		{Company: "", Status: "Active"},
		{Company: "Beta", Status: "Active"},
		{Company: "Alpha", Status: "Active"},
		{Company: "Alpha", Status: "On Hold"},
	}
	stats := models.AggregateCompanies(permits)
	if len(stats) != 2 {
		t.Fatalf("expected 2 companies, got %d", len(stats))
	}
	if stats[0].Company != "Alpha" || stats[0].Total != 2 {
		t.Fatalf("expected Alpha first with total 2, got %+v", stats[0])
	}
	if stats[0].Hold != 1 {
		t.Fatalf("On Hold should land in the Hold bucket, got %+v", stats[0])
	}
}

func TestSummarizeRates(t *testing.T) {
	empty := models.Summarize(nil)
	if empty.ExtendedRate != 0 || empty.ClosureRate != 0 {
		t.Fatalf("empty set must report zero rates, got %+v", empty)
	}

	permits := []models.Permit{
		{Company: "A", Status: "Extended", Type: "HN"},
		{Company: "A", Status: "Closed", Type: "H"},
		{Company: "A", Status: "Active", Type: "C"},
		{Company: "A", Status: "Active", Type: "C"},
	}
	s := models.Summarize(permits)
	if s.Total != 4 {
		t.Fatalf("total = %d, want 4", s.Total)
	}
	if s.ExtendedRate != 25 || s.ClosureRate != 25 {
		t.Fatalf("rates = %d/%d, want 25/25", s.ExtendedRate, s.ClosureRate)
	}
	if s.HighRiskCount != 1 || s.MediumRiskCount != 1 || s.LowRiskCount != 2 {
		t.Fatalf("risk counts = %d/%d/%d, want 1/1/2", s.HighRiskCount, s.MediumRiskCount, s.LowRiskCount)
	}
}

func TestAggregateWorkTypesUnknownLabel(t *testing.T) {
	permits := []models.Permit{
		{Type: ""},
		{Type: ""},
		{Type: "HN"},
	}
	stats := models.AggregateWorkTypes(permits)
	if len(stats) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(stats))
	}
	if stats[0].Type != "Unknown" || stats[0].Count != 2 {
		t.Fatalf("expected Unknown first with count 2, got %+v", stats[0])
	}
	if stats[1].Risk != models.RiskHigh {
		t.Fatalf("HN should classify High, got %q", stats[1].Risk)
	}
}

func TestDailySeriesKeepsRecent30Ascending(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var permits []models.Permit
	for i := 0; i < 45; i++ {
		permits = append(permits, models.Permit{
			Day: base.AddDate(0, 0, i).Format("2006-01-02"),
		})
	}
	// shift rows never contribute
	permits = append(permits, models.Permit{Day: "Night"}, models.Permit{Day: "Day"})

	series := models.DailySeries(permits)
	if len(series) != 30 {
		t.Fatalf("series length = %d, want 30", len(series))
	}
	if series[0].Date != "2024-01-16" {
		t.Fatalf("series should keep the most recent days, first = %s", series[0].Date)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Date <= series[i-1].Date {
			t.Fatalf("series not ascending at %d: %s <= %s", i, series[i].Date, series[i-1].Date)
		}
	}
}

func TestComputeWeeklyTrendZeroPriorWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	var permits []models.Permit
	for i := 0; i < 5; i++ {
		permits = append(permits, models.Permit{Day: now.AddDate(0, 0, -i).Format("2006-01-02")})
	}
	trend := models.ComputeWeeklyTrend(permits, now)
	if trend.LastWeek != 5 || trend.PreviousWeek != 0 {
		t.Fatalf("windows = %d/%d, want 5/0", trend.LastWeek, trend.PreviousWeek)
	}
	if trend.Percent != 0 {
		t.Fatalf("zero prior window must yield 0%%, got %v", trend.Percent)
	}
	if trend.Direction != models.TrendFlat {
		t.Fatalf("0%% is inside the flat band, got %q", trend.Direction)
	}
}

func TestComputeWeeklyTrendBands(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	mk := func(last, prev int) models.WeeklyTrend {
		var permits []models.Permit
		for i := 0; i < last; i++ {
			permits = append(permits, models.Permit{Day: now.Format("2006-01-02")})
		}
		for i := 0; i < prev; i++ {
			permits = append(permits, models.Permit{Day: now.AddDate(0, 0, -8).Format("2006-01-02")})
		}
		return models.ComputeWeeklyTrend(permits, now)
	}

	if got := mk(12, 10); got.Direction != models.TrendRising {
		t.Fatalf("+20%% should be rising, got %q (%v)", got.Direction, got.Percent)
	}
	if got := mk(8, 10); got.Direction != models.TrendFalling {
		t.Fatalf("-20%% should be falling, got %q (%v)", got.Direction, got.Percent)
	}
	if got := mk(10, 10); got.Direction != models.TrendFlat {
		t.Fatalf("0%% should be flat, got %q", got.Direction)
	}
}

func TestStatusTrendSeededAndExactMatch(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	today := now.Format("2006-01-02")
	permits := []models.Permit{
		{Day: today, Status: "Active"},
		{Day: today, Status: "Active"},
		{Day: today, Status: "active"},   // exact match only; not counted
		{Day: today, Status: "Extended"}, // not one of the four labels
		{Day: "Night", Status: "Active"}, // shift rows never contribute
		{Day: now.AddDate(0, 0, -20).Format("2006-01-02"), Status: "Active"}, // outside window
	}

	series := models.StatusTrend(permits, now)
	if len(series) != 14 {
		t.Fatalf("series length = %d, want 14", len(series))
	}
	last := series[len(series)-1]
	if last.Date != today {
		t.Fatalf("last day = %s, want %s", last.Date, today)
	}
	if last.Counts["Active"] != 2 {
		t.Fatalf("Active count = %d, want 2", last.Counts["Active"])
	}
	// every day carries all four labels, zero-seeded
	for _, day := range series {
		for _, label := range []string{"Active", "Completed", "In Progress", "Cancelled"} {
			if _, ok := day.Counts[label]; !ok {
				t.Fatalf("day %s missing seeded label %q", day.Date, label)
			}
		}
	}
	if series[0].Counts["Active"] != 0 {
		t.Fatalf("out-of-window record leaked into day %s", series[0].Date)
	}
}

func TestDailySeriesDistinctDayCounts(t *testing.T) {
	permits := []models.Permit{
		{Day: "2024-02-01"},
		{Day: "2024-02-01"},
		{Day: "2024-02-02"},
	}
	series := models.DailySeries(permits)
	if len(series) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(series))
	}
	want := map[string]int{"2024-02-01": 2, "2024-02-02": 1}
	for _, b := range series {
		if want[b.Date] != b.Count {
			t.Fatalf("bucket %s = %d, want %d", b.Date, b.Count, want[b.Date])
		}
	}
}
