package models

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
)

// Risk levels derived from a work-type code.
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// DetermineRisk classifies a work-type code. The checks run in precedence
// order: "hn"/"hot naked" must be tested before the single-letter "h", which
// would otherwise shadow them.
func DetermineRisk(workType string) string {
	t := strings.ToLower(workType)
	switch {
	case strings.Contains(t, "hn") || strings.Contains(t, "hot naked"):
		return RiskHigh
	case strings.Contains(t, "h") || strings.Contains(t, "hot"):
		return RiskMedium
	case strings.Contains(t, "c") || strings.Contains(t, "cold"):
		return RiskLow
	default:
		return RiskMedium
	}
}

// Status buckets used by the company breakdown and the dashboard rollups.
const (
	BucketExtended = "Extended"
	BucketClosed   = "Closed"
	BucketPlanned  = "Planned"
	BucketOpen     = "Open"
	BucketHold     = "Hold"
)

// classifyStatus maps a free-text status label onto one bucket by
// case-insensitive substring match, first match wins. Unmatched labels
// return "" and count toward totals only; the same rule is applied in every
// aggregation so the dashboard and the charts agree.
func classifyStatus(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "extend"):
		return BucketExtended
	case strings.Contains(s, "closed") || strings.Contains(s, "completed"):
		return BucketClosed
	case strings.Contains(s, "planned") || strings.Contains(s, "scheduled"):
		return BucketPlanned
	case strings.Contains(s, "open") || strings.Contains(s, "active"):
		return BucketOpen
	case strings.Contains(s, "hold"):
		return BucketHold
	default:
		return ""
	}
}

type CompanyStats struct {
	Company  string `json:"company"`
	Total    int    `json:"total"`
	Extended int    `json:"extended"`
	Closed   int    `json:"closed"`
	Planned  int    `json:"planned"`
	Open     int    `json:"open"`
	Hold     int    `json:"hold"`
}

// AggregateCompanies groups records by company. Records with an empty
// company are excluded from the per-company list but still count in the
// callers' overall totals.
func AggregateCompanies(permits []Permit) []CompanyStats {
	byCompany := make(map[string]*CompanyStats)
	var order []string
	for i := range permits {
		p := &permits[i]
		if p.Company == "" {
			continue
		}
		stats, ok := byCompany[p.Company]
		if !ok {
			stats = &CompanyStats{Company: p.Company}
			byCompany[p.Company] = stats
			order = append(order, p.Company)
		}
		stats.Total++
		switch classifyStatus(p.Status) {
		case BucketExtended:
			stats.Extended++
		case BucketClosed:
			stats.Closed++
		case BucketPlanned:
			stats.Planned++
		case BucketOpen:
			stats.Open++
		case BucketHold:
			stats.Hold++
		}
	}

	result := make([]CompanyStats, 0, len(order))
	for _, name := range order {
		result = append(result, *byCompany[name])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Total > result[j].Total
	})
	return result
}

type WorkTypeStats struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Risk  string `json:"risk"`
}

// AggregateWorkTypes groups by work-type code; empty codes are labelled
// Unknown. Risk is classified once per group.
func AggregateWorkTypes(permits []Permit) []WorkTypeStats {
	counts := make(map[string]int)
	var order []string
	for i := range permits {
		label := permits[i].Type
		if label == "" {
			label = "Unknown"
		}
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}

	result := make([]WorkTypeStats, 0, len(order))
	for _, label := range order {
		result = append(result, WorkTypeStats{
			Type:  label,
			Count: counts[label],
			Risk:  DetermineRisk(label),
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

type DashboardSummary struct {
	Total           int `json:"total"`
	Extended        int `json:"extended"`
	Closed          int `json:"closed"`
	Planned         int `json:"planned"`
	Open            int `json:"open"`
	Hold            int `json:"hold"`
	ExtendedRate    int `json:"extended_rate"`
	ClosureRate     int `json:"closure_rate"`
	HighRiskCount   int `json:"high_risk_count"`
	MediumRiskCount int `json:"medium_risk_count"`
	LowRiskCount    int `json:"low_risk_count"`
}

// Summarize computes the dashboard rollups. Rates are whole percentages and
// 0 when the set is empty.
func Summarize(permits []Permit) DashboardSummary {
	summary := DashboardSummary{Total: len(permits)}
	for i := range permits {
		switch classifyStatus(permits[i].Status) {
		case BucketExtended:
			summary.Extended++
		case BucketClosed:
			summary.Closed++
		case BucketPlanned:
			summary.Planned++
		case BucketOpen:
			summary.Open++
		case BucketHold:
			summary.Hold++
		}
	}
	if summary.Total > 0 {
		summary.ExtendedRate = int(math.Round(float64(summary.Extended) / float64(summary.Total) * 100))
		summary.ClosureRate = int(math.Round(float64(summary.Closed) / float64(summary.Total) * 100))
	}
	for _, wt := range AggregateWorkTypes(permits) {
		switch wt.Risk {
		case RiskHigh:
			summary.HighRiskCount += wt.Count
		case RiskMedium:
			summary.MediumRiskCount += wt.Count
		case RiskLow:
			summary.LowRiskCount += wt.Count
		}
	}
	return summary
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

const dailySeriesLimit = 30

// DailySeries buckets date-valued records by calendar day, ascending, and
// keeps the most recent 30 distinct days present in the data. Shift tokens
// and raw text never contribute.
func DailySeries(permits []Permit) []DailyCount {
	counts := make(map[string]int)
	for i := range permits {
		day := permits[i].DayValue()
		if !day.IsDate() {
			continue
		}
		counts[day.Date.Format("2006-01-02")]++
	}

	dates := make([]string, 0, len(counts))
	for d := range counts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > dailySeriesLimit {
		dates = dates[len(dates)-dailySeriesLimit:]
	}

	series := make([]DailyCount, 0, len(dates))
	for _, d := range dates {
		series = append(series, DailyCount{Date: d, Count: counts[d]})
	}
	return series
}

// Trend directions for the weekly comparison.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendFlat    = "flat"
)

type WeeklyTrend struct {
	LastWeek     int     `json:"last_week"`
	PreviousWeek int     `json:"previous_week"`
	Percent      float64 `json:"percent"`
	Direction    string  `json:"direction"`
}

// ComputeWeeklyTrend compares the trailing 7 days against the 7 days before
// them, anchored on now. A zero prior window reports 0% rather than a
// division blowup. Bands: above +5% rising, below -5% falling, else flat.
func ComputeWeeklyTrend(permits []Permit, now time.Time) WeeklyTrend {
	today := now.Truncate(24 * time.Hour)
	lastStart := today.AddDate(0, 0, -6)
	prevStart := today.AddDate(0, 0, -13)

	trend := WeeklyTrend{}
	for i := range permits {
		day := permits[i].DayValue()
		if !day.IsDate() {
			continue
		}
		d := day.Date.Truncate(24 * time.Hour)
		switch {
		case !d.Before(lastStart) && !d.After(today):
			trend.LastWeek++
		case !d.Before(prevStart) && d.Before(lastStart):
			trend.PreviousWeek++
		}
	}

	if trend.PreviousWeek > 0 {
		trend.Percent = (float64(trend.LastWeek) - float64(trend.PreviousWeek)) / float64(trend.PreviousWeek) * 100
	}
	switch {
	case trend.Percent > 5:
		trend.Direction = TrendRising
	case trend.Percent < -5:
		trend.Direction = TrendFalling
	default:
		trend.Direction = TrendFlat
	}
	return trend
}

// statusTrendLabels are the fixed series of the 14-day chart. Matching is
// exact, unlike the substring buckets above; labels outside this set are
// not charted.
var statusTrendLabels = []string{"Active", "Completed", "In Progress", "Cancelled"}

type StatusTrendDay struct {
	Date   string         `json:"date"`
	Counts map[string]int `json:"counts"`
}

const statusTrendDays = 14

// StatusTrend builds a 14-day trailing window anchored on now, pre-seeded
// with zeros for every label on every day so the chart never has gaps.
func StatusTrend(permits []Permit, now time.Time) []StatusTrendDay {
	today := now.Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(statusTrendDays - 1))

	series := make([]StatusTrendDay, statusTrendDays)
	index := make(map[string]int, statusTrendDays)
	for i := 0; i < statusTrendDays; i++ {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		counts := make(map[string]int, len(statusTrendLabels))
		for _, label := range statusTrendLabels {
			counts[label] = 0
		}
		series[i] = StatusTrendDay{Date: date, Counts: counts}
		index[date] = i
	}

	for i := range permits {
		p := &permits[i]
		day := p.DayValue()
		if !day.IsDate() {
			continue
		}
		slot, ok := index[day.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		for _, label := range statusTrendLabels {
			if p.Status == label {
				series[slot].Counts[label]++
				break
			}
		}
	}
	return series
}

// Statistics bundles everything the dashboard renders in one response so a
// filter change costs a single round trip.
type Statistics struct {
	Summary     DashboardSummary `json:"summary"`
	Companies   []CompanyStats   `json:"companies"`
	WorkTypes   []WorkTypeStats  `json:"work_types"`
	Daily       []DailyCount     `json:"daily"`
	WeeklyTrend WeeklyTrend      `json:"weekly_trend"`
	StatusTrend []StatusTrendDay `json:"status_trend"`
}

// ComputeStatistics recomputes all aggregates over the filtered record set.
// Single pass per aggregate; the sets are at most a few thousand rows.
func ComputeStatistics(ctx context.Context, filter *PermitFilter) (*Statistics, error) {
	permits, err := ListPermits(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Statistics{
		Summary:     Summarize(permits),
		Companies:   AggregateCompanies(permits),
		WorkTypes:   AggregateWorkTypes(permits),
		Daily:       DailySeries(permits),
		WeeklyTrend: ComputeWeeklyTrend(permits, now),
		StatusTrend: StatusTrend(permits, now),
	}, nil
}
