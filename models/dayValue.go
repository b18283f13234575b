package models

import (
	"strings"
	"time"
)

// DayKind tags the tri-modal `day` field. The column stores a plain string
// (shift token, calendar date, or whatever the upload contained); everything
// inside the service branches on the tag instead of re-parsing ad hoc.
type DayKind int

const (
	DayRaw DayKind = iota
	DayShift
	DayDate
)

const (
	ShiftDay   = "Day"
	ShiftNight = "Night"
)

type DayValue struct {
	Kind DayKind
	// Date is set only for DayDate.
	Date time.Time
	// Text holds the canonical shift token for DayShift, or the raw cell
	// content for DayRaw.
	Text string
}

// dayLayouts are tried in order. Spreadsheet cells arrive as strings from
// excelize, so common cell renderings are included alongside ISO forms.
var dayLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"1/2/06",
	"02-Jan-06",
}

// ParseDayValue never fails: anything that is not a shift token or a
// parseable date is kept as raw text so ingestion can decide what to do.
func ParseDayValue(s string) DayValue {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "day":
		return DayValue{Kind: DayShift, Text: ShiftDay}
	case "night":
		return DayValue{Kind: DayShift, Text: ShiftNight}
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DayValue{Kind: DayDate, Date: t}
		}
	}
	return DayValue{Kind: DayRaw, Text: trimmed}
}

// String renders the storage/spreadsheet form: canonical shift token,
// date truncated to YYYY-MM-DD, or the raw text unchanged.
func (d DayValue) String() string {
	if d.Kind == DayDate {
		return d.Date.Format("2006-01-02")
	}
	return d.Text
}

func (d DayValue) IsDate() bool {
	return d.Kind == DayDate
}

func (d DayValue) IsShift() bool {
	return d.Kind == DayShift
}
