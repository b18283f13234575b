package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func TestParseDayValueShiftTokens(t *testing.T) {
	for _, raw := range []string{"Day", "day", " DAY ", "Night", "night"} {
		v := models.ParseDayValue(raw)
		if !v.IsShift() {
			t.Fatalf("ParseDayValue(%q): expected shift, got kind %v", raw, v.Kind)
		}
		if v.Text != models.ShiftDay && v.Text != models.ShiftNight {
			t.Fatalf("ParseDayValue(%q): unexpected canonical token %q", raw, v.Text)
		}
	}
	if models.ParseDayValue("night").Text != models.ShiftNight {
		t.Fatal("lowercase night should canonicalize to Night")
	}
}

func TestParseDayValueDates(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":          "2024-03-05",
		"2024-03-05 08:30:00": "2024-03-05",
		"3/5/2024":            "2024-03-05",
		"05-Mar-24":           "2024-03-05",
	}
	for raw, want := range cases {
		v := models.ParseDayValue(raw)
		if !v.IsDate() {
			t.Fatalf("ParseDayValue(%q): expected date, got kind %v", raw, v.Kind)
		}
		if got := v.String(); got != want {
			t.Fatalf("ParseDayValue(%q).String() = %q, want %q", raw, got, want)
		}
	}
}

func TestParseDayValueRawFallback(t *testing.T) {
	v := models.ParseDayValue("whenever")
	if v.IsDate() || v.IsShift() {
		t.Fatalf("expected raw kind, got %v", v.Kind)
	}
	if v.String() != "whenever" {
		t.Fatalf("raw text should round-trip, got %q", v.String())
	}

	empty := models.ParseDayValue("   ")
	if empty.Kind != models.DayRaw || empty.Text != "" {
		t.Fatalf("blank input should be empty raw, got kind %v text %q", empty.Kind, empty.Text)
	}
}
