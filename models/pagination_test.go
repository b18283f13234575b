package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func TestCursorRoundTrip(t *testing.T) {
	cursor := models.EncodeCursor(42)
	id, err := models.DecodeCursor(&cursor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestDecodeCursorEmptyMeansFirstPage(t *testing.T) {
	if id, err := models.DecodeCursor(nil); err != nil || id != 0 {
		t.Fatalf("nil cursor: id=%d err=%v", id, err)
	}
	empty := ""
	if id, err := models.DecodeCursor(&empty); err != nil || id != 0 {
		t.Fatalf("empty cursor: id=%d err=%v", id, err)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"not-base64!!", "cGxhaW4=", "cGVybWl0Oi01"} {
		bad := bad
		if _, err := models.DecodeCursor(&bad); err == nil {
			t.Fatalf("cursor %q should be rejected", bad)
		}
	}
}
