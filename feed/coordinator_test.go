package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/models"
)

func waitForSnapshot(t *testing.T, c *Coordinator, want int) []models.Permit {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if len(snap) == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot never reached %d records", want)
	return nil
}

func TestApplyInsertIsIdempotent(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) { return nil, nil })

	p := &models.Permit{ID: 1, Number: "PTW-1", Status: "Active"}
	c.applyInsert(p)
	c.applyInsert(p)
	if got := len(c.Snapshot()); got != 1 {
		t.Fatalf("duplicate insert produced %d records", got)
	}

	// replay with newer content overwrites in place
	updated := &models.Permit{ID: 1, Number: "PTW-1", Status: "Closed"}
	c.applyInsert(updated)
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].Status != "Closed" {
		t.Fatalf("replayed insert should overwrite, got %+v", snap)
	}
}

func TestApplyInsertPrepends(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) { return nil, nil })
	c.applyInsert(&models.Permit{ID: 1})
	c.applyInsert(&models.Permit{ID: 2})
	snap := c.Snapshot()
	if snap[0].ID != 2 || snap[1].ID != 1 {
		t.Fatalf("newest record should come first, got %+v", snap)
	}
}

func TestApplyUpdateIgnoresAbsentRecord(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) { return nil, nil })
	c.applyInsert(&models.Permit{ID: 1, Status: "Active"})

	c.applyUpdate(&models.Permit{ID: 99, Status: "Closed"})
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].ID != 1 {
		t.Fatalf("update for absent record must not resurrect it, got %+v", snap)
	}

	c.applyUpdate(&models.Permit{ID: 1, Status: "Closed"})
	if got := c.Snapshot()[0].Status; got != "Closed" {
		t.Fatalf("status = %q, want Closed", got)
	}
}

func TestApplyDelete(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) { return nil, nil })
	c.applyInsert(&models.Permit{ID: 1})
	c.applyInsert(&models.Permit{ID: 2})

	c.applyDelete(&models.Permit{ID: 1})
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].ID != 2 {
		t.Fatalf("delete failed, got %+v", snap)
	}

	// deleting an absent record is a no-op
	c.applyDelete(&models.Permit{ID: 42})
	if got := len(c.Snapshot()); got != 1 {
		t.Fatalf("delete of absent record changed the view: %d records", got)
	}
}

func TestRefreshInstallsSnapshot(t *testing.T) {
	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) {
		return []models.Permit{{ID: 7, Number: "PTW-7"}}, nil
	})
	c.Refresh(context.Background())
	snap := waitForSnapshot(t, c, 1)
	if snap[0].ID != 7 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestRefreshSupersedesInFlightLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) {
		n := calls.Add(1)
		if n == 1 {
			// first load stalls until after the second completes
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return []models.Permit{{ID: 1, Number: "stale"}}, nil
		}
		return []models.Permit{{ID: 2, Number: "fresh"}}, nil
	})

	ctx := context.Background()
	c.Refresh(ctx)
	// wait until the first loader call is underway
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	c.Refresh(ctx)
	snap := waitForSnapshot(t, c, 1)
	if snap[0].Number != "fresh" {
		t.Fatalf("expected fresh snapshot, got %+v", snap)
	}

	// let the stale load finish; its result must be discarded
	close(release)
	c.Wait()
	snap = c.Snapshot()
	if len(snap) != 1 || snap[0].Number != "fresh" {
		t.Fatalf("stale load overwrote a newer snapshot: %+v", snap)
	}
}

func TestRefreshKeepsViewOnLoadError(t *testing.T) {
	failing := errors.New("db down")
	var fail atomic.Bool

	c := NewCoordinator(func(ctx context.Context) ([]models.Permit, error) {
		if fail.Load() {
			return nil, failing
		}
		return []models.Permit{{ID: 1}}, nil
	})

	ctx := context.Background()
	c.Refresh(ctx)
	waitForSnapshot(t, c, 1)

	fail.Store(true)
	c.Refresh(ctx)
	c.Wait()
	if got := len(c.Snapshot()); got != 1 {
		t.Fatalf("failed refresh must keep the previous view, got %d records", got)
	}
}
