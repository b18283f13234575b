package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/ptw_backend/events"
	"bitbucket.org/mmdatafocus/ptw_backend/models"
	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubRelaysBusEvents(t *testing.T) {
	bus := events.NewBus()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, bus)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.ServeWS(w, r); err != nil {
			t.Errorf("ServeWS: %v", err)
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration races the first emit, so keep emitting until a frame
	// lands; duplicates are harmless here
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				bus.Emit(events.Event{Kind: events.Inserted, Permit: &models.Permit{ID: 7, Number: "PTW-7"}})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no frame before deadline: %v", err)
	}
	var got events.Event
	if err := json.Unmarshal(frame, &got); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if got.Kind != events.Inserted || got.Permit == nil || got.Permit.ID != 7 {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestServeWSAfterShutdownDoesNotBlock(t *testing.T) {
	bus := events.NewBus()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		h.Run(ctx, bus)
		close(ran)
	}()
	cancel()
	<-ran

	served := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served <- h.ServeWS(w, r)
	}))
	defer srv.Close()

	if conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil); err == nil {
		defer conn.Close()
	}

	select {
	case err := <-served:
		if err == nil {
			t.Fatal("ServeWS must refuse connections once the hub stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ServeWS blocked on a stopped hub")
	}
}
