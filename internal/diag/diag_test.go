package diag

import (
	"encoding/json"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxel-stream/internal/streaming"
	"voxel-stream/internal/world"
)

func TestResidencyImage(t *testing.T) {
	statuses := []world.ChunkStatus{
		{Coord: world.ChunkCoord{X: -1, Z: -1}, Generated: true, Meshed: true},
		{Coord: world.ChunkCoord{X: 1, Z: 0}, Failed: true},
		{Coord: world.ChunkCoord{X: 0, Z: 1}},
	}
	img := ResidencyImage(statuses, 4)
	if got := img.Bounds().Dx(); got != 12 {
		t.Fatalf("width = %d, want 12", got)
	}
	if got := img.Bounds().Dy(); got != 12 {
		t.Fatalf("height = %d, want 12", got)
	}

	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{1, 1, ColorMeshed},     // (-1,-1)
		{9, 5, ColorFailed},     // (1,0)
		{5, 9, ColorGenerating}, // (0,1)
		{5, 5, ColorEmpty},      // (0,0) not resident
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel %d,%d = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestResidencyImageEmpty(t *testing.T) {
	img := ResidencyImage(nil, 3)
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 3 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if img.RGBAAt(0, 0) != ColorEmpty {
		t.Fatal("empty map not filled")
	}
}

func TestStatusColorPrecedence(t *testing.T) {
	st := world.ChunkStatus{Generated: true, Dirty: true, Meshed: true}
	if statusColor(st) != ColorDirty {
		t.Fatal("dirty should win over meshed")
	}
	st.Failed = true
	if statusColor(st) != ColorFailed {
		t.Fatal("failed should win over everything")
	}
	if statusColor(world.ChunkStatus{Generated: true}) != ColorGenerated {
		t.Fatal("generated without mesh")
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := NewServer(nil, 100)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before publish = %d", resp.StatusCode)
	}

	s.Publish(streaming.Stats{Resident: 9, ViewDistance: 1}, nil)
	resp, err = http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var msg Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != "STATS" || msg.Seq != 1 || msg.Stats.Resident != 9 {
		t.Fatalf("message = %+v", msg)
	}
}

func TestResidencyEndpoint(t *testing.T) {
	s := NewServer(nil, 100)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.Publish(streaming.Stats{}, []world.ChunkStatus{
		{Coord: world.ChunkCoord{}, Generated: true},
		{Coord: world.ChunkCoord{X: 2, Z: 1}, Generated: true},
	})
	resp, err := http.Get(srv.URL + "/residency.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Fatalf("bounds = %v, want 24x16", b)
	}
}

func TestWebsocketFeed(t *testing.T) {
	s := NewServer(nil, 1000)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.Publish(streaming.Stats{Frames: 1}, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// The latest snapshot arrives on connect.
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Stats.Frames != 1 {
		t.Fatalf("first message frames = %d, want 1", msg.Stats.Frames)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.Subscribers() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not registered")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(5 * time.Millisecond) // let the limiter refill
	s.Publish(streaming.Stats{Frames: 2}, nil)
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg.Stats.Frames != 2 || msg.Seq != 2 {
		t.Fatalf("second message = %+v", msg)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:5000": true,
		"[::1]:80":       true,
		"10.0.0.4:5000":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackRemote(addr); got != want {
			t.Errorf("isLoopbackRemote(%q) = %v, want %v", addr, got, want)
		}
	}
}
