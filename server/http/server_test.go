package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/srt-2000/chatrelay/model"
	"github.com/srt-2000/chatrelay/registry"
	chathttp "github.com/srt-2000/chatrelay/server/http"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry) {
	t.Helper()
	logger := zerolog.Nop()
	reg := registry.New(&logger)
	srv := chathttp.NewServer(chathttp.Config{
		Logger:     &logger,
		RoomInfo:   reg,
		ListenAddr: ":0",
	})
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts, reg
}

func postJoin(t *testing.T, ts *httptest.Server, body string) (*http.Response, chathttp.GenericResponse) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/join", "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("join request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var out chathttp.GenericResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, out
}

func TestJoinAssignsParticipantID(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := postJoin(t, ts, `{"username":"  alice  ","room_id":7}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if out.Error != "" {
		t.Fatalf("unexpected error: %s", out.Error)
	}

	data, ok := out.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %+v", out.Data)
	}
	if data["username"] != "alice" {
		t.Errorf("expected trimmed username, got %v", data["username"])
	}
	if data["room_id"] != float64(7) {
		t.Errorf("unexpected room id: %v", data["room_id"])
	}
	userID, ok := data["user_id"].(float64)
	if !ok || userID < 100 || userID > 100000 {
		t.Errorf("assigned user id out of range: %v", data["user_id"])
	}
}

func TestJoinReportsRoomOccupancy(t *testing.T) {
	ts, reg := newTestServer(t)

	reg.Register(7, 100, model.NewWire())
	reg.Register(7, 200, model.NewWire())

	_, out := postJoin(t, ts, `{"username":"alice","room_id":7}`)
	data, ok := out.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data payload: %+v", out.Data)
	}
	if data["participants"] != float64(2) {
		t.Errorf("expected 2 participants, got %v", data["participants"])
	}
}

func TestJoinValidation(t *testing.T) {
	ts, _ := newTestServer(t)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		body string
	}{
		{name: "empty username", body: `{"username":"","room_id":1}`},
		{name: "whitespace username", body: `{"username":"   ","room_id":1}`},
		{name: "username too long", body: `{"username":"` + string(long) + `","room_id":1}`},
		{name: "zero room id", body: `{"username":"alice","room_id":0}`},
		{name: "negative room id", body: `{"username":"alice","room_id":-5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJoin(t, ts, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			if out.Error == "" {
				t.Error("expected an error message in the response")
			}
		})
	}
}

func TestJoinRejectsMalformedBody(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/join", "application/json", bytes.NewReader([]byte("not json")))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServerRunShutsDownOnContextCancel(t *testing.T) {
	logger := zerolog.Nop()
	reg := registry.New(&logger)
	srv := chathttp.NewServer(chathttp.Config{
		Logger:     &logger,
		RoomInfo:   reg,
		ListenAddr: "127.0.0.1:0",
	})

	ctx, cancel := context.WithCancel(context.Background())
	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(1)
	go srv.Run(ctx, wg, errc)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}
	select {
	case err := <-errc:
		t.Errorf("unexpected server error: %v", err)
	default:
	}
}
