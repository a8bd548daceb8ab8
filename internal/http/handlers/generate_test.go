package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type fakeStarter struct {
	started []string
}

func (f *fakeStarter) Start(recordID string) {
	f.started = append(f.started, recordID)
}

func newTestApp() (*App, *fakeStarter) {
	starter := &fakeStarter{}
	return NewApp(zerolog.New(io.Discard), starter), starter
}

func TestGenerateVideoAcknowledgesAndStartsLifecycle(t *testing.T) {
	app, starter := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/generate-video", strings.NewReader(`{"recordId":"rec123"}`))
	rec := httptest.NewRecorder()
	app.GenerateVideo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp generateVideoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.RecordID != "rec123" {
		t.Fatalf("ack mismatch: %#v", resp)
	}
	if resp.Message == "" {
		t.Fatalf("expected a message in the ack")
	}
	if len(starter.started) != 1 || starter.started[0] != "rec123" {
		t.Fatalf("lifecycle not started: %#v", starter.started)
	}
}

func TestGenerateVideoRejectsMissingRecordID(t *testing.T) {
	app, starter := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/generate-video", strings.NewReader(`{"recordId":"  "}`))
	rec := httptest.NewRecorder()
	app.GenerateVideo(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(starter.started) != 0 {
		t.Fatalf("lifecycle must not start without a record id")
	}
}

func TestGenerateVideoRejectsMalformedJSON(t *testing.T) {
	app, starter := newTestApp()

	req := httptest.NewRequest(http.MethodPost, "/api/generate-video", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()
	app.GenerateVideo(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(starter.started) != 0 {
		t.Fatalf("lifecycle must not start on malformed payload")
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	app.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body mismatch: %s", rec.Body.String())
	}
}
