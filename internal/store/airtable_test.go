package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"server/internal/domain"
)

type stubTransport struct {
	responses map[string]stubResponse
	lastBody  []byte
	lastAuth  string
}

type stubResponse struct {
	status int
	body   []byte
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.lastAuth = req.Header.Get("Authorization")
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		s.lastBody = body
	}
	key := req.Method + " " + req.URL.EscapedPath()
	stub, ok := s.responses[key]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader(`{"error":{"type":"NOT_FOUND","message":"record missing"}}`)),
		}, nil
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(string(stub.body))),
	}, nil
}

func (s *stubTransport) set(method, path string, status int, payload any) {
	if s.responses == nil {
		s.responses = map[string]stubResponse{}
	}
	body, _ := json.Marshal(payload)
	s.responses[method+" "+path] = stubResponse{status: status, body: body}
}

func newTestAirtable(t *testing.T, transport *stubTransport) *Airtable {
	t.Helper()
	client, err := NewAirtable(AirtableOptions{
		APIKey:     "key-test",
		BaseID:     "appBase",
		Table:      "Video Requests",
		BaseURL:    "https://airtable.test",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new airtable: %v", err)
	}
	return client
}

func TestAirtableFetchDecodesFields(t *testing.T) {
	transport := &stubTransport{}
	transport.set(http.MethodGet, "/appBase/Video%20Requests/rec123", http.StatusOK, map[string]any{
		"id": "rec123",
		"fields": map[string]any{
			"input_image":   []any{map[string]any{"url": "https://cdn.example.com/in.png", "filename": "in.png"}},
			"custom_prompt": "  a sweeping drone shot  ",
			"duration":      float64(10),
			"aspect_ratio":  "16:9",
		},
	})
	client := newTestAirtable(t, transport)

	fields, err := client.Fetch(context.Background(), "rec123")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(fields.InputImage) != 1 || fields.InputImage[0].URL != "https://cdn.example.com/in.png" {
		t.Fatalf("input image mismatch: %#v", fields.InputImage)
	}
	if fields.CustomPrompt != "a sweeping drone shot" {
		t.Fatalf("custom prompt mismatch: %q", fields.CustomPrompt)
	}
	if fields.Prompt() != "a sweeping drone shot" {
		t.Fatalf("prompt resolution mismatch: %q", fields.Prompt())
	}
	if fields.Duration != 10 {
		t.Fatalf("duration mismatch: %d", fields.Duration)
	}
	if fields.AspectRatio != "16:9" {
		t.Fatalf("aspect ratio mismatch: %q", fields.AspectRatio)
	}
	if transport.lastAuth != "Bearer key-test" {
		t.Fatalf("auth header mismatch: %q", transport.lastAuth)
	}
}

func TestAirtableFetchPresetFallback(t *testing.T) {
	transport := &stubTransport{}
	transport.set(http.MethodGet, "/appBase/Video%20Requests/rec9", http.StatusOK, map[string]any{
		"id":     "rec9",
		"fields": map[string]any{"preset_prompt": "cinematic pan"},
	})
	client := newTestAirtable(t, transport)

	fields, err := client.Fetch(context.Background(), "rec9")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if fields.Prompt() != "cinematic pan" {
		t.Fatalf("prompt resolution mismatch: %q", fields.Prompt())
	}
}

func TestAirtableFetchNotFound(t *testing.T) {
	client := newTestAirtable(t, &stubTransport{})

	_, err := client.Fetch(context.Background(), "recMissing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAirtableUpdateSendsPatch(t *testing.T) {
	transport := &stubTransport{}
	transport.set(http.MethodPatch, "/appBase/Video%20Requests/rec123", http.StatusOK, map[string]any{"id": "rec123"})
	client := newTestAirtable(t, transport)

	patch := domain.RecordPatch{
		domain.FieldStatus:   domain.StatusGenerating,
		domain.FieldErrorLog: "Submitting job to Kling API...",
	}
	if err := client.Update(context.Background(), "rec123", patch); err != nil {
		t.Fatalf("update: %v", err)
	}

	var sent struct {
		Fields map[string]any `json:"fields"`
	}
	if err := json.Unmarshal(transport.lastBody, &sent); err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if sent.Fields["status"] != "Generating" {
		t.Fatalf("status mismatch: %#v", sent.Fields)
	}
	if sent.Fields["error_log"] != "Submitting job to Kling API..." {
		t.Fatalf("error_log mismatch: %#v", sent.Fields)
	}
}

func TestAirtableUpdateSurfacesAPIError(t *testing.T) {
	transport := &stubTransport{}
	transport.set(http.MethodPatch, "/appBase/Video%20Requests/rec123", http.StatusUnprocessableEntity, map[string]any{
		"error": map[string]any{"type": "INVALID_VALUE", "message": "unknown field"},
	})
	client := newTestAirtable(t, transport)

	err := client.Update(context.Background(), "rec123", domain.RecordPatch{domain.FieldStatus: domain.StatusFailed})
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("expected api error message, got %v", err)
	}
}

func TestNewAirtableRequiresCredentials(t *testing.T) {
	if _, err := NewAirtable(AirtableOptions{BaseID: "appBase"}); !errors.Is(err, ErrMissingAirtableAuth) {
		t.Fatalf("expected ErrMissingAirtableAuth, got %v", err)
	}
}
