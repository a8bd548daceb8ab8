package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
)

// ErrMissingAirtableAuth indicates the client was configured without credentials.
var ErrMissingAirtableAuth = errors.New("airtable: api key and base id are required")

// AirtableOptions configures the Airtable record store client.
type AirtableOptions struct {
	APIKey         string
	BaseID         string
	Table          string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Airtable implements RecordStore against the Airtable REST API.
type Airtable struct {
	apiKey     string
	recordURL  string
	httpClient *http.Client
	logger     *infra.Logger
}

type airtableRecord struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type airtableError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAirtable constructs an Airtable client with sane defaults.
func NewAirtable(opts AirtableOptions) (*Airtable, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	baseID := strings.TrimSpace(opts.BaseID)
	if apiKey == "" || baseID == "" {
		return nil, ErrMissingAirtableAuth
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "Video Requests"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Airtable{
		apiKey:     apiKey,
		recordURL:  baseURL + "/" + baseID + "/" + url.PathEscape(table),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Fetch reads one record and extracts the generation inputs.
func (a *Airtable) Fetch(ctx context.Context, recordID string) (*domain.RecordFields, error) {
	raw, err := a.do(ctx, http.MethodGet, recordID, nil)
	if err != nil {
		return nil, err
	}
	var rec airtableRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("airtable: decode record: %w", err)
	}
	return decodeFields(rec.Fields), nil
}

// Update merge-patches lifecycle fields into the record.
func (a *Airtable) Update(ctx context.Context, recordID string, patch domain.RecordPatch) error {
	body, err := json.Marshal(map[string]any{"fields": patch})
	if err != nil {
		return fmt.Errorf("airtable: encode patch: %w", err)
	}
	if _, err := a.do(ctx, http.MethodPatch, recordID, body); err != nil {
		return err
	}
	a.logger.Debug().Str("record_id", recordID).Msg("airtable: record patched")
	return nil
}

func (a *Airtable) do(ctx context.Context, method, recordID string, body []byte) ([]byte, error) {
	endpoint := a.recordURL + "/" + url.PathEscape(recordID)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airtable: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("airtable: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("airtable: record %s: %w", recordID, domain.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		var detail airtableError
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			return nil, fmt.Errorf("airtable: %s (%s)", detail.Error.Message, detail.Error.Type)
		}
		return nil, fmt.Errorf("airtable: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// decodeFields maps the loosely typed Airtable field payload onto the
// lifecycle's input model. Missing or mistyped fields are left zero-valued;
// the lifecycle owns required-field validation.
func decodeFields(fields map[string]any) *domain.RecordFields {
	out := &domain.RecordFields{}
	if fields == nil {
		return out
	}
	if items, ok := fields[domain.FieldInputImage].([]any); ok {
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			att := domain.Attachment{}
			if v, ok := obj["url"].(string); ok {
				att.URL = v
			}
			if v, ok := obj["filename"].(string); ok {
				att.Filename = v
			}
			if att.URL != "" {
				out.InputImage = append(out.InputImage, att)
			}
		}
	}
	if v, ok := fields[domain.FieldCustomPrompt].(string); ok {
		out.CustomPrompt = strings.TrimSpace(v)
	}
	if v, ok := fields[domain.FieldPresetPrompt].(string); ok {
		out.PresetPrompt = strings.TrimSpace(v)
	}
	if v, ok := fields[domain.FieldDuration].(float64); ok {
		out.Duration = int(v)
	}
	if v, ok := fields[domain.FieldAspectRatio].(string); ok {
		out.AspectRatio = strings.TrimSpace(v)
	}
	return out
}

var _ RecordStore = (*Airtable)(nil)
