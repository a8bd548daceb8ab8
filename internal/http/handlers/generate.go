package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

type generateVideoRequest struct {
	RecordID string `json:"recordId"`
}

type generateVideoResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RecordID string `json:"recordId"`
}

// GenerateVideo accepts a record id, spawns the detached generation
// lifecycle, and acknowledges immediately. The caller never receives the
// outcome; it lands in the record store.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	recordID := strings.TrimSpace(req.RecordID)
	if recordID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "recordId is required")
		return
	}

	a.Runner.Start(recordID)
	a.Logger.Info().Str("record_id", recordID).Msg("generation lifecycle started")

	a.json(w, http.StatusOK, generateVideoResponse{
		Success:  true,
		Message:  "Video generation started",
		RecordID: recordID,
	})
}
