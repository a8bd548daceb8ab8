package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/infra"
)

// LifecycleStarter launches a detached generation lifecycle for a record.
// *videogen.Runner satisfies it.
type LifecycleStarter interface {
	Start(recordID string)
}

// App carries the dependencies shared by the HTTP handlers.
type App struct {
	Logger infra.Logger
	Runner LifecycleStarter
}

func NewApp(logger infra.Logger, runner LifecycleStarter) *App {
	return &App{Logger: logger, Runner: runner}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
