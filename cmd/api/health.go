package main

import (
	"net/http"
	"time"
)

// HealthCheck godoc
//
//	@Summary		Healthcheck
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		500	{object}	error
//	@Security		BasicAuth
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	total, err := app.store.POIs.Count(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	data := map[string]any{
		"status":  "ok",
		"env":     app.config.env,
		"version": version,
		"pois":    total,
	}
	if s, ok := app.syncer.Last(); ok {
		data["last_sync"] = s.StartedAt.Format(time.RFC3339)
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
