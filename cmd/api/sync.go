package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"nightmap/internal/sources"
	"nightmap/internal/syncer"
)

type triggerSyncPayload struct {
	Location string `json:"location" validate:"omitempty,max=120"`
	Keyword  string `json:"keyword" validate:"omitempty,max=60"`
}

// AdminTriggerSync godoc
//
//	@Summary		Run a sync cycle now
//	@Description	Fetches every provider, deduplicates and upserts. Blocks until the cycle finishes. Body is optional; location and keyword default to the configured values.
//	@Tags			Admin Sync
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		triggerSyncPayload	false	"Location query"
//	@Success		200		{object}	syncer.Summary
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		409		{object}	error	"A sync is already running"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/sync [post]
func (app *application) triggerSyncHandler(w http.ResponseWriter, r *http.Request) {
	var payload triggerSyncPayload
	if err := readJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	q := sources.Query{
		Location: strings.TrimSpace(payload.Location),
		Keyword:  strings.TrimSpace(payload.Keyword),
	}
	if q.Location == "" {
		q.Location = app.config.sync.location
	}
	if q.Keyword == "" {
		q.Keyword = app.config.sync.keyword
	}

	summary, err := app.syncer.RunSync(r.Context(), q)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			app.conflictResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, summary); err != nil {
		app.internalServerError(w, r, err)
	}
}

// AdminLastSync godoc
//
//	@Summary		Summary of the last completed sync cycle
//	@Tags			Admin Sync
//	@Produce		json
//	@Success		200	{object}	syncer.Summary
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/sync/last [get]
func (app *application) lastSyncHandler(w http.ResponseWriter, r *http.Request) {
	summary, ok := app.syncer.Last()
	if !ok {
		app.notFoundResponse(w, r, errors.New("no sync has completed yet"))
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, summary); err != nil {
		app.internalServerError(w, r, err)
	}
}
