package main

import (
	"net/http"

	"nightmap/internal/domain/pois"
	"nightmap/internal/params"
)

type pendingPOIsResponse struct {
	Items      []pois.POI        `json:"items"`
	Pagination params.Pagination `json:"pagination"`
}

type rejectPOIPayload struct {
	Reason string `json:"reason"`
}

// AdminListPendingPOIs godoc
//
//	@Summary		List pending submissions
//	@Description	Newest first. Requires the moderator or admin role.
//	@Tags			Admin POIs
//	@Produce		json
//	@Param			page	query		int	false	"Page (default 1)"
//	@Param			limit	query		int	false	"Page size (default 20, max 100)"
//	@Success		200		{object}	pendingPOIsResponse
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/pois/pending [get]
func (app *application) listPendingPOIsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	p := params.ParsePagination(r.URL.Query())

	items, total, err := app.moderation.ListPending(r.Context(), user.ID, p.Limit, p.Offset)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	p.ComputeMeta(total)
	if items == nil {
		items = []pois.POI{}
	}

	if err := app.jsonResponse(w, http.StatusOK, pendingPOIsResponse{Items: items, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// AdminApprovePOI godoc
//
//	@Summary		Approve a pending submission
//	@Tags			Admin POIs
//	@Produce		json
//	@Param			poiID	path		string	true	"POI ID"
//	@Success		200		{object}	pois.POI
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error	"Not pending"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/pois/{poiID}/approve [post]
func (app *application) approvePOIHandler(w http.ResponseWriter, r *http.Request) {
	id, err := poiIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	admin := getUserFromContext(r)

	p, err := app.moderation.Approve(r.Context(), id, admin.ID)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}

// AdminRejectPOI godoc
//
//	@Summary		Reject a pending submission
//	@Description	The reason is required and shown to the submitter.
//	@Tags			Admin POIs
//	@Accept			json
//	@Produce		json
//	@Param			poiID	path		string				true	"POI ID"
//	@Param			payload	body		rejectPOIPayload	true	"Rejection reason"
//	@Success		200		{object}	pois.POI
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error	"Not pending"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/pois/{poiID}/reject [post]
func (app *application) rejectPOIHandler(w http.ResponseWriter, r *http.Request) {
	id, err := poiIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload rejectPOIPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	admin := getUserFromContext(r)

	p, err := app.moderation.Reject(r.Context(), id, admin.ID, payload.Reason)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}
