package main

import (
	"errors"
	"net/http"

	"nightmap/internal/moderation"
	"nightmap/internal/params"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// submitPOIPayload mirrors moderation.SubmitInput for the docs.
type submitPOIPayload = moderation.SubmitInput

func poiIDFromURL(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "poiID"))
	if err != nil {
		return uuid.Nil, errors.New("invalid poi ID")
	}
	return id, nil
}

// ListPOIs godoc
//
//	@Summary		List approved venues
//	@Description	Returns approved venues sorted by name. With lat and lng the result is limited to a radius (km) and sorted by distance.
//	@Tags			POIs
//	@Produce		json
//	@Param			category	query		string	false	"Category filter"
//	@Param			lat			query		number	false	"Latitude"
//	@Param			lng			query		number	false	"Longitude"
//	@Param			radius		query		number	false	"Radius in km (default 5, max 50)"
//	@Success		200			{object}	[]pois.POI
//	@Failure		400			{object}	error
//	@Failure		500			{object}	error
//	@Router			/pois [get]
func (app *application) listPOIsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	category, err := params.ParseCategory(q)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	nearby, err := params.ParseNearby(q)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if nearby != nil {
		out, err := app.catalog.Nearby(r.Context(), nearby.Latitude, nearby.Longitude, nearby.RadiusKm, category)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if err := app.jsonResponse(w, http.StatusOK, out); err != nil {
			app.internalServerError(w, r, err)
		}
		return
	}

	out, err := app.catalog.List(r.Context(), category)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, out); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetPOI godoc
//
//	@Summary		Get an approved venue
//	@Tags			POIs
//	@Produce		json
//	@Param			poiID	path		string	true	"POI ID"
//	@Success		200		{object}	pois.POI
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Router			/pois/{poiID} [get]
func (app *application) getPOIHandler(w http.ResponseWriter, r *http.Request) {
	id, err := poiIDFromURL(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p, err := app.catalog.Get(r.Context(), id)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}
	if err := app.jsonResponse(w, http.StatusOK, p); err != nil {
		app.internalServerError(w, r, err)
	}
}

// SubmitPOI godoc
//
//	@Summary		Propose a new venue
//	@Description	Creates a pending venue owned by the caller. It appears publicly once a moderator approves it.
//	@Tags			POIs
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		submitPOIPayload	true	"Venue"
//	@Success		201		{object}	pois.POI
//	@Failure		400		{object}	error
//	@Failure		401		{object}	error
//	@Failure		429		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/pois [post]
func (app *application) submitPOIHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("unauthorized request"))
		return
	}

	var payload submitPOIPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	p, err := app.moderation.Submit(r.Context(), user.ID, payload)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, p); err != nil {
		app.internalServerError(w, r, err)
	}
}
