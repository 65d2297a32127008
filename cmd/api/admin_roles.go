package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"nightmap/internal/domain/accesscontrol"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type assignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin moderator user"`
}

// AdminAssignUserRole godoc
//
//	@Summary		Set a user's role
//	@Description	Replaces the role on the user's profile. Admins cannot demote themselves.
//	@Tags			Admin Roles
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string				true	"User ID"
//	@Param			body	body		assignRoleRequest	true	"Role assignment payload"
//	@Success		200		{object}	map[string]string	"Role assigned successfully"
//	@Failure		400		{object}	error				"Bad Request"
//	@Failure		403		{object}	error				"Forbidden"
//	@Failure		404		{object}	error				"Profile not found"
//	@Failure		500		{object}	error				"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/admin/users/{userID}/role [put]
func (app *application) adminAssignUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid userID"))
		return
	}

	var in assignRoleRequest
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	role, err := accesscontrol.ParseRole(in.Role)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	admin := getUserFromContext(r)
	if admin.ID == userID && role != accesscontrol.RoleAdmin {
		app.badRequestResponse(w, r, fmt.Errorf("admins cannot demote themselves"))
		return
	}

	if err := app.store.AccessControl.SetRole(ctx, userID, role); err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("role assigned", "user_id", userID, "role", role, "by", admin.ID)
	app.jsonResponse(w, http.StatusOK, map[string]string{
		"message": "role assigned",
	})
}
