package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/teambuilder-be/internal/auth"
	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/metrics"
	"github.com/isdelr/teambuilder-be/internal/services"
)

// UserHandler handles signup, login and account management.
type UserHandler struct {
	responder
	users   services.UserServiceProvider
	teams   services.TeamServiceProvider
	metrics *metrics.Metrics
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users services.UserServiceProvider, teams services.TeamServiceProvider, sessions *auth.Manager, m *metrics.Metrics) *UserHandler {
	if m == nil {
		m = &metrics.Metrics{}
	}
	return &UserHandler{
		responder: responder{sessions: sessions},
		users:     users,
		teams:     teams,
		metrics:   m,
	}
}

// SignupForm renders the empty signup form.
func (h *UserHandler) SignupForm(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	h.render(w, r, id, http.StatusOK, "signup", view{"errors": fieldErrors{}})
}

// Signup creates an account and logs it in.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	form, fe, err := parseCredentialsForm(r)
	if err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	if fe.invalid() {
		metrics.Record(h.metrics.Signups, metrics.ResultInvalid)
		h.render(w, r, id, http.StatusBadRequest, "signup", view{"form": form, "errors": fe})
		return
	}

	user, err := h.users.CreateUser(r.Context(), form.Username, form.Password)
	switch {
	case errors.Is(err, common.ErrDuplicateUsername):
		metrics.Record(h.metrics.Signups, metrics.ResultDuplicate)
		h.flashRedirect(w, r, id, "Username already registered", "/signup")
		return
	case errors.Is(err, common.ErrValidation):
		metrics.Record(h.metrics.Signups, metrics.ResultInvalid)
		fe.add("password", "Password is too long.")
		h.render(w, r, id, http.StatusBadRequest, "signup", view{"form": form, "errors": fe})
		return
	case err != nil:
		metrics.Record(h.metrics.Signups, metrics.ResultError)
		h.serverError(w, r, err, "Failed to register user")
		return
	}

	metrics.Record(h.metrics.Signups, metrics.ResultSuccess)
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	h.sessions.Login(id.Session, user)
	h.redirect(w, r, id, "/")
}

// LoginForm renders the empty login form.
func (h *UserHandler) LoginForm(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	h.render(w, r, id, http.StatusOK, "login", view{"errors": fieldErrors{}})
}

// Login checks credentials and binds the session on success.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	form, fe, err := parseCredentialsForm(r)
	if err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	if fe.invalid() {
		metrics.Record(h.metrics.Logins, metrics.ResultInvalid)
		h.render(w, r, id, http.StatusBadRequest, "login", view{"form": form, "errors": fe})
		return
	}

	user, err := h.users.VerifyCredentials(r.Context(), form.Username, form.Password)
	if err != nil {
		metrics.Record(h.metrics.Logins, metrics.ResultError)
		h.serverError(w, r, err, "Failed to verify credentials")
		return
	}
	if user == nil {
		metrics.Record(h.metrics.Logins, metrics.ResultBadPassword)
		log.Warn().Str("username", form.Username).Msg("Failed authentication attempt")
		h.flashRedirect(w, r, id, "Incorrect credentials", "/login")
		return
	}

	metrics.Record(h.metrics.Logins, metrics.ResultSuccess)
	h.sessions.Login(id.Session, *user)
	h.redirect(w, r, id, "/")
}

// Logout clears the session binding.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if id.User == nil {
		h.flashRedirect(w, r, id, "No user logged in", "/")
		return
	}

	h.sessions.Logout(id.Session)
	h.flashRedirect(w, r, id, "Logged out user "+id.User.Username, "/")
}

// Profile shows the owner's account and teams.
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := auth.RequireOwner(id.User, userID); err != nil {
		h.denied(w, r, id, err)
		return
	}

	teams, err := h.teams.ListTeamsByOwner(r.Context(), userID)
	if err != nil {
		h.serverError(w, r, err, "Failed to list teams")
		return
	}

	views := make([]teamView, 0, len(teams))
	for _, t := range teams {
		views = append(views, newTeamView(t))
	}
	h.render(w, r, id, http.StatusOK, "profile", view{"teams": views})
}

// ChangePasswordForm renders the empty change-password form.
func (h *UserHandler) ChangePasswordForm(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := auth.RequireOwner(id.User, userID); err != nil {
		h.denied(w, r, id, err)
		return
	}
	h.render(w, r, id, http.StatusOK, "changepassword", view{"errors": fieldErrors{}})
}

// ChangePassword replaces the owner's password after re-checking the old one.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := auth.RequireOwner(id.User, userID); err != nil {
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultDenied)
		h.denied(w, r, id, err)
		return
	}

	form, fe, err := parseChangePasswordForm(r)
	if err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	if fe.invalid() {
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultInvalid)
		h.render(w, r, id, http.StatusBadRequest, "changepassword", view{"errors": fe})
		return
	}

	back := fmt.Sprintf("/user/%d/changepassword", userID)

	verified, err := h.users.VerifyCredentials(r.Context(), id.User.Username, form.OldPassword)
	if err != nil {
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultError)
		h.serverError(w, r, err, "Failed to verify credentials")
		return
	}
	if verified == nil {
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultBadPassword)
		h.flashRedirect(w, r, id, "Old password is incorrect", back)
		return
	}
	if form.NewPassword1 != form.NewPassword2 {
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultInvalid)
		h.flashRedirect(w, r, id, "New passwords must match", back)
		return
	}

	err = h.users.ChangePassword(r.Context(), userID, form.NewPassword1)
	switch {
	case errors.Is(err, common.ErrNotFound):
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultNotFound)
		http.NotFound(w, r)
		return
	case errors.Is(err, common.ErrValidation):
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultInvalid)
		fe.add("newPassword1", "Password is too long.")
		h.render(w, r, id, http.StatusBadRequest, "changepassword", view{"errors": fe})
		return
	case err != nil:
		metrics.Record(h.metrics.PasswordChanges, metrics.ResultError)
		h.serverError(w, r, err, "Failed to change password")
		return
	}

	metrics.Record(h.metrics.PasswordChanges, metrics.ResultSuccess)
	log.Info().Int64("user_id", userID).Msg("Password changed")
	h.flashRedirect(w, r, id, "Password changed", fmt.Sprintf("/user/%d", userID))
}

// Delete removes the owner's account, its teams, and the session binding.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := auth.RequireOwner(id.User, userID); err != nil {
		metrics.Record(h.metrics.AccountsDeleted, metrics.ResultDenied)
		h.denied(w, r, id, err)
		return
	}

	err := h.users.DeleteUser(r.Context(), userID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		metrics.Record(h.metrics.AccountsDeleted, metrics.ResultNotFound)
		http.NotFound(w, r)
		return
	case err != nil:
		metrics.Record(h.metrics.AccountsDeleted, metrics.ResultError)
		h.serverError(w, r, err, "Failed to delete user")
		return
	}

	metrics.Record(h.metrics.AccountsDeleted, metrics.ResultSuccess)
	log.Info().Int64("user_id", userID).Msg("User deleted")
	h.sessions.Logout(id.Session)
	h.flashRedirect(w, r, id, "Account deleted", "/")
}
