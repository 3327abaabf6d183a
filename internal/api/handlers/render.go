package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/teambuilder-be/internal/auth"
	"github.com/isdelr/teambuilder-be/internal/common"
)

// view is the JSON document rendered for a page.
type view map[string]any

// responder writes pages and redirects, saving the session first so its
// cookie goes out with the headers.
type responder struct {
	sessions *auth.Manager
}

// render writes page as a JSON view of the requester, pending flashes and data.
func (rs responder) render(w http.ResponseWriter, r *http.Request, id auth.Identity, status int, page string, data view) {
	v := view{
		"page":    page,
		"user":    id.User,
		"flashes": id.Session.Flashes(),
	}
	for k, val := range data {
		v[k] = val
	}

	if err := rs.sessions.Save(w, id.Session); err != nil {
		rs.serverError(w, r, err, "Failed to save session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Str("page", page).Msg("Failed to encode view")
	}
}

// redirect sends a 303 to url.
func (rs responder) redirect(w http.ResponseWriter, r *http.Request, id auth.Identity, url string) {
	if err := rs.sessions.Save(w, id.Session); err != nil {
		rs.serverError(w, r, err, "Failed to save session")
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// flashRedirect queues msg and redirects to url.
func (rs responder) flashRedirect(w http.ResponseWriter, r *http.Request, id auth.Identity, msg, url string) {
	id.Session.AddFlash(msg)
	rs.redirect(w, r, id, url)
}

// denied handles a guard failure: flash and back to the home page.
func (rs responder) denied(w http.ResponseWriter, r *http.Request, id auth.Identity, err error) {
	msg := "Must be logged in"
	if errors.Is(err, common.ErrForbidden) && id.User != nil {
		msg = "You do not have access to that page"
	}
	rs.flashRedirect(w, r, id, msg, "/")
}

func (rs responder) serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log.Error().Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// pathID reads a positive numeric URL parameter. ok is false when it is
// missing or out of range.
func pathID(r *http.Request, key string) (int64, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, key), 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}
