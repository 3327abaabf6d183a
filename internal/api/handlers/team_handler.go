package handlers

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/isdelr/teambuilder-be/internal/auth"
	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/metrics"
	"github.com/isdelr/teambuilder-be/internal/models"
	"github.com/isdelr/teambuilder-be/internal/services"
)

//go:embed team_schema.json
var teamSchemaJSON []byte

// maxTeamBody caps the size of a posted team.
const maxTeamBody = 64 << 10

// teamView is a team as rendered on pages: six [name, imageUrl] pairs plus id.
type teamView struct {
	ID      int64       `json:"id"`
	Pokemon [][2]string `json:"pokemon"`
}

func newTeamView(t models.Team) teamView {
	return teamView{ID: t.ID, Pokemon: t.Pairs()}
}

// TeamHandler handles team creation and deletion.
type TeamHandler struct {
	responder
	service services.TeamServiceProvider
	schema  *jsonschema.Schema
	metrics *metrics.Metrics
}

// NewTeamHandler creates a new TeamHandler and compiles the team body schema.
func NewTeamHandler(service services.TeamServiceProvider, sessions *auth.Manager, m *metrics.Metrics) (*TeamHandler, error) {
	schema, err := compileTeamSchema()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &metrics.Metrics{}
	}
	return &TeamHandler{
		responder: responder{sessions: sessions},
		service:   service,
		schema:    schema,
		metrics:   m,
	}, nil
}

func compileTeamSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(teamSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse team schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource("team.json", doc); err != nil {
		return nil, fmt.Errorf("add team schema: %w", err)
	}
	schema, err := compiler.Compile("team.json")
	if err != nil {
		return nil, fmt.Errorf("compile team schema: %w", err)
	}
	return schema, nil
}

// decodeTeam parses and validates a posted team body into slots.
func (h *TeamHandler) decodeTeam(body io.Reader) ([models.TeamSize]models.Slot, error) {
	doc, err := jsonschema.UnmarshalJSON(body)
	if err != nil {
		return [models.TeamSize]models.Slot{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := h.schema.Validate(doc); err != nil {
		return [models.TeamSize]models.Slot{}, err
	}

	// Shape is guaranteed by the schema from here on.
	rows := doc.([]any)
	pairs := make([][2]string, len(rows))
	for i, row := range rows {
		for j, v := range row.([]any) {
			if s, ok := v.(string); ok {
				pairs[i][j] = s
			}
		}
	}
	return models.SlotsFromPairs(pairs)
}

// NewTeamForm renders the team builder page.
func (h *TeamHandler) NewTeamForm(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := auth.RequireAuthenticated(id.User); err != nil {
		h.denied(w, r, id, err)
		return
	}
	h.render(w, r, id, http.StatusOK, "newteam", nil)
}

// Create stores a posted team for the current user.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := auth.RequireAuthenticated(id.User); err != nil {
		metrics.Record(h.metrics.TeamsCreated, metrics.ResultDenied)
		h.denied(w, r, id, err)
		return
	}

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		metrics.Record(h.metrics.TeamsCreated, metrics.ResultInvalid)
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	slots, err := h.decodeTeam(http.MaxBytesReader(w, r.Body, maxTeamBody))
	if err != nil {
		metrics.Record(h.metrics.TeamsCreated, metrics.ResultInvalid)
		log.Debug().Err(err).Int64("user_id", id.User.ID).Msg("Rejected team body")
		h.render(w, r, id, http.StatusBadRequest, "newteam", view{"errors": []string{err.Error()}})
		return
	}

	team, err := h.service.CreateTeam(r.Context(), id.User.ID, slots)
	switch {
	case errors.Is(err, common.ErrNotFound):
		// The owner vanished between session resolution and insert.
		metrics.Record(h.metrics.TeamsCreated, metrics.ResultNotFound)
		h.sessions.Logout(id.Session)
		h.flashRedirect(w, r, id, "Must be logged in", "/")
		return
	case err != nil:
		metrics.Record(h.metrics.TeamsCreated, metrics.ResultError)
		h.serverError(w, r, err, "Failed to create team")
		return
	}

	metrics.Record(h.metrics.TeamsCreated, metrics.ResultSuccess)
	log.Info().Int64("user_id", id.User.ID).Int64("team_id", team.ID).Msg("Team created")
	h.render(w, r, id, http.StatusCreated, "team", view{"team": newTeamView(team)})
}

// Delete removes a team owned by the current user.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	teamID, ok := pathID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := auth.RequireAuthenticated(id.User); err != nil {
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultDenied)
		h.denied(w, r, id, err)
		return
	}

	team, err := h.service.GetTeamByID(r.Context(), teamID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultNotFound)
		http.NotFound(w, r)
		return
	case err != nil:
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultError)
		h.serverError(w, r, err, "Failed to load team")
		return
	}

	if err := auth.RequireOwner(id.User, team.OwnerID); err != nil {
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultDenied)
		log.Warn().Int64("user_id", id.User.ID).Int64("team_id", teamID).Msg("Refused to delete team of another user")
		h.denied(w, r, id, err)
		return
	}

	err = h.service.DeleteTeam(r.Context(), teamID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultNotFound)
		http.NotFound(w, r)
		return
	case err != nil:
		metrics.Record(h.metrics.TeamsDeleted, metrics.ResultError)
		h.serverError(w, r, err, "Failed to delete team")
		return
	}

	metrics.Record(h.metrics.TeamsDeleted, metrics.ResultSuccess)
	h.redirect(w, r, id, fmt.Sprintf("/user/%d", id.User.ID))
}
