package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/isdelr/teambuilder-be/internal/common"
	"github.com/isdelr/teambuilder-be/internal/database"
	"github.com/isdelr/teambuilder-be/internal/models"
)

// TeamServiceProvider defines the interface for the team repository.
type TeamServiceProvider interface {
	CreateTeam(ctx context.Context, ownerID int64, slots [models.TeamSize]models.Slot) (models.Team, error)
	ListTeamsByOwner(ctx context.Context, ownerID int64) ([]models.Team, error)
	GetTeamByID(ctx context.Context, id int64) (models.Team, error)
	DeleteTeam(ctx context.Context, id int64) error
}

// TeamService persists teams, each tagged with its owning user.
type TeamService struct {
	db *database.DB
}

// NewTeamService creates a new TeamService.
func NewTeamService(db *database.DB) *TeamService {
	return &TeamService{db: db}
}

const teamColumns = `id, user_id,
	pokemon1, pokemon1_url, pokemon2, pokemon2_url, pokemon3, pokemon3_url,
	pokemon4, pokemon4_url, pokemon5, pokemon5_url, pokemon6, pokemon6_url,
	created_at`

// scanTeam is a helper to scan a team from a row or rows object.
func scanTeam(scanner interface{ Scan(...any) error }) (models.Team, error) {
	var team models.Team
	dest := []any{&team.ID, &team.OwnerID}
	for i := range team.Slots {
		dest = append(dest, &team.Slots[i].Name, &team.Slots[i].ImageURL)
	}
	dest = append(dest, &team.CreatedAt)

	err := scanner.Scan(dest...)
	return team, err
}

// CreateTeam stores all six slots under ownerID in a single insert.
// Empty names and URLs are kept as-is; they mark unused slots.
func (s *TeamService) CreateTeam(ctx context.Context, ownerID int64, slots [models.TeamSize]models.Slot) (team models.Team, err error) {
	ctx, span := tracer.Start(ctx, "TeamService.CreateTeam")
	defer func() { endSpan(span, err) }()

	team = models.Team{OwnerID: ownerID, Slots: slots, CreatedAt: now()}
	args := []any{ownerID}
	for _, slot := range slots {
		args = append(args, slot.Name, slot.ImageURL)
	}
	args = append(args, team.CreatedAt)

	const query = `
		INSERT INTO pokemonteams (user_id,
			pokemon1, pokemon1_url, pokemon2, pokemon2_url, pokemon3, pokemon3_url,
			pokemon4, pokemon4_url, pokemon5, pokemon5_url, pokemon6, pokemon6_url,
			created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`

	err = s.db.QueryRowContext(ctx, s.db.Rebind(query), args...).Scan(&team.ID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.Team{}, oops.Code("TEAM_OWNER_NOT_FOUND").
				With("owner_id", ownerID).
				Wrap(common.ErrNotFound)
		}
		return models.Team{}, oops.Code("TEAM_CREATE_FAILED").
			With("owner_id", ownerID).
			Wrap(err)
	}
	return team, nil
}

// ListTeamsByOwner retrieves every team of a user in insertion order.
func (s *TeamService) ListTeamsByOwner(ctx context.Context, ownerID int64) (teams []models.Team, err error) {
	ctx, span := tracer.Start(ctx, "TeamService.ListTeamsByOwner")
	defer func() { endSpan(span, err) }()

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`SELECT `+teamColumns+` FROM pokemonteams WHERE user_id = ? ORDER BY id`), ownerID)
	if err != nil {
		return nil, oops.Code("TEAM_LIST_FAILED").With("owner_id", ownerID).Wrap(err)
	}
	defer rows.Close()

	teams = []models.Team{}
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, oops.Code("TEAM_LIST_FAILED").With("owner_id", ownerID).Wrap(err)
		}
		teams = append(teams, team)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TEAM_LIST_FAILED").With("owner_id", ownerID).Wrap(err)
	}
	return teams, nil
}

// GetTeamByID retrieves a single team by its ID.
func (s *TeamService) GetTeamByID(ctx context.Context, id int64) (team models.Team, err error) {
	ctx, span := tracer.Start(ctx, "TeamService.GetTeamByID")
	defer func() { endSpan(span, err) }()

	team, err = scanTeam(s.db.QueryRowContext(ctx, s.db.Rebind(`SELECT `+teamColumns+` FROM pokemonteams WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Team{}, oops.Code("TEAM_NOT_FOUND").With("team_id", id).Wrap(common.ErrNotFound)
		}
		return models.Team{}, oops.Code("TEAM_GET_FAILED").With("team_id", id).Wrap(err)
	}
	return team, nil
}

// DeleteTeam removes a team. Callers check ownership first.
func (s *TeamService) DeleteTeam(ctx context.Context, id int64) (err error) {
	ctx, span := tracer.Start(ctx, "TeamService.DeleteTeam")
	defer func() { endSpan(span, err) }()

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM pokemonteams WHERE id = ?`), id)
	if err != nil {
		return oops.Code("TEAM_DELETE_FAILED").With("team_id", id).Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return oops.Code("TEAM_DELETE_FAILED").With("team_id", id).Wrap(err)
	}
	if n == 0 {
		return oops.Code("TEAM_NOT_FOUND").With("team_id", id).Wrap(common.ErrNotFound)
	}
	return nil
}
