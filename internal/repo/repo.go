package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"templegames/internal/model"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrDuplicateTeam     = errors.New("team already registered for this event")
	ErrDuplicateMember   = errors.New("duplicate team member")
	ErrMemberWrongTemple = errors.New("member belongs to a different temple")
	ErrTeamTooLarge      = errors.New("team exceeds event size")
)

type Repository interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByAadhar(ctx context.Context, aadhar string) (*model.User, error)
	GetUsersByTemple(ctx context.Context, templeID int64) ([]model.User, error)
	GetTempleAdmin(ctx context.Context, templeID int64) (*model.User, error)
	GetTeamEvents(ctx context.Context) ([]model.TeamEvent, error)
	GetTeamEventByID(ctx context.Context, id int64) (*model.TeamEvent, error)
	GetTeamByID(ctx context.Context, id int64) (*model.Team, error)
	GetTeamsByTemple(ctx context.Context, templeID int64) ([]model.Team, error)
	CreateTeamTx(ctx context.Context, templeID, eventID int64, memberIDs []int64) (int64, error)
	UpdateTeamMembersTx(ctx context.Context, teamID, templeID int64, memberIDs []int64) error
	GetLeaderboard(ctx context.Context) ([]model.Temple, error)
	LogAction(ctx context.Context, actorID int64, action, details string)
	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

type repository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &repository{db: db, log: log}, nil
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}

	for _, file := range files {
		sqlBytes, err := ioutil.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

func (r *repository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	query := `
		INSERT INTO users (temple_id, first_name, last_name, email, aadhar_number, gender, role, pass_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		u.TempleID, u.FirstName, u.LastName, u.Email, u.AadharNumber, u.Gender, u.Role, u.PassHash,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user: %w", err)
	}
	return id, nil
}

const userColumns = `id, temple_id, first_name, last_name, email, aadhar_number, gender, role, pass_hash, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.TempleID, &u.FirstName, &u.LastName, &u.Email,
		&u.AadharNumber, &u.Gender, &u.Role, &u.PassHash, &u.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *repository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *repository) GetUserByAadhar(ctx context.Context, aadhar string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE aadhar_number = $1`, aadhar)
	u, err := scanUser(row)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *repository) GetUsersByTemple(ctx context.Context, templeID int64) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE temple_id = $1 ORDER BY first_name ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, templeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get temple users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, nil
}

func (r *repository) GetTempleAdmin(ctx context.Context, templeID int64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE temple_id = $1 AND role = $2 ORDER BY id ASC LIMIT 1`,
		templeID, model.RoleTempleAdmin)
	u, err := scanUser(row)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (r *repository) GetTeamEvents(ctx context.Context) ([]model.TeamEvent, error) {
	query := `
		SELECT te.id, te.event_type_id, et.name, te.gender, te.team_size
		FROM team_events te
		JOIN event_types et ON et.id = te.event_type_id
		ORDER BY et.name ASC, te.gender ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get team events: %w", err)
	}
	defer rows.Close()

	var events []model.TeamEvent
	for rows.Next() {
		var e model.TeamEvent
		if err := rows.Scan(&e.ID, &e.EventTypeID, &e.EventTypeName, &e.Gender, &e.TeamSize); err != nil {
			return nil, fmt.Errorf("failed to scan team event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *repository) GetTeamEventByID(ctx context.Context, id int64) (*model.TeamEvent, error) {
	query := `
		SELECT te.id, te.event_type_id, et.name, te.gender, te.team_size
		FROM team_events te
		JOIN event_types et ON et.id = te.event_type_id
		WHERE te.id = $1
	`

	var e model.TeamEvent
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.EventTypeID, &e.EventTypeName, &e.Gender, &e.TeamSize,
	)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (r *repository) GetTeamByID(ctx context.Context, id int64) (*model.Team, error) {
	var t model.Team
	err := r.db.QueryRowContext(ctx,
		`SELECT id, temple_id, event_id, created_at, updated_at FROM teams WHERE id = $1`, id,
	).Scan(&t.ID, &t.TempleID, &t.EventID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, ErrTeamNotFound
	}

	members, err := r.teamMembers(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Members = members
	return &t, nil
}

func (r *repository) GetTeamsByTemple(ctx context.Context, templeID int64) ([]model.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, temple_id, event_id, created_at, updated_at
		 FROM teams WHERE temple_id = $1 ORDER BY id ASC`, templeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get temple teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.TempleID, &t.EventID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}

	for i := range teams {
		members, err := r.teamMembers(ctx, teams[i].ID)
		if err != nil {
			return nil, err
		}
		teams[i].Members = members
	}
	return teams, nil
}

// teamMembers returns members in their submitted slot order.
func (r *repository) teamMembers(ctx context.Context, teamID int64) ([]model.User, error) {
	query := `
		SELECT u.id, u.temple_id, u.first_name, u.last_name, u.email,
		       u.aadhar_number, u.gender, u.role, u.pass_hash, u.created_at
		FROM team_members tm
		JOIN users u ON u.id = tm.user_id
		WHERE tm.team_id = $1
		ORDER BY tm.position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team members: %w", err)
	}
	defer rows.Close()

	var members []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team member: %w", err)
		}
		members = append(members, *u)
	}
	return members, nil
}

func (r *repository) CreateTeamTx(ctx context.Context, templeID, eventID int64, memberIDs []int64) (int64, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var teamSize int
	err = tx.QueryRowContext(ctx, `
		SELECT team_size
		FROM team_events
		WHERE id = $1
		FOR UPDATE
	`, eventID).Scan(&teamSize)
	if err != nil {
		_ = tx.Rollback()
		return 0, ErrEventNotFound
	}

	if err := validateRoster(ctx, tx, templeID, teamSize, memberIDs); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	var existing int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM teams
		WHERE temple_id = $1 AND event_id = $2
	`, templeID, eventID).Scan(&existing)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to check existing team: %w", err)
	}
	if existing > 0 {
		_ = tx.Rollback()
		return 0, ErrDuplicateTeam
	}

	var teamID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO teams (temple_id, event_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id
	`, templeID, eventID).Scan(&teamID)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to create team: %w", err)
	}

	if err := insertMembers(ctx, tx, teamID, memberIDs); err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return teamID, nil
}

func (r *repository) UpdateTeamMembersTx(ctx context.Context, teamID, templeID int64, memberIDs []int64) error {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	var eventID int64
	err = tx.QueryRowContext(ctx, `
		SELECT event_id
		FROM teams
		WHERE id = $1 AND temple_id = $2
		FOR UPDATE
	`, teamID, templeID).Scan(&eventID)
	if err != nil {
		_ = tx.Rollback()
		return ErrTeamNotFound
	}

	var teamSize int
	if err := tx.QueryRowContext(ctx,
		`SELECT team_size FROM team_events WHERE id = $1`, eventID,
	).Scan(&teamSize); err != nil {
		_ = tx.Rollback()
		return ErrEventNotFound
	}

	if err := validateRoster(ctx, tx, templeID, teamSize, memberIDs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM team_members WHERE team_id = $1`, teamID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear team members: %w", err)
	}

	if err := insertMembers(ctx, tx, teamID, memberIDs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE teams SET updated_at = NOW() WHERE id = $1`, teamID,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to touch team: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func validateRoster(ctx context.Context, tx *sql.Tx, templeID int64, teamSize int, memberIDs []int64) error {
	if len(memberIDs) > teamSize {
		return ErrTeamTooLarge
	}

	seen := make(map[int64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			return ErrDuplicateMember
		}
		seen[id] = struct{}{}

		var memberTemple int64
		if err := tx.QueryRowContext(ctx,
			`SELECT temple_id FROM users WHERE id = $1`, id,
		).Scan(&memberTemple); err != nil {
			return ErrUserNotFound
		}
		if memberTemple != templeID {
			return ErrMemberWrongTemple
		}
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, teamID int64, memberIDs []int64) error {
	for pos, id := range memberIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO team_members (team_id, user_id, position)
			VALUES ($1, $2, $3)
		`, teamID, id, pos); err != nil {
			return fmt.Errorf("failed to insert team member: %w", err)
		}
	}
	return nil
}

func (r *repository) GetLeaderboard(ctx context.Context) ([]model.Temple, error) {
	query := `
		SELECT id, name, city, points, created_at
		FROM temples
		ORDER BY points DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var temples []model.Temple
	for rows.Next() {
		var t model.Temple
		if err := rows.Scan(&t.ID, &t.Name, &t.City, &t.Points, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan temple: %w", err)
		}
		temples = append(temples, t)
	}
	return temples, nil
}

// LogAction is best effort, audit failures never fail the request.
func (r *repository) LogAction(ctx context.Context, actorID int64, action, details string) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (actor_id, action, details) VALUES ($1, $2, $3)`,
		actorID, action, details,
	); err != nil {
		r.log.Warn().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}
