package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
	"social-chat/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository abstracts the user directory.
type ProfileRepository interface {
	CreateIfMissing(ctx context.Context, profile models.UserProfile) error
	GetProfile(ctx context.Context, userID string) (models.UserProfile, error)
	GetProfiles(ctx context.Context, userIDs []string) (map[string]models.UserProfile, error)
	UpdateProfile(ctx context.Context, profile models.UserProfile) error
	SearchProfiles(ctx context.Context, query string, excludeUserID string, limit int) ([]models.UserProfile, error)
	SetPresence(ctx context.Context, userID string, online bool, at time.Time) error
}

// ProfileRepo is a sqlx implementation of ProfileRepository.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

const profileColumns = `id, email, display_name, avatar_url, is_online, last_seen, created_at, updated_at`

// CreateIfMissing inserts the profile unless one with the same id exists.
func (r *ProfileRepo) CreateIfMissing(ctx context.Context, p models.UserProfile) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO users (id, email, display_name, avatar_url, is_online, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING`, p.ID, p.Email, p.DisplayName, p.AvatarURL, p.IsOnline, p.CreatedAt, p.UpdatedAt)
	return err
}

// GetProfile fetches one profile.
func (r *ProfileRepo) GetProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var p models.UserProfile
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &p, `SELECT `+profileColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProfile{}, ErrProfileNotFound
	}
	return p, err
}

// GetProfiles fetches several profiles keyed by id. Unknown ids are absent from the map.
func (r *ProfileRepo) GetProfiles(ctx context.Context, userIDs []string) (map[string]models.UserProfile, error) {
	out := make(map[string]models.UserProfile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	exec := db.GetExecutor(ctx, r.db)
	query, args, err := sqlx.In(`SELECT `+profileColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	var profiles []models.UserProfile
	if err := exec.SelectContext(ctx, &profiles, exec.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// UpdateProfile stores the editable fields of a profile.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, p models.UserProfile) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE users SET display_name=$1, avatar_url=$2, updated_at=$3 WHERE id=$4`,
		p.DisplayName, p.AvatarURL, p.UpdatedAt, p.ID)
	return expectOneRow(res, err, ErrProfileNotFound)
}

// SearchProfiles matches a case-insensitive prefix of display name or email.
func (r *ProfileRepo) SearchProfiles(ctx context.Context, query string, excludeUserID string, limit int) ([]models.UserProfile, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	pattern := strings.ToLower(strings.TrimSpace(query)) + "%"
	var profiles []models.UserProfile
	err := db.GetExecutor(ctx, r.db).SelectContext(ctx, &profiles, `SELECT `+profileColumns+` FROM users
        WHERE id <> $1 AND (LOWER(display_name) LIKE $2 OR LOWER(email) LIKE $2)
        ORDER BY display_name ASC LIMIT $3`, excludeUserID, pattern, limit)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []models.UserProfile{}
	}
	return profiles, nil
}

// SetPresence stores the online flag and last seen time.
func (r *ProfileRepo) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE users SET is_online=$1, last_seen=$2 WHERE id=$3`, online, at, userID)
	return expectOneRow(res, err, ErrProfileNotFound)
}
