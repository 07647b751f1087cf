package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
	"social-chat/internal/models"
)

var (
	ErrFriendshipNotFound = errors.New("friendship not found")
	ErrFriendshipExists   = errors.New("friendship already exists")
)

// FriendshipRepository abstracts friendship persistence. Pairs are stored canonically.
type FriendshipRepository interface {
	CreateFriendship(ctx context.Context, f models.Friendship) error
	GetFriendship(ctx context.Context, a, b string) (models.Friendship, error)
	DeleteFriendship(ctx context.Context, a, b string) (bool, error)
	ListFriendships(ctx context.Context, userID string) ([]models.Friendship, error)
}

// FriendshipRepo is a sqlx implementation of FriendshipRepository.
type FriendshipRepo struct {
	db *sqlx.DB
}

// NewFriendshipRepo constructs a FriendshipRepo.
func NewFriendshipRepo(db *sqlx.DB) *FriendshipRepo {
	return &FriendshipRepo{db: db}
}

const friendshipColumns = `id, user1, user2, status, accepted_at`

// CreateFriendship inserts the pair in canonical order.
func (r *FriendshipRepo) CreateFriendship(ctx context.Context, f models.Friendship) error {
	f.EnsureCanonicalOrder()
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO friendships (id, user1, user2, status, accepted_at)
        VALUES ($1, $2, $3, $4, $5)`, f.ID, f.User1, f.User2, f.Status, f.AcceptedAt)
	if db.IsUniqueViolation(err) {
		return ErrFriendshipExists
	}
	return err
}

// GetFriendship looks up the pair regardless of argument order.
func (r *FriendshipRepo) GetFriendship(ctx context.Context, a, b string) (models.Friendship, error) {
	u1, u2 := models.CanonicalPair(a, b)
	var f models.Friendship
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &f, `SELECT `+friendshipColumns+` FROM friendships WHERE user1=$1 AND user2=$2`, u1, u2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Friendship{}, ErrFriendshipNotFound
	}
	return f, err
}

// DeleteFriendship removes the pair and reports whether a row existed.
func (r *FriendshipRepo) DeleteFriendship(ctx context.Context, a, b string) (bool, error) {
	u1, u2 := models.CanonicalPair(a, b)
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `DELETE FROM friendships WHERE user1=$1 AND user2=$2`, u1, u2)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListFriendships returns accepted friendships of userID, most recent first.
func (r *FriendshipRepo) ListFriendships(ctx context.Context, userID string) ([]models.Friendship, error) {
	var out []models.Friendship
	err := db.GetExecutor(ctx, r.db).SelectContext(ctx, &out, `SELECT `+friendshipColumns+` FROM friendships
        WHERE (user1=$1 OR user2=$1) AND status='accepted' ORDER BY accepted_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Friendship{}
	}
	return out, nil
}
