package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-chat/internal/db"
	"social-chat/internal/models"
)

var (
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrRequestNotPending     = errors.New("friend request is no longer pending")
	ErrPendingRequestExists  = errors.New("pending friend request already exists")
)

// FriendRequestRepository abstracts friend request persistence.
type FriendRequestRepository interface {
	CreateRequest(ctx context.Context, req models.FriendRequest) error
	GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error)
	FindPendingBetween(ctx context.Context, a, b string) (models.FriendRequest, error)
	MarkResponded(ctx context.Context, requestID string, status models.FriendRequestStatus, at time.Time) error
	ListPendingReceived(ctx context.Context, userID string) ([]models.FriendRequest, error)
	ListPendingSent(ctx context.Context, userID string) ([]models.FriendRequest, error)
}

// FriendRequestRepo is a sqlx implementation of FriendRequestRepository.
type FriendRequestRepo struct {
	db *sqlx.DB
}

// NewFriendRequestRepo constructs a FriendRequestRepo.
func NewFriendRequestRepo(db *sqlx.DB) *FriendRequestRepo {
	return &FriendRequestRepo{db: db}
}

const friendRequestColumns = `id, from_user, to_user, message, status, created_at, responded_at`

// CreateRequest stores a new request. A second pending request for the same
// direction is reported as ErrPendingRequestExists.
func (r *FriendRequestRepo) CreateRequest(ctx context.Context, req models.FriendRequest) error {
	_, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `INSERT INTO friend_requests (id, from_user, to_user, message, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, req.ID, req.FromUser, req.ToUser, req.Message, req.Status, req.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrPendingRequestExists
	}
	return err
}

// GetRequest fetches a request by id.
func (r *FriendRequestRepo) GetRequest(ctx context.Context, requestID string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &req, `SELECT `+friendRequestColumns+` FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// FindPendingBetween returns a pending request between a and b in either direction.
func (r *FriendRequestRepo) FindPendingBetween(ctx context.Context, a, b string) (models.FriendRequest, error) {
	var req models.FriendRequest
	err := db.GetExecutor(ctx, r.db).GetContext(ctx, &req, `SELECT `+friendRequestColumns+` FROM friend_requests
        WHERE status='pending' AND ((from_user=$1 AND to_user=$2) OR (from_user=$2 AND to_user=$1))
        ORDER BY created_at ASC LIMIT 1`, a, b)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrFriendRequestNotFound
	}
	return req, err
}

// MarkResponded moves a pending request to a terminal status. It touches the row
// only while it is still pending, so concurrent responders cannot both win.
func (r *FriendRequestRepo) MarkResponded(ctx context.Context, requestID string, status models.FriendRequestStatus, at time.Time) error {
	res, err := db.GetExecutor(ctx, r.db).ExecContext(ctx, `UPDATE friend_requests SET status=$1, responded_at=$2
        WHERE id=$3 AND status='pending'`, status, at, requestID)
	return expectOneRow(res, err, ErrRequestNotPending)
}

// ListPendingReceived returns pending requests addressed to userID, newest first.
func (r *FriendRequestRepo) ListPendingReceived(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.listPending(ctx, `to_user`, userID)
}

// ListPendingSent returns pending requests sent by userID, newest first.
func (r *FriendRequestRepo) ListPendingSent(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	return r.listPending(ctx, `from_user`, userID)
}

func (r *FriendRequestRepo) listPending(ctx context.Context, column string, userID string) ([]models.FriendRequest, error) {
	var reqs []models.FriendRequest
	err := db.GetExecutor(ctx, r.db).SelectContext(ctx, &reqs, `SELECT `+friendRequestColumns+` FROM friend_requests
        WHERE `+column+`=$1 AND status='pending' ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []models.FriendRequest{}
	}
	return reqs, nil
}
