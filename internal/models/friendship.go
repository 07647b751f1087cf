package models

import "time"

// FriendRequestStatus is the state of a friend request. Accepted and rejected are terminal.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed request from one user to another.
type FriendRequest struct {
	ID          string              `db:"id" json:"id"`
	FromUser    string              `db:"from_user" json:"from_user"`
	ToUser      string              `db:"to_user" json:"to_user"`
	Message     *string             `db:"message" json:"message,omitempty"`
	Status      FriendRequestStatus `db:"status" json:"status"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	RespondedAt *time.Time          `db:"responded_at" json:"responded_at,omitempty"`
}

// IsPending reports whether the request can still be answered.
func (r FriendRequest) IsPending() bool {
	return r.Status == FriendRequestPending
}

// FriendshipStatus is the state of an established relationship.
type FriendshipStatus string

const (
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship is an undirected pair stored with User1 < User2.
type Friendship struct {
	ID         string           `db:"id" json:"id"`
	User1      string           `db:"user1" json:"user1"`
	User2      string           `db:"user2" json:"user2"`
	Status     FriendshipStatus `db:"status" json:"status"`
	AcceptedAt time.Time        `db:"accepted_at" json:"accepted_at"`
}

// EnsureCanonicalOrder swaps the pair so that User1 sorts before User2.
func (f *Friendship) EnsureCanonicalOrder() {
	if f.User1 > f.User2 {
		f.User1, f.User2 = f.User2, f.User1
	}
}

// Other returns the member of the pair that is not userID.
func (f Friendship) Other(userID string) string {
	if f.User1 == userID {
		return f.User2
	}
	return f.User1
}

// CanonicalPair orders two user ids the way friendships are stored.
func CanonicalPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// Friend is a friendship seen from one side, with the other user's profile.
type Friend struct {
	FriendshipID string      `json:"friendship_id"`
	Since        time.Time   `json:"since"`
	Profile      UserProfile `json:"profile"`
}

// FriendRequestWithProfile pairs a request with the counterpart's profile.
type FriendRequestWithProfile struct {
	FriendRequest
	Counterpart *UserProfile `json:"counterpart,omitempty"`
}
