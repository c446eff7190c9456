// Package models defines the peerlink entity types shared by both storage
// backends. Records travel between backends as plain JSON objects, so every
// entity carries JSON tags matching the wire and snapshot format.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PresenceStatus is a user's connectivity state.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// RequestStatus is the state of a friend request. Transitions are forward
// only: pending may become accepted or rejected, resolved requests never
// change again.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// User is a registered account. Bio, Avatar, Status, LastSeen and TypingTo
// are mutable; everything else is fixed at registration. An empty Avatar or
// TypingTo means "none".
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username"`
	PasswordHash string         `json:"passwordHash"`
	Bio          string         `json:"bio"`
	Avatar       string         `json:"avatar"`
	Status       PresenceStatus `json:"status"`
	LastSeen     time.Time      `json:"lastSeen"`
	TypingTo     string         `json:"typingTo"`
}

// FriendRequest is an invitation from one user to another. Only Status
// mutates after creation.
type FriendRequest struct {
	ID        string        `json:"id"`
	FromID    string        `json:"fromId"`
	ToID      string        `json:"toId"`
	Status    RequestStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// Resolved reports whether the request has left the pending state.
func (r *FriendRequest) Resolved() bool {
	return r.Status != RequestPending
}

// Friendship links two users. Its ID is deterministic for the pair, so
// concurrent or repeated creation for the same two users converges to one
// record.
type Friendship struct {
	ID        string    `json:"id"`
	User1ID   string    `json:"user1Id"`
	User2ID   string    `json:"user2Id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Involves reports whether userID occupies either member slot.
func (f *Friendship) Involves(userID string) bool {
	return f.User1ID == userID || f.User2ID == userID
}

// PeerOf returns the other member of the friendship, or "" if userID is not
// a member.
func (f *Friendship) PeerOf(userID string) string {
	switch userID {
	case f.User1ID:
		return f.User2ID
	case f.User2ID:
		return f.User1ID
	}
	return ""
}

// Message is one direct message. IsRead transitions false→true exactly once
// and never reverts. Timestamp is the total-ordering key within a
// conversation; arrival order is irrelevant.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	IsRead     bool      `json:"isRead"`
}

// VaultCredential is a locally cached username→passwordHash pair used for
// offline-friendly re-authentication. It is not a domain entity and never
// leaves the local vault.
type VaultCredential struct {
	Username     string
	PasswordHash string
	LastLogin    time.Time
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// FriendshipID builds the deterministic friendship key for a pair of user
// ids: the ids sorted lexicographically and joined with '_'. Both argument
// orders produce the same key.
func FriendshipID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b
}

// NewFriendship constructs the canonical friendship record for a pair.
// Member slots are stored in sorted order so independent creators produce
// byte-identical records.
func NewFriendship(a, b string, now time.Time) *Friendship {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return &Friendship{
		ID:        FriendshipID(a, b),
		User1ID:   a,
		User2ID:   b,
		CreatedAt: now,
	}
}

// NormalizeUsername folds a username for the case-insensitive uniqueness
// check.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
