package model

import (
	"regexp"
)

// UserID uniquely identifies a user across the system
type UserID string

// GroupRef is a user's denormalized reference to a group it belongs to
type GroupRef struct {
	ID   GroupID
	Name string
}

// User is the stored user document, keyed by username
type User struct {
	ID             UserID
	Username       string // store key (immutable)
	HashedPassword string
	Salt           string
	Groups         []GroupRef // unordered, unique by ID
	DateCreated    int64
	DateModified   int64

	// Revision is the store revision this value was read at. Not serialized.
	Revision int64
}

// UserInfo is the credential pair supplied by a caller
type UserInfo struct {
	Username string
	Password string
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,32}$`)

// ValidateUsername checks that a username is usable as a store key
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return Ef(KindInvalidIdentifier, "validate username", username, nil)
	}
	return nil
}

// HasGroup reports whether the membership index contains the group
func (u *User) HasGroup(id GroupID) bool {
	for _, g := range u.Groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

// AddGroup inserts ref into the membership index. Returns false if it was
// already present.
func (u *User) AddGroup(ref GroupRef) bool {
	if u.HasGroup(ref.ID) {
		return false
	}
	u.Groups = append(u.Groups, ref)
	return true
}

// RemoveGroup removes the group from the membership index. Returns false if
// it was not present.
func (u *User) RemoveGroup(id GroupID) bool {
	for i, g := range u.Groups {
		if g.ID == id {
			u.Groups = append(u.Groups[:i], u.Groups[i+1:]...)
			return true
		}
	}
	return false
}
