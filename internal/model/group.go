package model

import (
	"github.com/google/uuid"
)

// GroupID identifies a group. Always a UUID string.
type GroupID string

// ParseGroupID validates and normalizes a group identifier
func ParseGroupID(s string) (GroupID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", Ef(KindInvalidIdentifier, "parse group id", s, err)
	}
	return GroupID(id.String()), nil
}

// SystemState is the watch-session phase of a group
type SystemState string

const (
	StateAddingMovies SystemState = "adding_movies" // Members propose movies
	StateVoting       SystemState = "voting"        // Members vote on current movies
	StateWatching     SystemState = "watching"      // Movie night in progress
)

// Valid reports whether s is a known state
func (s SystemState) Valid() bool {
	switch s {
	case StateAddingMovies, StateVoting, StateWatching:
		return true
	}
	return false
}

// Next returns the state that follows s once every member is ready
func (s SystemState) Next() SystemState {
	switch s {
	case StateAddingMovies:
		return StateVoting
	case StateVoting:
		return StateWatching
	default:
		return StateAddingMovies
	}
}

// Movie is a movie proposed to or watched by a group
type Movie struct {
	ID      string
	Title   string
	Year    int
	AddedBy string
}

// GroupForm is the input for creating a group
type GroupForm struct {
	GroupName string
	Username  string // creator
}

// Group is the stored group document, keyed by ID
type Group struct {
	ID            GroupID
	GroupName     string
	Members       []string // ordered, drives turn rotation
	MoviesWatched []Movie
	CurrentMovies []Movie
	ReadyStatus   map[string]bool
	Turn          string
	SystemState   SystemState
	DateCreated   int64
	DateModified  int64

	// Revision is the store revision this value was read at. Not serialized.
	Revision int64
}

// Ref returns the membership index entry for this group
func (g *Group) Ref() GroupRef {
	return GroupRef{ID: g.ID, Name: g.GroupName}
}

// HasMember reports whether username is in the member list
func (g *Group) HasMember(username string) bool {
	for _, m := range g.Members {
		if m == username {
			return true
		}
	}
	return false
}

// AddMember appends username to the member list. Returns false if already
// present.
func (g *Group) AddMember(username string) bool {
	if g.HasMember(username) {
		return false
	}
	g.Members = append(g.Members, username)
	return true
}

// RemoveMember removes username from the group, dropping its ready flag and
// passing the turn on if it held it. Returns false if it was not a member.
func (g *Group) RemoveMember(username string) bool {
	idx := -1
	for i, m := range g.Members {
		if m == username {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	g.Members = append(g.Members[:idx], g.Members[idx+1:]...)
	delete(g.ReadyStatus, username)

	if g.Turn == username {
		if len(g.Members) == 0 {
			g.Turn = ""
		} else {
			g.Turn = g.Members[idx%len(g.Members)]
		}
	}
	return true
}

// NextTurn returns the member after the current turn holder, wrapping round.
// An empty or stale turn starts from the first member.
func (g *Group) NextTurn() string {
	if len(g.Members) == 0 {
		return ""
	}
	for i, m := range g.Members {
		if m == g.Turn {
			return g.Members[(i+1)%len(g.Members)]
		}
	}
	return g.Members[0]
}

// AllReady reports whether every member has flagged ready
func (g *Group) AllReady() bool {
	if len(g.Members) == 0 {
		return false
	}
	for _, m := range g.Members {
		if !g.ReadyStatus[m] {
			return false
		}
	}
	return true
}

// HasMovie reports whether a movie is current or already watched
func (g *Group) HasMovie(id string) bool {
	for _, m := range g.CurrentMovies {
		if m.ID == id {
			return true
		}
	}
	for _, m := range g.MoviesWatched {
		if m.ID == id {
			return true
		}
	}
	return false
}
