package response

import (
	"time"

	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/services/session"
)

// GroupRef represents a user's group membership in API responses
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupRefFromModel converts a model.GroupRef
func GroupRefFromModel(r model.GroupRef) GroupRef {
	return GroupRef{ID: string(r.ID), Name: r.Name}
}

// User represents a user in API responses. Credentials are never exposed.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Groups       []GroupRef `json:"groups"`
	DateCreated  int64      `json:"date_created"`
	DateModified int64      `json:"date_modified"`
}

// UserFromModel converts a model.User to a response User
func UserFromModel(u *model.User) User {
	groups := make([]GroupRef, len(u.Groups))
	for i, g := range u.Groups {
		groups[i] = GroupRefFromModel(g)
	}
	return User{
		ID:           string(u.ID),
		Username:     u.Username,
		Groups:       groups,
		DateCreated:  u.DateCreated,
		DateModified: u.DateModified,
	}
}

// Movie represents a movie in API responses
type Movie struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	AddedBy string `json:"added_by,omitempty"`
}

func moviesFromModel(movies []model.Movie) []Movie {
	result := make([]Movie, len(movies))
	for i, m := range movies {
		result[i] = Movie{ID: m.ID, Title: m.Title, Year: m.Year, AddedBy: m.AddedBy}
	}
	return result
}

// Group represents a group in API responses
type Group struct {
	ID            string          `json:"id"`
	GroupName     string          `json:"group_name"`
	Members       []string        `json:"members"`
	MoviesWatched []Movie         `json:"movies_watched"`
	CurrentMovies []Movie         `json:"current_movies"`
	ReadyStatus   map[string]bool `json:"ready_status"`
	Turn          string          `json:"turn"`
	SystemState   string          `json:"system_state"`
	DateCreated   int64           `json:"date_created"`
	DateModified  int64           `json:"date_modified"`
}

// GroupFromModel converts a model.Group to a response Group
func GroupFromModel(g *model.Group) Group {
	ready := make(map[string]bool, len(g.ReadyStatus))
	for k, v := range g.ReadyStatus {
		ready[k] = v
	}
	members := make([]string, len(g.Members))
	copy(members, g.Members)

	return Group{
		ID:            string(g.ID),
		GroupName:     g.GroupName,
		Members:       members,
		MoviesWatched: moviesFromModel(g.MoviesWatched),
		CurrentMovies: moviesFromModel(g.CurrentMovies),
		ReadyStatus:   ready,
		Turn:          g.Turn,
		SystemState:   string(g.SystemState),
		DateCreated:   g.DateCreated,
		DateModified:  g.DateModified,
	}
}

// Tokens is the response for login and refresh
type Tokens struct {
	TokenType        string    `json:"token_type"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokensFromSession converts issued session tokens
func TokensFromSession(t *session.Tokens) Tokens {
	return Tokens{
		TokenType:        "Bearer",
		AccessToken:      t.AccessToken,
		AccessExpiresAt:  t.AccessExpiresAt,
		RefreshToken:     t.RefreshToken,
		RefreshExpiresAt: t.RefreshExpiresAt,
	}
}

// Repair reports how many index entries a repair changed
type Repair struct {
	Repaired int `json:"repaired"`
}
