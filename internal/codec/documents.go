package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcoot/movienight/internal/model"
)

// Version 1 document shapes

type groupRefDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userDoc struct {
	ID             string        `json:"id"`
	Username       string        `json:"username"`
	HashedPassword string        `json:"hashed_password"`
	Salt           string        `json:"salt"`
	Groups         []groupRefDoc `json:"groups"`
	DateCreated    int64         `json:"date_created"`
	DateModified   int64         `json:"date_modified"`
}

type movieDoc struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year,omitempty"`
	AddedBy string `json:"added_by,omitempty"`
}

type groupDoc struct {
	ID            string          `json:"id"`
	GroupName     string          `json:"group_name"`
	Members       []string        `json:"members"`
	MoviesWatched []movieDoc      `json:"movies_watched"`
	CurrentMovies []movieDoc      `json:"current_movies"`
	ReadyStatus   map[string]bool `json:"ready_status"`
	SystemState   string          `json:"system_state"`
	Turn          string          `json:"turn"`
	DateCreated   int64           `json:"date_created"`
	DateModified  int64           `json:"date_modified"`
}

func userToDoc(u *model.User) userDoc {
	groups := make([]groupRefDoc, 0, len(u.Groups))
	for _, g := range u.Groups {
		groups = append(groups, groupRefDoc{ID: string(g.ID), Name: g.Name})
	}
	return userDoc{
		ID:             string(u.ID),
		Username:       u.Username,
		HashedPassword: u.HashedPassword,
		Salt:           u.Salt,
		Groups:         groups,
		DateCreated:    u.DateCreated,
		DateModified:   u.DateModified,
	}
}

func (d userDoc) toModel() *model.User {
	groups := make([]model.GroupRef, 0, len(d.Groups))
	for _, g := range d.Groups {
		groups = append(groups, model.GroupRef{ID: model.GroupID(g.ID), Name: g.Name})
	}
	return &model.User{
		ID:             model.UserID(d.ID),
		Username:       d.Username,
		HashedPassword: d.HashedPassword,
		Salt:           d.Salt,
		Groups:         groups,
		DateCreated:    d.DateCreated,
		DateModified:   d.DateModified,
	}
}

func moviesToDocs(movies []model.Movie) []movieDoc {
	docs := make([]movieDoc, 0, len(movies))
	for _, m := range movies {
		docs = append(docs, movieDoc{ID: m.ID, Title: m.Title, Year: m.Year, AddedBy: m.AddedBy})
	}
	return docs
}

func docsToMovies(docs []movieDoc) []model.Movie {
	movies := make([]model.Movie, 0, len(docs))
	for _, d := range docs {
		movies = append(movies, model.Movie{ID: d.ID, Title: d.Title, Year: d.Year, AddedBy: d.AddedBy})
	}
	return movies
}

func groupToDoc(g *model.Group) groupDoc {
	members := make([]string, 0, len(g.Members))
	members = append(members, g.Members...)

	ready := make(map[string]bool, len(g.ReadyStatus))
	for k, v := range g.ReadyStatus {
		ready[k] = v
	}

	return groupDoc{
		ID:            string(g.ID),
		GroupName:     g.GroupName,
		Members:       members,
		MoviesWatched: moviesToDocs(g.MoviesWatched),
		CurrentMovies: moviesToDocs(g.CurrentMovies),
		ReadyStatus:   ready,
		SystemState:   string(g.SystemState),
		Turn:          g.Turn,
		DateCreated:   g.DateCreated,
		DateModified:  g.DateModified,
	}
}

func (d groupDoc) toModel() (*model.Group, error) {
	state := model.SystemState(d.SystemState)
	if !state.Valid() {
		return nil, model.Ef(model.KindSerialization, "decode group", fmt.Sprintf("unknown system_state %q", d.SystemState), nil)
	}

	var id model.GroupID
	if d.ID != "" {
		parsed, err := model.ParseGroupID(d.ID)
		if err != nil {
			return nil, model.Ef(model.KindSerialization, "decode group", "malformed id", err)
		}
		id = parsed
	}

	members := make([]string, 0, len(d.Members))
	members = append(members, d.Members...)

	ready := make(map[string]bool, len(d.ReadyStatus))
	for k, v := range d.ReadyStatus {
		ready[k] = v
	}

	return &model.Group{
		ID:            id,
		GroupName:     d.GroupName,
		Members:       members,
		MoviesWatched: docsToMovies(d.MoviesWatched),
		CurrentMovies: docsToMovies(d.CurrentMovies),
		ReadyStatus:   ready,
		Turn:          d.Turn,
		SystemState:   state,
		DateCreated:   d.DateCreated,
		DateModified:  d.DateModified,
	}, nil
}

// Version 0: bare documents with no envelope. Users have no username and
// reference groups by "uuid"; groups have no id and use PascalCase states.

type userDocV0 struct {
	ID             string `json:"id"`
	HashedPassword string `json:"hashed_password"`
	Salt           string `json:"salt"`
	Groups         []struct {
		UUID string `json:"uuid"`
		Name string `json:"name"`
	} `json:"groups"`
	DateCreated  int64 `json:"date_created"`
	DateModified int64 `json:"date_modified"`
}

type groupDocV0 struct {
	GroupName     string            `json:"group_name"`
	Members       []string          `json:"members"`
	MoviesWatched []json.RawMessage `json:"movies_watched"`
	CurrentMovies []json.RawMessage `json:"current_movies"`
	ReadyStatus   map[string]bool   `json:"ready_status"`
	SystemState   string            `json:"system_state"`
	Turn          string            `json:"turn"`
	DateCreated   int64             `json:"date_created"`
	DateModified  int64             `json:"date_modified"`
}

var legacyStates = map[string]model.SystemState{
	"AddingMovies": model.StateAddingMovies,
	"Voting":       model.StateVoting,
	"Watching":     model.StateWatching,
}

func upgradeUserV0(data json.RawMessage) (json.RawMessage, error) {
	var old userDocV0
	if err := decodeStrict(data, &old); err != nil {
		return nil, err
	}
	if old.HashedPassword == "" || old.Salt == "" {
		return nil, errors.New("legacy user is missing credentials")
	}

	doc := userDoc{
		ID:             old.ID,
		HashedPassword: old.HashedPassword,
		Salt:           old.Salt,
		Groups:         make([]groupRefDoc, 0, len(old.Groups)),
		DateCreated:    old.DateCreated,
		DateModified:   old.DateModified,
	}
	for _, g := range old.Groups {
		doc.Groups = append(doc.Groups, groupRefDoc{ID: g.UUID, Name: g.Name})
	}
	return json.Marshal(doc)
}

func upgradeGroupV0(data json.RawMessage) (json.RawMessage, error) {
	var old groupDocV0
	if err := decodeStrict(data, &old); err != nil {
		return nil, err
	}
	if old.GroupName == "" {
		return nil, errors.New("legacy group is missing group_name")
	}

	state, ok := legacyStates[old.SystemState]
	if !ok {
		return nil, fmt.Errorf("unknown legacy system_state %q", old.SystemState)
	}

	watched, err := upgradeMoviesV0(old.MoviesWatched)
	if err != nil {
		return nil, err
	}
	current, err := upgradeMoviesV0(old.CurrentMovies)
	if err != nil {
		return nil, err
	}

	return json.Marshal(groupDoc{
		GroupName:     old.GroupName,
		Members:       old.Members,
		MoviesWatched: watched,
		CurrentMovies: current,
		ReadyStatus:   old.ReadyStatus,
		SystemState:   string(state),
		Turn:          old.Turn,
		DateCreated:   old.DateCreated,
		DateModified:  old.DateModified,
	})
}

// upgradeMoviesV0 accepts bare movie names as well as movie objects
func upgradeMoviesV0(raw []json.RawMessage) ([]movieDoc, error) {
	movies := make([]movieDoc, 0, len(raw))
	for _, r := range raw {
		var name string
		if err := json.Unmarshal(r, &name); err == nil {
			movies = append(movies, movieDoc{ID: name, Title: name})
			continue
		}
		var m movieDoc
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, nil
}
