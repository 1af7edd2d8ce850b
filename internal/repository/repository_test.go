package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/storage"
	"github.com/mcoot/movienight/internal/storage/memory"
)

const groupID = model.GroupID("7d0f9a8e-3a4b-4c2d-9e1f-2b3c4d5e6f70")

type RepositorySuite struct {
	suite.Suite
	storage *memory.Storage
	users   *UserRepository
	groups  *GroupRepository
	ctx     context.Context
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.storage = memory.New()
	s.users = NewUserRepository(s.storage)
	s.groups = NewGroupRepository(s.storage)
	s.ctx = context.Background()
}

func (s *RepositorySuite) newUser(username string) *model.User {
	return &model.User{
		ID:             model.UserID("id-" + username),
		Username:       username,
		HashedPassword: "hash",
		Salt:           "salt",
		Groups:         []model.GroupRef{},
		DateCreated:    100,
		DateModified:   100,
	}
}

func (s *RepositorySuite) newGroup(members ...string) *model.Group {
	return &model.Group{
		ID:            groupID,
		GroupName:     "Friday",
		Members:       members,
		MoviesWatched: []model.Movie{},
		CurrentMovies: []model.Movie{},
		ReadyStatus:   map[string]bool{},
		SystemState:   model.StateAddingMovies,
		DateCreated:   100,
		DateModified:  100,
	}
}

// User tests

func (s *RepositorySuite) TestInsertAndGetUser() {
	u := s.newUser("alice")
	s.Require().NoError(s.users.Insert(s.ctx, u))
	s.Equal(int64(1), u.Revision)

	got, err := s.users.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(u, got)
}

func (s *RepositorySuite) TestInsertDuplicateUserConflicts() {
	s.Require().NoError(s.users.Insert(s.ctx, s.newUser("alice")))

	err := s.users.Insert(s.ctx, s.newUser("alice"))
	s.ErrorIs(err, model.ErrConflict)
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *RepositorySuite) TestGetMissingUser() {
	_, err := s.users.Get(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrNotFound)
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *RepositorySuite) TestGetInvalidUsername() {
	_, err := s.users.Get(s.ctx, "no spaces allowed")
	s.ErrorIs(err, model.ErrInvalidIdentifier)
}

func (s *RepositorySuite) TestUpdateUserTracksRevision() {
	u := s.newUser("alice")
	s.Require().NoError(s.users.Insert(s.ctx, u))

	u.Salt = "new-salt"
	s.Require().NoError(s.users.Update(s.ctx, u))
	s.Equal(int64(2), u.Revision)

	got, err := s.users.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal("new-salt", got.Salt)
}

func (s *RepositorySuite) TestUpdateUserWithStaleRevisionFails() {
	u := s.newUser("alice")
	s.Require().NoError(s.users.Insert(s.ctx, u))

	stale := *u
	u.Salt = "first"
	s.Require().NoError(s.users.Update(s.ctx, u))

	stale.Salt = "second"
	err := s.users.Update(s.ctx, &stale)
	s.ErrorIs(err, storage.ErrRevisionMismatch)
}

func (s *RepositorySuite) TestUpdateMissingUser() {
	err := s.users.Update(s.ctx, s.newUser("ghost"))
	s.ErrorIs(err, model.ErrUserNotFound)
}

func (s *RepositorySuite) TestDeleteUser() {
	s.Require().NoError(s.users.Insert(s.ctx, s.newUser("alice")))
	s.Require().NoError(s.users.Delete(s.ctx, "alice", 0))

	_, err := s.users.Get(s.ctx, "alice")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *RepositorySuite) TestCorruptUserDocumentIsSerializationError() {
	_, err := s.storage.Insert(s.ctx, storage.TableUsers, "alice", "garbage")
	s.Require().NoError(err)

	_, err = s.users.Get(s.ctx, "alice")
	s.ErrorIs(err, model.ErrSerialization)
	s.NotErrorIs(err, model.ErrNotFound)
}

func (s *RepositorySuite) TestNullOrForeignUserDocumentIsSerializationError() {
	for key, data := range map[string]string{
		"alice": `null`,
		"bob":   `{"group_name":"Friday","members":["bob"],"system_state":"AddingMovies"}`,
	} {
		_, err := s.storage.Insert(s.ctx, storage.TableUsers, key, data)
		s.Require().NoError(err)

		_, err = s.users.Get(s.ctx, key)
		s.ErrorIs(err, model.ErrSerialization, key)
	}
}

func (s *RepositorySuite) TestLegacyUserTakesUsernameFromKey() {
	legacy := `{"id":"u1","hashed_password":"h","salt":"s","groups":[],"date_created":1,"date_modified":1}`
	_, err := s.storage.Insert(s.ctx, storage.TableUsers, "carol", legacy)
	s.Require().NoError(err)

	u, err := s.users.Get(s.ctx, "carol")
	s.Require().NoError(err)
	s.Equal("carol", u.Username)
	s.Equal(int64(1), u.Revision)
}

// Group tests

func (s *RepositorySuite) TestInsertAndGetGroup() {
	g := s.newGroup("alice")
	s.Require().NoError(s.groups.Insert(s.ctx, g))

	got, err := s.groups.Get(s.ctx, groupID)
	s.Require().NoError(err)
	s.Equal(g, got)
}

func (s *RepositorySuite) TestGetMissingGroup() {
	_, err := s.groups.Get(s.ctx, groupID)
	s.ErrorIs(err, model.ErrNotFound)
	s.ErrorIs(err, model.ErrGroupNotExist)
}

func (s *RepositorySuite) TestGetMalformedGroupID() {
	_, err := s.groups.Get(s.ctx, "not-a-uuid")
	s.ErrorIs(err, model.ErrInvalidIdentifier)
}

func (s *RepositorySuite) TestEmptyGroupIsNeverWritten() {
	err := s.groups.Insert(s.ctx, s.newGroup())
	s.ErrorIs(err, model.ErrInvalidState)

	g := s.newGroup("alice")
	s.Require().NoError(s.groups.Insert(s.ctx, g))
	g.Members = nil
	s.ErrorIs(s.groups.Update(s.ctx, g), model.ErrInvalidState)
}

func (s *RepositorySuite) TestDeleteGroup() {
	g := s.newGroup("alice")
	s.Require().NoError(s.groups.Insert(s.ctx, g))
	s.Require().NoError(s.groups.Delete(s.ctx, g.ID, g.Revision))

	_, err := s.groups.Get(s.ctx, groupID)
	s.ErrorIs(err, model.ErrGroupNotExist)
}

func (s *RepositorySuite) TestDeleteMissingGroup() {
	err := s.groups.Delete(s.ctx, groupID, 0)
	s.ErrorIs(err, model.ErrGroupNotExist)
}

func (s *RepositorySuite) TestGroupIDIsNormalized() {
	g := s.newGroup("alice")
	g.ID = "7D0F9A8E-3A4B-4C2D-9E1F-2B3C4D5E6F70"
	s.Require().NoError(s.groups.Insert(s.ctx, g))
	s.Equal(groupID, g.ID)

	_, err := s.groups.Get(s.ctx, "7D0F9A8E-3A4B-4C2D-9E1F-2B3C4D5E6F70")
	s.NoError(err)
}
