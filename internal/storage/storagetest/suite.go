// Package storagetest holds the behavior every storage backend must share.
// Backend test suites embed Suite and set Store in SetupTest.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/storage"
)

// Suite exercises the storage.Storage contract
type Suite struct {
	suite.Suite
	Store storage.Storage
	Ctx   context.Context
}

// Insert tests

func (s *Suite) TestInsertAndGet() {
	doc, err := s.Store.Insert(s.Ctx, storage.TableUsers, "alice", `{"a":1}`)
	s.Require().NoError(err)
	s.Equal(int64(1), doc.Revision)

	got, err := s.Store.Get(s.Ctx, storage.TableUsers, "alice")
	s.Require().NoError(err)
	s.Equal("alice", got.Key)
	s.Equal(`{"a":1}`, got.Data)
	s.Equal(int64(1), got.Revision)
}

func (s *Suite) TestInsertExistingKeyConflicts() {
	_, err := s.Store.Insert(s.Ctx, storage.TableUsers, "alice", `{"a":1}`)
	s.Require().NoError(err)

	_, err = s.Store.Insert(s.Ctx, storage.TableUsers, "alice", `{"a":2}`)
	s.ErrorIs(err, model.ErrConflict)
	s.NotErrorIs(err, storage.ErrRevisionMismatch)

	got, err := s.Store.Get(s.Ctx, storage.TableUsers, "alice")
	s.Require().NoError(err)
	s.Equal(`{"a":1}`, got.Data)
}

func (s *Suite) TestTablesAreIndependent() {
	_, err := s.Store.Insert(s.Ctx, storage.TableUsers, "same-key", "user")
	s.Require().NoError(err)
	_, err = s.Store.Insert(s.Ctx, storage.TableGroups, "same-key", "group")
	s.Require().NoError(err)

	u, err := s.Store.Get(s.Ctx, storage.TableUsers, "same-key")
	s.Require().NoError(err)
	g, err := s.Store.Get(s.Ctx, storage.TableGroups, "same-key")
	s.Require().NoError(err)
	s.Equal("user", u.Data)
	s.Equal("group", g.Data)
}

// Get tests

func (s *Suite) TestGetMissingKeyIsNotFound() {
	_, err := s.Store.Get(s.Ctx, storage.TableGroups, "nope")
	s.ErrorIs(err, model.ErrNotFound)
}

// Update tests

func (s *Suite) TestUpdateBumpsRevision() {
	_, err := s.Store.Insert(s.Ctx, storage.TableGroups, "g1", "v1")
	s.Require().NoError(err)

	doc, err := s.Store.Update(s.Ctx, storage.TableGroups, "g1", "v2", 1)
	s.Require().NoError(err)
	s.Equal(int64(2), doc.Revision)

	got, err := s.Store.Get(s.Ctx, storage.TableGroups, "g1")
	s.Require().NoError(err)
	s.Equal("v2", got.Data)
	s.Equal(int64(2), got.Revision)
}

func (s *Suite) TestUpdateStaleRevisionFails() {
	_, err := s.Store.Insert(s.Ctx, storage.TableGroups, "g1", "v1")
	s.Require().NoError(err)
	_, err = s.Store.Update(s.Ctx, storage.TableGroups, "g1", "v2", 1)
	s.Require().NoError(err)

	_, err = s.Store.Update(s.Ctx, storage.TableGroups, "g1", "v3", 1)
	s.ErrorIs(err, storage.ErrRevisionMismatch)
	s.ErrorIs(err, model.ErrConflict)

	got, err := s.Store.Get(s.Ctx, storage.TableGroups, "g1")
	s.Require().NoError(err)
	s.Equal("v2", got.Data)
}

func (s *Suite) TestUpdateUnconditional() {
	_, err := s.Store.Insert(s.Ctx, storage.TableUsers, "alice", "v1")
	s.Require().NoError(err)
	_, err = s.Store.Update(s.Ctx, storage.TableUsers, "alice", "v2", 1)
	s.Require().NoError(err)

	doc, err := s.Store.Update(s.Ctx, storage.TableUsers, "alice", "v3", 0)
	s.Require().NoError(err)
	s.Equal(int64(3), doc.Revision)
}

func (s *Suite) TestUpdateMissingKeyIsNotFound() {
	_, err := s.Store.Update(s.Ctx, storage.TableUsers, "ghost", "v", 0)
	s.ErrorIs(err, model.ErrNotFound)

	_, err = s.Store.Update(s.Ctx, storage.TableUsers, "ghost", "v", 3)
	s.ErrorIs(err, model.ErrNotFound)
}

// Delete tests

func (s *Suite) TestDelete() {
	_, err := s.Store.Insert(s.Ctx, storage.TableGroups, "g1", "v1")
	s.Require().NoError(err)

	s.Require().NoError(s.Store.Delete(s.Ctx, storage.TableGroups, "g1", 1))

	_, err = s.Store.Get(s.Ctx, storage.TableGroups, "g1")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestDeleteStaleRevisionFails() {
	_, err := s.Store.Insert(s.Ctx, storage.TableGroups, "g1", "v1")
	s.Require().NoError(err)
	_, err = s.Store.Update(s.Ctx, storage.TableGroups, "g1", "v2", 0)
	s.Require().NoError(err)

	err = s.Store.Delete(s.Ctx, storage.TableGroups, "g1", 1)
	s.ErrorIs(err, storage.ErrRevisionMismatch)

	_, err = s.Store.Get(s.Ctx, storage.TableGroups, "g1")
	s.NoError(err)
}

func (s *Suite) TestDeleteMissingKeyIsNotFound() {
	err := s.Store.Delete(s.Ctx, storage.TableGroups, "ghost", 0)
	s.ErrorIs(err, model.ErrNotFound)
}

// Concurrency tests

func (s *Suite) TestConcurrentConditionalUpdatesApplyOnce() {
	_, err := s.Store.Insert(s.Ctx, storage.TableGroups, "g1", "v1")
	s.Require().NoError(err)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Store.Update(s.Ctx, storage.TableGroups, "g1", fmt.Sprintf("w%d", i), 1)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, storage.ErrRevisionMismatch)
	}
	s.Equal(1, succeeded)

	got, err := s.Store.Get(s.Ctx, storage.TableGroups, "g1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Revision)
}

// Refresh token tests

func (s *Suite) TestRefreshTokenConsumedOnce() {
	token := storage.RefreshToken{
		ID:        "2Y9ZKpSn0y8mTqW6jD1x5Vb7cQe",
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
	}
	s.Require().NoError(s.Store.SaveRefreshToken(s.Ctx, token))

	got, err := s.Store.ConsumeRefreshToken(s.Ctx, token.ID)
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
	s.Equal(token.ID, got.ID)

	_, err = s.Store.ConsumeRefreshToken(s.Ctx, token.ID)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestConsumeUnknownRefreshTokenIsNotFound() {
	_, err := s.Store.ConsumeRefreshToken(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrNotFound)
}
