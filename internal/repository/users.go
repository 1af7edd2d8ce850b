// Package repository provides typed access to User and Group documents.
// Every write replaces the full document for one key.
package repository

import (
	"context"

	"github.com/mcoot/movienight/internal/codec"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/storage"
)

// UserRepository stores User documents keyed by username
type UserRepository struct {
	store storage.DocumentStore
}

// NewUserRepository creates a UserRepository
func NewUserRepository(store storage.DocumentStore) *UserRepository {
	return &UserRepository{store: store}
}

// Get loads a user. Missing users fail with ErrNotFound wrapping
// model.ErrUserNotFound.
func (r *UserRepository) Get(ctx context.Context, username string) (*model.User, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}

	doc, err := r.store.Get(ctx, storage.TableUsers, username)
	if err != nil {
		return nil, userNotFound(err, username)
	}

	user, err := codec.DecodeUser(doc.Data)
	if err != nil {
		return nil, err
	}
	if user.Username == "" {
		user.Username = username
	}
	user.Revision = doc.Revision
	return user, nil
}

// Insert stores a new user. Fails with ErrConflict if the username is taken.
func (r *UserRepository) Insert(ctx context.Context, user *model.User) error {
	if err := model.ValidateUsername(user.Username); err != nil {
		return err
	}

	data, err := codec.EncodeUser(user)
	if err != nil {
		return err
	}

	doc, err := r.store.Insert(ctx, storage.TableUsers, user.Username, data)
	if err != nil {
		if model.KindOf(err) == model.KindConflict {
			return model.Ef(model.KindConflict, "insert user", user.Username, model.ErrUsernameTaken)
		}
		return err
	}
	user.Revision = doc.Revision
	return nil
}

// Update replaces a stored user, conditional on user.Revision when set.
// On success user.Revision holds the new revision.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	if err := model.ValidateUsername(user.Username); err != nil {
		return err
	}

	data, err := codec.EncodeUser(user)
	if err != nil {
		return err
	}

	doc, err := r.store.Update(ctx, storage.TableUsers, user.Username, data, user.Revision)
	if err != nil {
		return userNotFound(err, user.Username)
	}
	user.Revision = doc.Revision
	return nil
}

// Delete removes a user, conditional on revision when non-zero
func (r *UserRepository) Delete(ctx context.Context, username string, revision int64) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}
	return userNotFound(r.store.Delete(ctx, storage.TableUsers, username, revision), username)
}

func userNotFound(err error, username string) error {
	if err != nil && model.KindOf(err) == model.KindNotFound {
		return model.Ef(model.KindNotFound, "user repository", username, model.ErrUserNotFound)
	}
	return err
}
