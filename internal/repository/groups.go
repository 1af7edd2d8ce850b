package repository

import (
	"context"

	"github.com/mcoot/movienight/internal/codec"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/storage"
)

// GroupRepository stores Group documents keyed by group id
type GroupRepository struct {
	store storage.DocumentStore
}

// NewGroupRepository creates a GroupRepository
func NewGroupRepository(store storage.DocumentStore) *GroupRepository {
	return &GroupRepository{store: store}
}

// Get loads a group. Missing groups fail with ErrNotFound wrapping
// model.ErrGroupNotExist.
func (r *GroupRepository) Get(ctx context.Context, id model.GroupID) (*model.Group, error) {
	id, err := model.ParseGroupID(string(id))
	if err != nil {
		return nil, err
	}

	doc, err := r.store.Get(ctx, storage.TableGroups, string(id))
	if err != nil {
		return nil, groupNotExist(err, id)
	}

	group, err := codec.DecodeGroup(doc.Data)
	if err != nil {
		return nil, err
	}
	if group.ID == "" {
		group.ID = id
	}
	group.Revision = doc.Revision
	return group, nil
}

// Insert stores a new group. Groups without members are rejected.
func (r *GroupRepository) Insert(ctx context.Context, group *model.Group) error {
	data, err := r.encode("insert group", group)
	if err != nil {
		return err
	}

	doc, err := r.store.Insert(ctx, storage.TableGroups, string(group.ID), data)
	if err != nil {
		return err
	}
	group.Revision = doc.Revision
	return nil
}

// Update replaces a stored group, conditional on group.Revision when set.
// Groups without members must be deleted instead.
func (r *GroupRepository) Update(ctx context.Context, group *model.Group) error {
	data, err := r.encode("update group", group)
	if err != nil {
		return err
	}

	doc, err := r.store.Update(ctx, storage.TableGroups, string(group.ID), data, group.Revision)
	if err != nil {
		return groupNotExist(err, group.ID)
	}
	group.Revision = doc.Revision
	return nil
}

// Delete removes a group, conditional on revision when non-zero
func (r *GroupRepository) Delete(ctx context.Context, id model.GroupID, revision int64) error {
	id, err := model.ParseGroupID(string(id))
	if err != nil {
		return err
	}
	return groupNotExist(r.store.Delete(ctx, storage.TableGroups, string(id), revision), id)
}

func (r *GroupRepository) encode(op string, group *model.Group) (string, error) {
	id, err := model.ParseGroupID(string(group.ID))
	if err != nil {
		return "", err
	}
	group.ID = id
	if len(group.Members) == 0 {
		return "", model.Ef(model.KindInvalidState, op, "group has no members", nil)
	}
	return codec.EncodeGroup(group)
}

func groupNotExist(err error, id model.GroupID) error {
	if err != nil && model.KindOf(err) == model.KindNotFound {
		return model.Ef(model.KindNotFound, "group repository", string(id), model.ErrGroupNotExist)
	}
	return err
}
