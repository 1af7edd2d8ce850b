// Package membership keeps User and Group documents mutually consistent.
//
// A group's member list is the source of truth; each user's group index is a
// derived view of it. Joins write the Group first and the User second, leaves
// write the User first, so an interrupted operation leaves at worst a missing
// index entry, which RepairGroupIndex and RepairUserIndex re-derive. Every
// write is conditional on the revision it was read at and is retried from a
// fresh read when it loses a race.
package membership

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/mcoot/movienight/internal/dependencies/clock"
	"github.com/mcoot/movienight/internal/dependencies/ids"
	"github.com/mcoot/movienight/internal/model"
	"github.com/mcoot/movienight/internal/observability/metrics"
	"github.com/mcoot/movienight/internal/repository"
	"github.com/mcoot/movienight/internal/services/credential"
	"github.com/mcoot/movienight/internal/services/watch"
	"github.com/mcoot/movienight/internal/storage"
)

// Config holds coordinator settings
type Config struct {
	// MaxAttempts bounds the read-modify-write retries of a single step
	MaxAttempts int
}

// DefaultConfig returns the default coordinator configuration
func DefaultConfig() Config {
	return Config{MaxAttempts: storage.DefaultMaxAttempts}
}

// Coordinator orchestrates operations that touch both users and groups
type Coordinator struct {
	cfg    Config
	users  *repository.UserRepository
	groups *repository.GroupRepository
	hasher credential.Hasher
	clock  clock.Clock
	ids    ids.Generator
	logger *slog.Logger
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(
	cfg Config,
	users *repository.UserRepository,
	groups *repository.GroupRepository,
	hasher credential.Hasher,
	clock clock.Clock,
	ids ids.Generator,
	logger *slog.Logger,
) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = storage.DefaultMaxAttempts
	}
	return &Coordinator{
		cfg:    cfg,
		users:  users,
		groups: groups,
		hasher: hasher,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// CreateUser registers a new user with an empty group index
func (c *Coordinator) CreateUser(ctx context.Context, info model.UserInfo) (user *model.User, err error) {
	const op = "create user"
	defer observe(op, &err)

	if err := model.ValidateUsername(info.Username); err != nil {
		return nil, err
	}
	if info.Password == "" {
		return nil, model.Ef(model.KindValidation, op, "password is required", nil)
	}

	hashed, salt, err := c.hasher.Hash(info.Password)
	if err != nil {
		return nil, err
	}

	now := clock.Unix(c.clock)
	user = &model.User{
		ID:             model.UserID(c.ids.NewID()),
		Username:       info.Username,
		HashedPassword: hashed,
		Salt:           salt,
		Groups:         []model.GroupRef{},
		DateCreated:    now,
		DateModified:   now,
	}
	if err := c.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	c.logger.Info("user created", "username", user.Username, "user_id", user.ID)
	return user, nil
}

// CreateGroup creates a group with the creator as its sole member and links
// it into the creator's index
func (c *Coordinator) CreateGroup(ctx context.Context, form model.GroupForm) (ref model.GroupRef, err error) {
	const op = "create group"
	defer observe(op, &err)

	name := strings.TrimSpace(form.GroupName)
	if name == "" {
		return model.GroupRef{}, model.Ef(model.KindValidation, op, "group name is required", nil)
	}
	if _, err := c.users.Get(ctx, form.Username); err != nil {
		return model.GroupRef{}, err
	}

	id, err := model.ParseGroupID(c.ids.NewID())
	if err != nil {
		return model.GroupRef{}, err
	}

	now := clock.Unix(c.clock)
	group := &model.Group{
		ID:            id,
		GroupName:     name,
		Members:       []string{form.Username},
		MoviesWatched: []model.Movie{},
		CurrentMovies: []model.Movie{},
		ReadyStatus:   map[string]bool{},
		Turn:          form.Username,
		SystemState:   model.StateAddingMovies,
		DateCreated:   now,
		DateModified:  now,
	}
	if err := c.groups.Insert(ctx, group); err != nil {
		return model.GroupRef{}, err
	}

	if err := c.linkUser(ctx, op, form.Username, group.Ref()); err != nil {
		c.logger.Warn("group created but creator index not updated",
			"group_id", group.ID, "username", form.Username, "error", err)
		return model.GroupRef{}, err
	}

	c.logger.Info("group created", "group_id", group.ID, "username", form.Username)
	return group.Ref(), nil
}

// JoinGroup adds username to the group. Joining a group the user is already
// in writes no Group change but still ensures the user's index entry, which
// completes a previously interrupted join.
func (c *Coordinator) JoinGroup(ctx context.Context, groupID model.GroupID, username string) (err error) {
	const op = "join group"
	defer observe(op, &err)

	if _, err := c.groups.Get(ctx, groupID); err != nil {
		return err
	}
	if _, err := c.users.Get(ctx, username); err != nil {
		return err
	}

	var ref model.GroupRef
	err = c.retry(ctx, op, func() error {
		group, err := c.groups.Get(ctx, groupID)
		if err != nil {
			return err
		}
		ref = group.Ref()
		if !group.AddMember(username) {
			return nil
		}
		group.DateModified = clock.Unix(c.clock)
		return c.groups.Update(ctx, group)
	})
	if err != nil {
		return err
	}

	if err := c.linkUser(ctx, op, username, ref); err != nil {
		c.logger.Warn("join wrote group but not user index",
			"group_id", ref.ID, "username", username, "error", err)
		return err
	}

	c.logger.Info("user joined group", "group_id", ref.ID, "username", username)
	return nil
}

// LeaveGroup removes username from the group, deleting the group when its
// last member leaves
func (c *Coordinator) LeaveGroup(ctx context.Context, groupID model.GroupID, username string) (err error) {
	const op = "leave group"
	defer observe(op, &err)

	group, err := c.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	groupID = group.ID
	user, err := c.users.Get(ctx, username)
	if err != nil {
		return err
	}
	if !group.HasMember(username) && !user.HasGroup(groupID) {
		return model.Ef(model.KindNotMember, op, username, model.ErrUserNotInGroup)
	}

	// User first: a crash after this leaves a member without an index entry
	err = c.retry(ctx, op, func() error {
		user, err := c.users.Get(ctx, username)
		if err != nil {
			return err
		}
		if !user.RemoveGroup(groupID) {
			return nil
		}
		user.DateModified = clock.Unix(c.clock)
		return c.users.Update(ctx, user)
	})
	if err != nil {
		return err
	}

	deleted := false
	err = c.retry(ctx, op, func() error {
		group, err := c.groups.Get(ctx, groupID)
		if err != nil {
			if errors.Is(err, model.ErrGroupNotExist) {
				return nil
			}
			return err
		}
		if !group.RemoveMember(username) {
			return nil
		}
		if len(group.Members) == 0 {
			deleted = true
			return c.groups.Delete(ctx, group.ID, group.Revision)
		}
		// The leaver may have been the last member holding up the transition
		if group.AllReady() {
			if err := watch.Advance(op, group); err != nil && !errors.Is(err, model.ErrNoMovies) {
				return err
			}
		}
		group.DateModified = clock.Unix(c.clock)
		return c.groups.Update(ctx, group)
	})
	if err != nil {
		c.logger.Warn("leave cleared user index but not group",
			"group_id", groupID, "username", username, "error", err)
		return err
	}

	// A concurrent RepairGroupIndex may have re-added the entry between the
	// two writes
	if _, err := c.dropRefUnlessMember(ctx, op, groupID, username); err != nil {
		return err
	}

	c.logger.Info("user left group", "group_id", groupID, "username", username, "group_deleted", deleted)
	return nil
}

// UpdatePassword replaces a user's credentials after verifying the old
// password. A wrong old password fails with ErrAuthFailure and leaves the
// stored credentials untouched.
func (c *Coordinator) UpdatePassword(ctx context.Context, old, updated model.UserInfo) (err error) {
	const op = "update password"
	defer observe(op, &err)

	if updated.Username != "" && updated.Username != old.Username {
		return model.Ef(model.KindValidation, op, "username cannot be changed", nil)
	}
	if updated.Password == "" {
		return model.Ef(model.KindValidation, op, "password is required", nil)
	}

	return c.retry(ctx, op, func() error {
		user, err := c.users.Get(ctx, old.Username)
		if err != nil {
			return err
		}

		ok, err := c.hasher.Verify(old.Password, user.Salt, user.HashedPassword)
		if err != nil {
			return err
		}
		if !ok {
			return model.Ef(model.KindAuthFailure, op, "invalid credentials", nil)
		}

		hashed, salt, err := c.hasher.Hash(updated.Password)
		if err != nil {
			return err
		}
		user.HashedPassword = hashed
		user.Salt = salt
		user.DateModified = clock.Unix(c.clock)
		return c.users.Update(ctx, user)
	})
}

// GetUser retrieves a user by username
func (c *Coordinator) GetUser(ctx context.Context, username string) (*model.User, error) {
	return c.users.Get(ctx, username)
}

// GetGroup retrieves a group by id
func (c *Coordinator) GetGroup(ctx context.Context, groupID model.GroupID) (*model.Group, error) {
	return c.groups.Get(ctx, groupID)
}

// GroupMembers returns the group's members in join order
func (c *Coordinator) GroupMembers(ctx context.Context, groupID model.GroupID) ([]string, error) {
	group, err := c.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return group.Members, nil
}

// VerifyGroupMember fails with ErrNotMember unless username is in the group
func (c *Coordinator) VerifyGroupMember(ctx context.Context, groupID model.GroupID, username string) error {
	group, err := c.groups.Get(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(username) {
		return model.Ef(model.KindNotMember, "verify group member", username, model.ErrUserNotInGroup)
	}
	return nil
}

// RepairGroupIndex re-derives every member's index entry for the group.
// Returns the number of users whose index changed.
func (c *Coordinator) RepairGroupIndex(ctx context.Context, groupID model.GroupID) (repaired int, err error) {
	const op = "repair group index"
	defer observe(op, &err)

	group, err := c.groups.Get(ctx, groupID)
	if err != nil {
		return 0, err
	}
	ref := group.Ref()

	for _, username := range group.Members {
		changed := false
		err := c.retry(ctx, op, func() error {
			changed = false
			user, err := c.users.Get(ctx, username)
			if err != nil {
				return err
			}
			if !setRef(user, ref) {
				return nil
			}
			changed = true
			user.DateModified = clock.Unix(c.clock)
			return c.users.Update(ctx, user)
		})
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				c.logger.Warn("group lists unknown user", "group_id", ref.ID, "username", username)
				continue
			}
			return repaired, err
		}
		if !changed {
			continue
		}

		// The snapshot may predate a concurrent leave; undo against a fresh read
		dropped, err := c.dropRefUnlessMember(ctx, op, ref.ID, username)
		if err != nil {
			return repaired, err
		}
		if !dropped {
			repaired++
			metrics.IndexRepairsTotal.WithLabelValues("added").Inc()
		}
	}

	if repaired > 0 {
		c.logger.Info("repaired group index", "group_id", ref.ID, "users", repaired)
	}
	return repaired, nil
}

// RepairUserIndex drops index entries for groups that no longer exist or no
// longer list the user, and refreshes stale group names. Returns the number
// of entries changed.
func (c *Coordinator) RepairUserIndex(ctx context.Context, username string) (repaired int, err error) {
	const op = "repair user index"
	defer observe(op, &err)

	err = c.retry(ctx, op, func() error {
		repaired = 0
		user, err := c.users.Get(ctx, username)
		if err != nil {
			return err
		}

		kept := make([]model.GroupRef, 0, len(user.Groups))
		for _, ref := range user.Groups {
			group, err := c.groups.Get(ctx, ref.ID)
			switch {
			case errors.Is(err, model.ErrGroupNotExist), errors.Is(err, model.ErrInvalidIdentifier):
				repaired++
				continue
			case err != nil:
				return err
			case !group.HasMember(username):
				repaired++
				continue
			case group.GroupName != ref.Name:
				repaired++
			}
			kept = append(kept, group.Ref())
		}
		if repaired == 0 {
			return nil
		}

		user.Groups = kept
		user.DateModified = clock.Unix(c.clock)
		return c.users.Update(ctx, user)
	})
	if err != nil {
		return 0, err
	}

	if repaired > 0 {
		metrics.IndexRepairsTotal.WithLabelValues("dropped").Add(float64(repaired))
		c.logger.Info("repaired user index", "username", username, "entries", repaired)
	}
	return repaired, nil
}

// linkUser ensures username's index holds ref
func (c *Coordinator) linkUser(ctx context.Context, op, username string, ref model.GroupRef) error {
	return c.retry(ctx, op, func() error {
		user, err := c.users.Get(ctx, username)
		if err != nil {
			return err
		}
		if !setRef(user, ref) {
			return nil
		}
		user.DateModified = clock.Unix(c.clock)
		return c.users.Update(ctx, user)
	})
}

func (c *Coordinator) retry(ctx context.Context, op string, fn func() error) error {
	return storage.Retry(ctx, c.cfg.MaxAttempts, func() error {
		err := fn()
		if errors.Is(err, storage.ErrRevisionMismatch) {
			metrics.RevisionConflictsTotal.WithLabelValues(op).Inc()
			c.logger.Debug("revision conflict, retrying", "op", op)
		}
		return err
	})
}

// dropRefUnlessMember removes groupID from the user's index when a fresh
// read of the group no longer lists the user. Reports whether it removed one.
func (c *Coordinator) dropRefUnlessMember(ctx context.Context, op string, groupID model.GroupID, username string) (bool, error) {
	dropped := false
	err := c.retry(ctx, op, func() error {
		dropped = false
		group, err := c.groups.Get(ctx, groupID)
		switch {
		case err == nil && group.HasMember(username):
			return nil
		case err != nil && !errors.Is(err, model.ErrGroupNotExist):
			return err
		}

		user, err := c.users.Get(ctx, username)
		if err != nil {
			return err
		}
		if !user.RemoveGroup(groupID) {
			return nil
		}
		dropped = true
		user.DateModified = clock.Unix(c.clock)
		return c.users.Update(ctx, user)
	})
	return dropped, err
}

// setRef adds ref to the user's index or corrects its name. Reports whether
// the index changed.
func setRef(user *model.User, ref model.GroupRef) bool {
	for i, existing := range user.Groups {
		if existing.ID == ref.ID {
			if existing.Name == ref.Name {
				return false
			}
			user.Groups[i].Name = ref.Name
			return true
		}
	}
	return user.AddGroup(ref)
}

func observe(op string, err *error) {
	metrics.MembershipOperationsTotal.WithLabelValues(op, metrics.Result(*err)).Inc()
}
