package watch

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
	"github.com/mcoot/movienight/internal/storage"
)

// Controller manages the watch-state machine of a group
type Controller struct {
	groups      *repository.GroupRepository
	clock       clock.Clock
	ids         ids.Generator
	logger      *slog.Logger
	maxAttempts int
}

// NewController creates a new watch Controller
func NewController(
	groups *repository.GroupRepository,
	clock clock.Clock,
	ids ids.Generator,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		groups:      groups,
		clock:       clock,
		ids:         ids,
		logger:      logger,
		maxAttempts: storage.DefaultMaxAttempts,
	}
}

// AddMovie proposes a movie to the group. Only legal while adding movies.
// A movie without an ID is assigned one.
func (c *Controller) AddMovie(ctx context.Context, groupID model.GroupID, username string, movie model.Movie) (*model.Group, error) {
	const op = "add movie"

	movie.Title = strings.TrimSpace(movie.Title)
	if movie.Title == "" {
		return nil, model.Ef(model.KindValidation, op, "title is required", nil)
	}
	if movie.ID == "" {
		movie.ID = c.ids.NewID()
	}
	movie.AddedBy = username

	return c.mutate(ctx, op, groupID, username, func(group *model.Group) error {
		if group.SystemState != model.StateAddingMovies {
			return model.Ef(model.KindInvalidState, op, string(group.SystemState), nil)
		}
		if group.HasMovie(movie.ID) {
			return model.Ef(model.KindConflict, op, movie.ID, model.ErrMovieAlreadyAdded)
		}
		group.CurrentMovies = append(group.CurrentMovies, movie)
		return nil
	})
}

// SetReady records a member's readiness. When every member is ready the
// group advances to its next state and all flags reset.
func (c *Controller) SetReady(ctx context.Context, groupID model.GroupID, username string, ready bool) (*model.Group, error) {
	const op = "set ready"

	return c.mutate(ctx, op, groupID, username, func(group *model.Group) error {
		group.ReadyStatus[username] = ready
		if !group.AllReady() {
			return nil
		}
		return Advance(op, group)
	})
}

// Advance moves a group whose members are all ready to its next state and
// resets the ready flags. Leaving adding_movies requires a current movie;
// otherwise the group is left untouched and ErrNoMovies returned.
func Advance(op string, group *model.Group) error {
	switch group.SystemState {
	case model.StateAddingMovies:
		if len(group.CurrentMovies) == 0 {
			return model.Ef(model.KindInvalidState, op, "cannot vote", model.ErrNoMovies)
		}
	case model.StateWatching:
		group.MoviesWatched = append(group.MoviesWatched, group.CurrentMovies...)
		group.CurrentMovies = []model.Movie{}
		group.Turn = group.NextTurn()
	}

	group.SystemState = group.SystemState.Next()
	group.ReadyStatus = make(map[string]bool, len(group.Members))
	metrics.GroupStateTransitionsTotal.WithLabelValues(string(group.SystemState)).Inc()
	return nil
}

// mutate applies fn to a fresh read of the group and writes it back,
// retrying on revision conflicts
func (c *Controller) mutate(ctx context.Context, op string, groupID model.GroupID, username string, fn func(*model.Group) error) (*model.Group, error) {
	var result *model.Group
	err := storage.Retry(ctx, c.maxAttempts, func() error {
		group, err := c.groups.Get(ctx, groupID)
		if err != nil {
			return err
		}
		if !group.HasMember(username) {
			return model.Ef(model.KindNotMember, op, username, model.ErrUserNotInGroup)
		}

		before := group.SystemState
		if err := fn(group); err != nil {
			return err
		}
		group.DateModified = clock.Unix(c.clock)
		if err := c.groups.Update(ctx, group); err != nil {
			if errors.Is(err, storage.ErrRevisionMismatch) {
				metrics.RevisionConflictsTotal.WithLabelValues(op).Inc()
			}
			return err
		}

		if group.SystemState != before {
			c.logger.Info("group state advanced",
				"group_id", group.ID, "from", before, "to", group.SystemState)
		}
		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
