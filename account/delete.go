package account

import (
	"context"
	"errors"
	"time"

	"github.com/jacentio/members/internal/events"
	"github.com/jacentio/members/records"
)

// Delete removes a user and every record the user owns. Owned collections are
// purged in ownership order: grandchildren are found through their parents'
// ids, which are read before any parent is deleted. The user row goes last,
// so a failure part way leaves the user in place as the owner of whatever
// remains.
//
// Completed steps are not rolled back. The returned error names the step that
// failed, and calling Delete again resumes the cleanup: every step is a no-op
// once its rows are gone. Deletion does not touch the profile image; use
// ClearProfileImage first for a full cleanup.
func (s *Service) Delete(ctx context.Context, id string) error {
	const op = "delete"
	unlock, err := s.lock(ctx, op, id)
	if err != nil {
		return err
	}
	defer unlock()

	var u records.User
	if err := s.records.FindByID(ctx, records.Users, id, &u); err != nil {
		return opError(op, id, err)
	}

	removed, step, err := s.cascade(ctx, records.Users, id)
	if err != nil {
		s.logger.Error("cascade failed", "userID", id, "step", step, "removed", removed, "error", err)
		return &OpError{Op: op, UserID: id, Step: step, Kind: ErrPartialCascade, Err: err}
	}

	// Orphan protection refuses the delete if a row was added meanwhile by
	// another process; a retry of Delete picks it up.
	if err := s.deleteUserRow(ctx, id); err != nil {
		s.logger.Error("cascade failed", "userID", id, "step", string(records.Users), "removed", removed, "error", err)
		return &OpError{Op: op, UserID: id, Step: string(records.Users), Kind: ErrPartialCascade, Err: err}
	}

	s.logger.Info("user deleted", "userID", id, "removed", removed)
	s.publish(ctx, events.UserDeleted, events.Deleted{UserID: id, Removed: removed, At: s.now()})
	return nil
}

// deleteUserRow deletes the user row, retrying with backoff while the orphan
// check still reports children. Owner indexes are eventually consistent, so
// right after the cascade they can list rows that are already gone.
func (s *Service) deleteUserRow(ctx context.Context, id string) error {
	backoff := s.cfg.DeleteBackoff
	for attempt := 1; ; attempt++ {
		err := s.records.DeleteByID(ctx, records.Users, id)
		if err == nil || !errors.Is(err, records.ErrHasChildren) || attempt >= s.cfg.DeleteAttempts {
			return err
		}
		s.logger.Debug("owned rows still listed, retrying user delete", "userID", id, "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// PurgeOwned removes every record owned by a user without touching the user
// row. It serves sweeping up after a user that is already gone and returns
// how many records it removed.
func (s *Service) PurgeOwned(ctx context.Context, id string) (int, error) {
	const op = "purge"
	unlock, err := s.lock(ctx, op, id)
	if err != nil {
		return 0, err
	}
	defer unlock()

	removed, step, err := s.cascade(ctx, records.Users, id)
	if err != nil {
		return removed, &OpError{Op: op, UserID: id, Step: step, Kind: ErrPartialCascade, Err: err}
	}
	return removed, nil
}

// cascade deletes everything owned by the document id of collection c and
// reports the collection it stopped at on failure.
func (s *Service) cascade(ctx context.Context, c records.Collection, id string) (int, string, error) {
	removed := 0
	for _, link := range records.Children(c) {
		n, step, err := s.purge(ctx, link, id)
		removed += n
		if err != nil {
			return removed, step, err
		}
	}
	return removed, "", nil
}

// purge deletes the rows of link.Collection owned by ownerID, after their
// own children.
func (s *Service) purge(ctx context.Context, link records.Link, ownerID string) (int, string, error) {
	removed := 0
	step := string(link.Collection)
	filter := records.By(link.Field, ownerID)

	if len(records.Children(link.Collection)) > 0 {
		var parents []records.Meta
		if err := s.records.FindMany(ctx, link.Collection, filter, &parents); err != nil {
			return removed, step, err
		}
		for _, parent := range parents {
			n, childStep, err := s.cascade(ctx, link.Collection, parent.ID)
			removed += n
			if err != nil {
				return removed, childStep, err
			}
		}
	}

	n, err := s.records.DeleteMany(ctx, link.Collection, filter)
	removed += n
	if err != nil {
		return removed, step, err
	}
	if n > 0 {
		s.logger.Debug("purged", "collection", step, "owner", ownerID, "count", n)
	}
	return removed, "", nil
}
