package account

import (
	"context"
	"fmt"

	"github.com/jacentio/members/records"
)

// CreateOwned creates a record owned by the caller. Records owned by a user
// are assigned to the caller; photos and comments name their album or post,
// which must belong to the caller. Favorites and carts exist once per user
// and are only created with the user.
func (s *Service) CreateOwned(ctx context.Context, p Principal, c records.Collection, fields records.Patch) (records.Document, error) {
	const op = "create owned"
	field := records.OwnerField(c)
	if field == "" || c == records.Favorites || c == records.Carts {
		return nil, &OpError{Op: op, UserID: p.UserID, Kind: ErrValidationFailed,
			Err: fmt.Errorf("%s cannot be created directly", c)}
	}

	unlock, err := s.lock(ctx, op, p.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rest := make(records.Patch, len(fields))
	for name, v := range fields {
		if name != field {
			rest[name] = v
		}
	}
	if err := records.CheckPatch(c, rest); err != nil {
		return nil, opError(op, p.UserID, err)
	}

	doc, err := records.New(c)
	if err != nil {
		return nil, opError(op, p.UserID, err)
	}
	if err := records.ApplyPatch(doc, rest); err != nil {
		return nil, opError(op, p.UserID, err)
	}

	ownerID := p.UserID
	if parent := records.OwnerOf(c); parent != records.Users {
		ownerID, err = s.parentOf(ctx, p, parent, field, fields[field])
		if err != nil {
			return nil, opError(op, p.UserID, err)
		}
	}
	doc.(records.Owned).SetOwner(ownerID)

	if err := s.records.Create(ctx, doc); err != nil {
		return nil, opError(op, p.UserID, err)
	}
	return doc, nil
}

// parentOf resolves the id of a parent record and checks the caller owns it.
func (s *Service) parentOf(ctx context.Context, p Principal, c records.Collection, field string, ref any) (string, error) {
	id, _ := ref.(string)
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", records.ErrValidation, field)
	}
	doc, err := records.New(c)
	if err != nil {
		return "", err
	}
	if err := s.records.FindByID(ctx, c, id, doc); err != nil {
		return "", err
	}
	if owned, ok := doc.(records.Owned); !ok || owned.OwnerID() != p.UserID {
		return "", records.ErrNotFound
	}
	return id, nil
}
