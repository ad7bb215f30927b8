package account

import (
	"context"
	"fmt"

	"github.com/jacentio/members/records"
)

// ChangePassword replaces the caller's password after verifying the current
// one. The new password is hashed on save.
func (s *Service) ChangePassword(ctx context.Context, p Principal, current, next string) error {
	const op = "change password"
	unlock, err := s.lock(ctx, op, p.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	var u records.User
	if err := s.records.FindByID(ctx, records.Users, p.UserID, &u); err != nil {
		return opError(op, p.UserID, err)
	}
	if !u.MatchPassword(current) {
		return &OpError{Op: op, UserID: p.UserID, Kind: ErrInvalidCredential}
	}

	u.SetPassword(next)
	if err := s.records.Save(ctx, &u); err != nil {
		return opError(op, p.UserID, err)
	}
	s.logger.Info("password changed", "userID", p.UserID)
	return nil
}

// UpdateUser assigns fields to the user. A password among the fields is
// split off and staged so it gets hashed. The patch is validated against the
// patched user before anything is written, and a password change is saved
// together with the other fields in one versioned write, so a rejected patch
// changes nothing.
func (s *Service) UpdateUser(ctx context.Context, id string, fields records.Patch) (*records.User, error) {
	const op = "update"
	unlock, err := s.lock(ctx, op, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var u records.User
	if err := s.records.FindByID(ctx, records.Users, id, &u); err != nil {
		return nil, opError(op, id, err)
	}

	rest := make(records.Patch, len(fields))
	var password string
	var hasPassword bool
	for name, v := range fields {
		if name != "password" {
			rest[name] = v
			continue
		}
		pw, ok := v.(string)
		if !ok {
			return nil, opError(op, id, fmt.Errorf("%w: password must be a string", records.ErrValidation))
		}
		password, hasPassword = pw, pw != "" && pw != u.Password
	}

	if len(rest) > 0 {
		if err := records.CheckPatch(records.Users, rest); err != nil {
			return nil, opError(op, id, err)
		}
		merged := u
		if err := records.ApplyPatch(&merged, rest); err != nil {
			return nil, opError(op, id, err)
		}
		if err := records.Validate(&merged); err != nil {
			return nil, opError(op, id, err)
		}
	}

	if hasPassword {
		if len(rest) > 0 {
			if err := records.ApplyPatch(&u, rest); err != nil {
				return nil, opError(op, id, err)
			}
		}
		u.SetPassword(password)
		if err := s.records.Save(ctx, &u); err != nil {
			return nil, opError(op, id, err)
		}
		return &u, nil
	}

	if len(rest) == 0 {
		return &u, nil
	}

	var updated records.User
	opts := records.UpdateOptions{ReturnUpdated: true, Validate: true}
	if err := s.records.UpdateByID(ctx, records.Users, id, rest, opts, &updated); err != nil {
		return nil, opError(op, id, err)
	}
	return &updated, nil
}
