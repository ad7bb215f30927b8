package account

import (
	"context"
	"errors"

	"github.com/jacentio/members/media"
	"github.com/jacentio/members/records"
)

var (
	errNoURL       = errors.New("upload returned no url")
	errUnconfirmed = errors.New("destroy not confirmed")
)

// SetProfileImage uploads data as the caller's profile image and links it to
// the user. If the upload fails the user is untouched. If linking fails after
// LinkAttempts tries, a freshly uploaded image is destroyed again; an image
// that replaced an earlier managed one shares its asset id and is kept.
func (s *Service) SetProfileImage(ctx context.Context, p Principal, data []byte) (string, error) {
	const op = "set profile image"
	unlock, err := s.lock(ctx, op, p.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	var u records.User
	if err := s.records.FindByID(ctx, records.Users, p.UserID, &u); err != nil {
		return "", opError(op, p.UserID, err)
	}
	ns := s.cfg.Namespace
	hadManaged := ns.Owns(u.Photo)

	res, err := s.assets.Upload(ctx, data, p.UserID, media.UploadOptions{
		Width:     s.cfg.ImageSize,
		Height:    s.cfg.ImageSize,
		Preset:    ns.Folder,
		MaxPixels: s.cfg.MaxImagePixels,
	})
	if err == nil && res.URL == "" {
		err = errNoURL
	}
	if err != nil {
		kind := ErrUpstreamAssetFailure
		if errors.Is(err, media.ErrInvalidImage) {
			kind = ErrValidationFailed
		}
		return "", &OpError{Op: op, UserID: p.UserID, Kind: kind, Err: err}
	}

	if err := s.linkPhoto(ctx, p.UserID, res.URL); err != nil {
		if !hadManaged {
			s.discardUpload(ctx, p.UserID)
		}
		return "", opError(op, p.UserID, err)
	}

	s.logger.Info("profile image set", "userID", p.UserID)
	return res.URL, nil
}

// ClearProfileImage unlinks the caller's profile image. A managed image is
// destroyed first and the user is only changed once the host confirms the
// removal. A third-party image is unlinked without contacting the host.
func (s *Service) ClearProfileImage(ctx context.Context, p Principal) error {
	const op = "clear profile image"
	unlock, err := s.lock(ctx, op, p.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	var u records.User
	if err := s.records.FindByID(ctx, records.Users, p.UserID, &u); err != nil {
		return opError(op, p.UserID, err)
	}

	if ns := s.cfg.Namespace; ns.Owns(u.Photo) {
		res, err := s.assets.Destroy(ctx, ns.AssetID(p.UserID))
		if err == nil && !res.OK {
			err = errUnconfirmed
		}
		if err != nil {
			return &OpError{Op: op, UserID: p.UserID, Kind: ErrUpstreamAssetFailure, Err: err}
		}
	}

	if u.Photo == "" {
		return nil
	}
	if err := s.linkPhoto(ctx, p.UserID, ""); err != nil {
		return opError(op, p.UserID, err)
	}
	s.logger.Info("profile image cleared", "userID", p.UserID)
	return nil
}

// linkPhoto stores url as the user's photo, reloading and retrying when a
// concurrent write bumps the version.
func (s *Service) linkPhoto(ctx context.Context, id, url string) error {
	var err error
	for attempt := 1; attempt <= s.cfg.LinkAttempts; attempt++ {
		var u records.User
		if err = s.records.FindByID(ctx, records.Users, id, &u); err != nil {
			return err
		}
		u.Photo = url
		if err = s.records.Save(ctx, &u); !errors.Is(err, records.ErrConcurrentModification) {
			return err
		}
		s.logger.Debug("photo link conflict", "userID", id, "attempt", attempt)
	}
	return err
}

func (s *Service) discardUpload(ctx context.Context, id string) {
	assetID := s.cfg.Namespace.AssetID(id)
	res, err := s.assets.Destroy(ctx, assetID)
	if err == nil && !res.OK {
		err = errUnconfirmed
	}
	if err != nil {
		s.logger.Warn("orphaned profile image", "userID", id, "asset", assetID, "error", err)
	}
}
