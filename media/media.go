// Package media stores member profile images on an S3-compatible object
// store.
//
// Images are addressed by asset ids under a Namespace. A stored photo
// reference belongs to this service only if it contains the namespace prefix;
// anything else is a third-party URL the service must never destroy.
package media

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidImage is returned when uploaded bytes cannot be decoded as an image.
var ErrInvalidImage = errors.New("members/media: invalid image")

// DefaultMaxPixels caps the decoded size of an upload at 40 megapixels.
const DefaultMaxPixels = 40_000_000

// Namespace locates managed assets: Root names the service, Folder the kind
// of asset.
type Namespace struct {
	Root   string
	Folder string
}

// DefaultNamespace is where profile images live.
func DefaultNamespace() Namespace {
	return Namespace{Root: "members-api", Folder: "users_profiles"}
}

// Prefix returns the path every managed asset id starts with.
func (n Namespace) Prefix() string {
	return n.Root + "/" + n.Folder + "/"
}

// AssetID returns the asset id of the image named name, such as a user id.
func (n Namespace) AssetID(name string) string {
	return n.Prefix() + name
}

// Owns reports whether ref, a stored photo URL, points at a managed asset.
// The check is a path-prefix match on purpose: it is the compatibility
// contract with any host the assets move to.
func (n Namespace) Owns(ref string) bool {
	return ref != "" && strings.Contains(ref, "/"+n.Prefix())
}

// UploadOptions describes the transformation applied on upload.
type UploadOptions struct {
	Width  int
	Height int

	// Preset is the folder within the namespace root the asset is stored in.
	Preset string

	// MaxPixels rejects images whose declared width times height exceeds
	// it. Zero means DefaultMaxPixels.
	MaxPixels int
}

// UploadResult describes a stored asset.
type UploadResult struct {
	URL string
}

// DestroyResult reports whether the asset is confirmed gone.
type DestroyResult struct {
	OK bool
}

// Assets is a remote asset host.
type Assets interface {
	// Upload stores data as name under opts.Preset and returns its public URL.
	Upload(ctx context.Context, data []byte, name string, opts UploadOptions) (UploadResult, error)

	// Destroy removes the asset with the given id. A nil error with OK false
	// means the host did not confirm the removal.
	Destroy(ctx context.Context, assetID string) (DestroyResult, error)
}
