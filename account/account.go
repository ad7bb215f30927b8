// Package account implements the member lifecycle: provisioning, profile
// images, credential and field updates, and cascading deletion of everything
// a member owns.
//
// Every mutating operation on a user holds that user's lock for its whole
// duration, so within one process a deletion never interleaves with an
// update or an owned-record create for the same user. Across processes the
// stores' version checks and parent checks arbitrate.
package account

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/members/internal/events"
	"github.com/jacentio/members/internal/keylock"
	"github.com/jacentio/members/media"
	"github.com/jacentio/members/records"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
}

// Config tunes the service.
type Config struct {
	// Namespace locates managed profile images.
	Namespace media.Namespace

	// ImageSize is the side in pixels profile images are cropped to.
	ImageSize int

	// MaxImagePixels caps the declared size of an uploaded image.
	MaxImagePixels int

	// LinkAttempts bounds how often linking an uploaded image is retried on
	// version conflicts.
	LinkAttempts int

	// DeleteAttempts bounds how often the final user delete is retried while
	// owner indexes still list rows the cascade already removed.
	DeleteAttempts int

	// DeleteBackoff is the first pause between those retries; it doubles
	// after each one.
	DeleteBackoff time.Duration
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Namespace:      media.DefaultNamespace(),
		ImageSize:      400,
		MaxImagePixels: media.DefaultMaxPixels,
		LinkAttempts:   3,
		DeleteAttempts: 5,
		DeleteBackoff:  200 * time.Millisecond,
	}
}

// Service runs account operations against a record store and an asset host.
type Service struct {
	records   records.Store
	assets    media.Assets
	publisher events.Publisher
	locks     *keylock.Locker
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher publishes lifecycle events through p.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// New creates a Service.
func New(rs records.Store, assets media.Assets, opts ...Option) *Service {
	s := &Service{
		records:   rs,
		assets:    assets,
		publisher: events.Nop{},
		locks:     keylock.New(),
		cfg:       DefaultConfig(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cfg.LinkAttempts < 1 {
		s.cfg.LinkAttempts = 1
	}
	if s.cfg.DeleteAttempts < 1 {
		s.cfg.DeleteAttempts = 1
	}
	return s
}

// Create provisions a user together with its favorites list and cart. The
// three records are written atomically: either all exist afterwards or none.
func (s *Service) Create(ctx context.Context, u *records.User, password string) (*records.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.SetPassword(password)

	fav := &records.Favorite{User: u.ID}
	cart := &records.Cart{User: u.ID}
	if err := s.records.Create(ctx, u, fav, cart); err != nil {
		return nil, opError("create", u.ID, err)
	}

	s.logger.Info("user created", "userID", u.ID)
	s.publish(ctx, events.UserCreated, events.Created{UserID: u.ID, Email: u.Email, At: s.now()})
	return u, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (*records.User, error) {
	var u records.User
	if err := s.records.FindByID(ctx, records.Users, id, &u); err != nil {
		return nil, opError("get", id, err)
	}
	return &u, nil
}

// Me returns the calling user.
func (s *Service) Me(ctx context.Context, p Principal) (*records.User, error) {
	return s.Get(ctx, p.UserID)
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]records.User, error) {
	var users []records.User
	if err := s.records.FindMany(ctx, records.Users, records.Filter{}, &users); err != nil {
		return nil, opError("list", "", err)
	}
	return users, nil
}

// lock takes id's lock for op.
func (s *Service) lock(ctx context.Context, op, id string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, &OpError{Op: op, UserID: id, Err: err}
	}
	return unlock, nil
}

func (s *Service) publish(ctx context.Context, key string, v any) {
	if err := s.publisher.Publish(ctx, key, v); err != nil {
		s.logger.Warn("publish event failed", "key", key, "error", err)
	}
}
