package account_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/media"
	"github.com/jacentio/members/records"
	"github.com/jacentio/members/records/memstore"
)

func TestMain(m *testing.M) {
	records.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// fault fails an operation times times, or forever when times is negative.
type fault struct {
	err   error
	times int
}

// faultyStore injects failures into a records.Store. Keys are
// "<Method>:<collection>", e.g. "DeleteMany:photos".
type faultyStore struct {
	records.Store

	mu     sync.Mutex
	faults map[string]*fault
	calls  map[string]int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Store:  memstore.New(),
		faults: make(map[string]*fault),
		calls:  make(map[string]int),
	}
}

func (f *faultyStore) inject(key string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[key] = &fault{err: err, times: times}
}

func (f *faultyStore) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[string]*fault)
}

func (f *faultyStore) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *faultyStore) check(method string, c records.Collection) error {
	key := method + ":" + string(c)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	ft, ok := f.faults[key]
	if !ok || ft.times == 0 {
		return nil
	}
	if ft.times > 0 {
		ft.times--
	}
	return ft.err
}

func (f *faultyStore) FindByID(ctx context.Context, c records.Collection, id string, out records.Document) error {
	if err := f.check("FindByID", c); err != nil {
		return err
	}
	return f.Store.FindByID(ctx, c, id, out)
}

func (f *faultyStore) FindMany(ctx context.Context, c records.Collection, filter records.Filter, out any) error {
	if err := f.check("FindMany", c); err != nil {
		return err
	}
	return f.Store.FindMany(ctx, c, filter, out)
}

func (f *faultyStore) Save(ctx context.Context, doc records.Document) error {
	if err := f.check("Save", doc.Collection()); err != nil {
		return err
	}
	return f.Store.Save(ctx, doc)
}

func (f *faultyStore) UpdateByID(ctx context.Context, c records.Collection, id string, patch records.Patch, opts records.UpdateOptions, out records.Document) error {
	if err := f.check("UpdateByID", c); err != nil {
		return err
	}
	return f.Store.UpdateByID(ctx, c, id, patch, opts, out)
}

func (f *faultyStore) DeleteByID(ctx context.Context, c records.Collection, id string) error {
	if err := f.check("DeleteByID", c); err != nil {
		return err
	}
	return f.Store.DeleteByID(ctx, c, id)
}

func (f *faultyStore) DeleteMany(ctx context.Context, c records.Collection, filter records.Filter) (int, error) {
	if err := f.check("DeleteMany", c); err != nil {
		return 0, err
	}
	return f.Store.DeleteMany(ctx, c, filter)
}

// fakeAssets is an in-memory asset host.
type fakeAssets struct {
	mu sync.Mutex

	uploadErr  error
	noURL      bool
	destroyErr error
	refuse     bool // destroy returns OK false

	uploads  []string
	destroys []string
}

const assetHost = "http://assets.local/profiles/"

func (f *fakeAssets) Upload(_ context.Context, data []byte, name string, opts media.UploadOptions) (media.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return media.UploadResult{}, f.uploadErr
	}
	if len(data) == 0 {
		return media.UploadResult{}, media.ErrInvalidImage
	}
	f.uploads = append(f.uploads, name)
	if f.noURL {
		return media.UploadResult{}, nil
	}
	return media.UploadResult{URL: assetHost + "members-api/" + opts.Preset + "/" + name}, nil
}

func (f *fakeAssets) Destroy(_ context.Context, assetID string) (media.DestroyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, assetID)
	if f.destroyErr != nil {
		return media.DestroyResult{}, f.destroyErr
	}
	return media.DestroyResult{OK: !f.refuse}, nil
}

// recordingPublisher keeps published routing keys.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store     *faultyStore
	assets    *fakeAssets
	publisher *recordingPublisher
	svc       *account.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     newFaultyStore(),
		assets:    &fakeAssets{},
		publisher: &recordingPublisher{},
	}
	cfg := account.DefaultConfig()
	cfg.DeleteBackoff = time.Millisecond
	f.svc = account.New(f.store, f.assets,
		account.WithPublisher(f.publisher),
		account.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		account.WithConfig(cfg),
	)
	return f
}

func (f *fixture) createUser(t *testing.T, id string) *records.User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), &records.User{
		Meta:  records.Meta{ID: id},
		Name:  "Member " + id,
		Email: id + "@example.com",
	}, "hunter22")
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func (f *fixture) createOwned(t *testing.T, owner string, c records.Collection, fields records.Patch) string {
	t.Helper()
	doc, err := f.svc.CreateOwned(context.Background(), account.Principal{UserID: owner}, c, fields)
	if err != nil {
		t.Fatalf("create %s for %s: %v", c, owner, err)
	}
	return doc.Metadata().ID
}

func (f *fixture) user(t *testing.T, id string) *records.User {
	t.Helper()
	var u records.User
	if err := f.store.Store.FindByID(context.Background(), records.Users, id, &u); err != nil {
		t.Fatalf("find user %s: %v", id, err)
	}
	return &u
}

// owned counts the rows of c whose owner field equals owner.
func (f *fixture) owned(t *testing.T, c records.Collection, owner string) int {
	t.Helper()
	var rows []records.Meta
	if err := f.store.Store.FindMany(context.Background(), c, records.By(records.OwnerField(c), owner), &rows); err != nil {
		t.Fatalf("find %s of %s: %v", c, owner, err)
	}
	return len(rows)
}

var errBoom = errors.New("boom")
