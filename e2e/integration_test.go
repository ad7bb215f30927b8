//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run with: go test -tags=e2e -v ./e2e/...
//
// MEMBERS_E2E_ENDPOINT points the tests at DynamoDB Local
// (e.g. http://localhost:8000); without it the default AWS credentials and
// region are used.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/members/account"
	"github.com/jacentio/members/records"
	"github.com/jacentio/members/store"
	"github.com/jacentio/members/stream"
)

// Tables are unique per test run to avoid conflicts.
const tablePrefix = "members-e2e-test"

var (
	testID    string
	storeCfg  store.Config
	ddbClient *dynamodb.Client
	testStore *records.DynamoStore
	svc       *account.Service
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	records.HashCost = bcrypt.MinCost

	testID = uuid.New().String()[:8]
	storeCfg = store.DefaultConfig()
	storeCfg.TablePrefix = fmt.Sprintf("%s-%s-", tablePrefix, testID)
	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table prefix: %s\n", storeCfg.TablePrefix)

	ctx := context.Background()
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint := os.Getenv("MEMBERS_E2E_ENDPOINT"); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	if err := createTables(ctx); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}

	testStore = records.NewDynamoStore(ddbClient, storeCfg)
	svc = account.New(testStore, nil)

	code := m.Run()

	if err := deleteTables(ctx); err != nil {
		fmt.Printf("Failed to delete tables: %v\n", err)
	}

	os.Exit(code)
}

func createTables(ctx context.Context) error {
	fmt.Println("Creating test tables...")
	if err := records.CreateTables(ctx, ddbClient, storeCfg); err != nil {
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	for _, def := range records.TableDefinitions(storeCfg) {
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: def.TableName,
		}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", aws.ToString(def.TableName), err)
		}
	}

	fmt.Println("All tables created and active")
	return nil
}

func deleteTables(ctx context.Context) error {
	fmt.Println("Deleting test tables...")

	for _, def := range records.TableDefinitions(storeCfg) {
		_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: def.TableName,
		})
		if err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", aws.ToString(def.TableName), err)
		}
	}

	fmt.Println("Tables deleted")
	return nil
}

// --- Helpers ---

func newUser(t *testing.T, ctx context.Context) *records.User {
	t.Helper()
	id := uuid.New().String()
	u, err := svc.Create(ctx, &records.User{
		Meta:  records.Meta{ID: id},
		Name:  "User " + id[:8],
		Email: id[:8] + "@example.com",
	}, "secret1")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func create(t *testing.T, ctx context.Context, docs ...records.Document) {
	t.Helper()
	if err := testStore.Create(ctx, docs...); err != nil {
		t.Fatalf("create: %v", err)
	}
}

// eventually retries f while owner indexes catch up.
func eventually(t *testing.T, f func() error) {
	t.Helper()
	var err error
	for i := 0; i < 20; i++ {
		if err = f(); err == nil {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("condition not met: %v", err)
}

func countOwned(ctx context.Context, c records.Collection, field, id string) (int, error) {
	switch c {
	case records.Todos:
		var out []records.Todo
		err := testStore.FindMany(ctx, c, records.By(field, id), &out)
		return len(out), err
	case records.Photos:
		var out []records.Photo
		err := testStore.FindMany(ctx, c, records.By(field, id), &out)
		return len(out), err
	case records.Comments:
		var out []records.Comment
		err := testStore.FindMany(ctx, c, records.By(field, id), &out)
		return len(out), err
	}
	return 0, fmt.Errorf("unsupported collection %s", c)
}

// --- Provisioning ---

func TestCreateUser_ProvisionsSideRecords(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)

	var got records.User
	if err := testStore.FindByID(ctx, records.Users, u.ID, &got); err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("expected version 1, got %d", got.Version)
	}
	if got.Password == "secret1" || !got.MatchPassword("secret1") {
		t.Error("expected the password to be stored hashed")
	}

	eventually(t, func() error {
		var favs []records.Favorite
		if err := testStore.FindMany(ctx, records.Favorites, records.By("user", u.ID), &favs); err != nil {
			return err
		}
		var carts []records.Cart
		if err := testStore.FindMany(ctx, records.Carts, records.By("user", u.ID), &carts); err != nil {
			return err
		}
		if len(favs) != 1 || len(carts) != 1 {
			return fmt.Errorf("expected 1 favorites and 1 cart, got %d and %d", len(favs), len(carts))
		}
		return nil
	})
}

func TestCreateUser_DuplicateEmailWritesNothing(t *testing.T) {
	ctx := context.Background()
	first := newUser(t, ctx)

	id := uuid.New().String()
	_, err := svc.Create(ctx, &records.User{
		Meta:  records.Meta{ID: id},
		Name:  "Copy",
		Email: first.Email,
	}, "secret1")
	if !errors.Is(err, records.ErrDuplicateValue) {
		t.Fatalf("expected ErrDuplicateValue, got %v", err)
	}

	var got records.User
	if err := testStore.FindByID(ctx, records.Users, id, &got); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("expected no user row, got %v", err)
	}
	var favs []records.Favorite
	if err := testStore.FindMany(ctx, records.Favorites, records.By("user", id), &favs); err != nil {
		t.Fatalf("FindMany failed: %v", err)
	}
	if len(favs) != 0 {
		t.Errorf("expected no favorites row, got %d", len(favs))
	}
}

// --- Record store ---

func TestCreate_OwnedRecord_ParentNotFound(t *testing.T) {
	ctx := context.Background()

	err := testStore.Create(ctx, &records.Todo{Title: "orphan", User: uuid.New().String()})
	if !errors.Is(err, records.ErrParentNotFound) {
		t.Errorf("expected ErrParentNotFound, got %v", err)
	}
}

func TestSave_StaleVersion(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)

	var a, b records.User
	if err := testStore.FindByID(ctx, records.Users, u.ID, &a); err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if err := testStore.FindByID(ctx, records.Users, u.ID, &b); err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}

	a.Name = "first writer"
	if err := testStore.Save(ctx, &a); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	b.Name = "second writer"
	if err := testStore.Save(ctx, &b); !errors.Is(err, records.ErrConcurrentModification) {
		t.Errorf("expected ErrConcurrentModification, got %v", err)
	}
}

func TestUpdateByID_NilRemovesAttribute(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)

	var out records.User
	err := testStore.UpdateByID(ctx, records.Users, u.ID, records.Patch{"website": "https://example.com"},
		records.UpdateOptions{ReturnUpdated: true, Validate: true}, &out)
	if err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}
	if out.Website != "https://example.com" || out.Version != 2 {
		t.Errorf("unexpected user after update: website=%q version=%d", out.Website, out.Version)
	}

	err = testStore.UpdateByID(ctx, records.Users, u.ID, records.Patch{"website": nil},
		records.UpdateOptions{ReturnUpdated: true}, &out)
	if err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}
	if out.Website != "" {
		t.Errorf("expected website removed, got %q", out.Website)
	}
}

func TestUpdateByID_ChangesUniqueEmail(t *testing.T) {
	ctx := context.Background()
	a := newUser(t, ctx)
	b := newUser(t, ctx)

	err := testStore.UpdateByID(ctx, records.Users, b.ID, records.Patch{"email": a.Email}, records.UpdateOptions{}, nil)
	if !errors.Is(err, records.ErrDuplicateValue) {
		t.Fatalf("expected ErrDuplicateValue, got %v", err)
	}

	fresh := "fresh-" + b.Email
	if err := testStore.UpdateByID(ctx, records.Users, b.ID, records.Patch{"email": fresh}, records.UpdateOptions{}, nil); err != nil {
		t.Fatalf("UpdateByID failed: %v", err)
	}

	// The old address is released.
	if err := testStore.UpdateByID(ctx, records.Users, a.ID, records.Patch{"email": b.Email}, records.UpdateOptions{}, nil); err != nil {
		t.Errorf("expected released email to be reusable, got %v", err)
	}
}

func TestDeleteByID_RefusedWhileOwnedRowsRemain(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)

	eventually(t, func() error {
		err := testStore.DeleteByID(ctx, records.Users, u.ID)
		if !errors.Is(err, records.ErrHasChildren) {
			return fmt.Errorf("expected ErrHasChildren, got %v", err)
		}
		return nil
	})
}

func TestDeleteMany_MoreThanOneBatch(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)

	var docs []records.Document
	for i := 0; i < 60; i++ {
		docs = append(docs, &records.Todo{Title: "todo " + strconv.Itoa(i), User: u.ID})
	}
	for start := 0; start < len(docs); start += 20 {
		create(t, ctx, docs[start:min(start+20, len(docs))]...)
	}

	eventually(t, func() error {
		n, err := countOwned(ctx, records.Todos, "user", u.ID)
		if err == nil && n != 60 {
			err = fmt.Errorf("expected 60 todos, got %d", n)
		}
		return err
	})

	n, err := testStore.DeleteMany(ctx, records.Todos, records.By("user", u.ID))
	if err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if n != 60 {
		t.Errorf("expected 60 removed, got %d", n)
	}
}

// --- Cascading deletion ---

func seedGraph(t *testing.T, ctx context.Context, u *records.User) (album *records.Album, post *records.Post) {
	t.Helper()
	album = &records.Album{Title: "holiday", User: u.ID}
	post = &records.Post{Title: "hello", Body: "world", User: u.ID}
	create(t, ctx,
		&records.Address{Street: "Kulas Light", City: "Gwenborough", User: u.ID},
		&records.Company{Name: "Romaguera-Crona", User: u.ID},
		&records.Todo{Title: "delectus", User: u.ID},
		album, post,
	)
	create(t, ctx,
		&records.Photo{Title: "beach", URL: "https://img.test/1", Album: album.ID},
		&records.Photo{Title: "sunset", URL: "https://img.test/2", Album: album.ID},
		&records.Comment{Name: "c1", Body: "nice", Post: post.ID},
	)
	return album, post
}

func TestDelete_CascadesEveryOwnedCollection(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)
	album, post := seedGraph(t, ctx, u)

	// Delete is retry-safe; retry while owner indexes are catching up.
	eventually(t, func() error { return svc.Delete(ctx, u.ID) })

	var got records.User
	if err := testStore.FindByID(ctx, records.Users, u.ID, &got); !errors.Is(err, records.ErrNotFound) {
		t.Errorf("expected user deleted, got %v", err)
	}
	eventually(t, func() error {
		for _, q := range []struct {
			c     records.Collection
			field string
			id    string
		}{
			{records.Todos, "user", u.ID},
			{records.Photos, "album", album.ID},
			{records.Comments, "post", post.ID},
		} {
			n, err := countOwned(ctx, q.c, q.field, q.id)
			if err != nil {
				return err
			}
			if n != 0 {
				return fmt.Errorf("%s: %d rows left", q.c, n)
			}
		}
		return nil
	})

	// Deleting again reports the user as missing.
	if err := svc.Delete(ctx, u.ID); !errors.Is(err, account.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSweeper_PurgesRowsOfRemovedUser(t *testing.T) {
	ctx := context.Background()
	u := newUser(t, ctx)
	album, _ := seedGraph(t, ctx, u)

	// Remove the user row behind the service's back, as a TTL or a manual
	// delete would.
	if _, err := ddbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(storeCfg.TablePrefix + string(records.Users)),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: u.ID}},
	}); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	h := stream.NewHandler(svc, nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			SequenceNumber: "1",
			Keys: map[string]events.DynamoDBAttributeValue{
				"id": events.NewStringAttribute(u.ID),
			},
			OldImage: map[string]events.DynamoDBAttributeValue{
				"entity_ref": events.NewStringAttribute("user#" + u.ID),
			},
		},
	}}}

	eventually(t, func() error {
		resp, err := h.HandleUserRemoved(ctx, event)
		if err != nil {
			return err
		}
		if len(resp.BatchItemFailures) != 0 {
			return fmt.Errorf("batch failures: %v", resp.BatchItemFailures)
		}
		n, err := countOwned(ctx, records.Photos, "album", album.ID)
		if err == nil && n != 0 {
			err = fmt.Errorf("%d photos left", n)
		}
		return err
	})
}
