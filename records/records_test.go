package records_test

import (
	"errors"
	"os"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/crypto/bcrypt"

	"github.com/jacentio/members/records"
)

func TestMain(m *testing.M) {
	records.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func TestParseCollection(t *testing.T) {
	for _, c := range records.All() {
		got, err := records.ParseCollection(string(c))
		if err != nil {
			t.Errorf("ParseCollection(%q): unexpected error: %v", c, err)
		}
		if got != c {
			t.Errorf("expected %q, got %q", c, got)
		}
	}

	if _, err := records.ParseCollection("widgets"); !errors.Is(err, records.ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestNew(t *testing.T) {
	for _, c := range records.All() {
		doc, err := records.New(c)
		if err != nil {
			t.Fatalf("New(%q): %v", c, err)
		}
		if doc.Collection() != c {
			t.Errorf("expected collection %q, got %q", c, doc.Collection())
		}
		if doc.TableName() != string(c) {
			t.Errorf("expected table %q, got %q", c, doc.TableName())
		}
		owned, ok := doc.(records.Owned)
		if field := records.OwnerField(c); field == "" {
			if ok {
				t.Errorf("%s: root collection must not be owned", c)
			}
		} else if !ok || owned.OwnerField() != field {
			t.Errorf("%s: expected owner field %q", c, field)
		}
	}
}

func TestChildren(t *testing.T) {
	tests := []struct {
		parent   records.Collection
		expected []records.Link
	}{
		{records.Users, []records.Link{
			{Collection: records.Addresses, Field: "user"},
			{Collection: records.Companies, Field: "user"},
			{Collection: records.Todos, Field: "user"},
			{Collection: records.Favorites, Field: "user"},
			{Collection: records.Carts, Field: "user"},
			{Collection: records.Albums, Field: "user"},
			{Collection: records.Posts, Field: "user"},
		}},
		{records.Albums, []records.Link{{Collection: records.Photos, Field: "album"}}},
		{records.Posts, []records.Link{{Collection: records.Comments, Field: "post"}}},
		{records.Photos, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.parent), func(t *testing.T) {
			got := records.Children(tt.parent)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := records.Registry()

	if got := len(r.AllRelationships()); got != 9 {
		t.Fatalf("expected 9 relationships, got %d", got)
	}

	rel, ok := r.ParentOf("photo")
	if !ok {
		t.Fatal("expected photo to have a parent")
	}
	if rel.ParentType != "album" || rel.ChildTableName != "photos" || rel.IndexName != "album-index" {
		t.Errorf("unexpected photo relationship: %+v", rel)
	}

	rel, ok = r.ByTable("comments", "post")
	if !ok || rel.ParentType != "post" {
		t.Errorf("expected comments owned by post, got %+v", rel)
	}

	if !r.HasChildren("user") {
		t.Error("expected user to have children")
	}
	if r.HasChildren("comment") {
		t.Error("expected comment to have no children")
	}
}

func TestCheckPatch(t *testing.T) {
	tests := []struct {
		name       string
		collection records.Collection
		patch      records.Patch
		expected   error
	}{
		{"plain fields", records.Users, records.Patch{"name": "Ada", "phone": nil}, nil},
		{"password", records.Users, records.Patch{"name": "Ada", "password": "secret1"}, records.ErrProtectedField},
		{"managed", records.Users, records.Patch{"version": 9}, records.ErrProtectedField},
		{"owner field", records.Albums, records.Patch{"user": "u2"}, records.ErrProtectedField},
		{"album title", records.Albums, records.Patch{"title": "Trip"}, nil},
		{"unknown collection", records.Collection("widgets"), records.Patch{}, records.ErrUnknownCollection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := records.CheckPatch(tt.collection, tt.patch)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestPatchItem(t *testing.T) {
	item, err := records.PatchItem(records.Patch{
		"name":  "Ada",
		"photo": nil,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s, ok := item["name"].(*types.AttributeValueMemberS); !ok || s.Value != "Ada" {
		t.Errorf("expected name 'Ada', got %v", item["name"])
	}
	if _, ok := item["photo"].(*types.AttributeValueMemberNULL); !ok {
		t.Errorf("expected NULL for removed photo, got %v", item["photo"])
	}
}

func TestApplyPatch(t *testing.T) {
	u := &records.User{
		Meta:  records.Meta{ID: "u1", Version: 3},
		Name:  "Ada",
		Email: "ada@example.com",
		Photo: "https://cdn.example.com/ada.png",
	}

	if err := records.ApplyPatch(u, records.Patch{"name": "Ada L.", "photo": nil}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.Name != "Ada L." {
		t.Errorf("expected name 'Ada L.', got %q", u.Name)
	}
	if u.Photo != "" {
		t.Errorf("expected photo removed, got %q", u.Photo)
	}
	if u.ID != "u1" || u.Version != 3 {
		t.Errorf("expected metadata kept, got %+v", u.Meta)
	}
}

func TestApplyPatch_WrongType(t *testing.T) {
	todo := &records.Todo{Title: "Call", User: "u1"}

	err := records.ApplyPatch(todo, records.Patch{"completed": []string{"yes"}})
	if !errors.Is(err, records.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestPrepare_AssignsID(t *testing.T) {
	album := &records.Album{Title: "Trip", User: "u1"}

	if err := records.Prepare(album); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if album.ID == "" {
		t.Error("expected generated id")
	}
}

func TestPrepare_Validates(t *testing.T) {
	tests := []struct {
		name string
		doc  records.Document
	}{
		{"album without title", &records.Album{User: "u1"}},
		{"photo without album", &records.Photo{Title: "Sunset", URL: "https://x/y.png"}},
		{"comment without body", &records.Comment{Name: "n", Post: "p1"}},
		{"cart with empty line", &records.Cart{User: "u1", Items: []records.CartItem{{Product: "p", Quantity: 0}}}},
		{"user without email", &records.User{Name: "Ada"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := records.Prepare(tt.doc); !errors.Is(err, records.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestMarshal_SkipsManaged(t *testing.T) {
	item, err := records.Marshal(&records.Post{
		Meta:  records.Meta{ID: "p1", Version: 2, CreatedAt: "2024-01-01T00:00:00Z"},
		Title: "Hello",
		Body:  "World",
		User:  "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, managed := range []string{"id", "version", "created_at"} {
		if _, ok := item[managed]; ok {
			t.Errorf("expected %q to be left out", managed)
		}
	}
	if _, ok := item["user"]; !ok {
		t.Error("expected owner field")
	}
}

func TestFilter(t *testing.T) {
	if !(records.Filter{}).IsZero() {
		t.Error("expected zero filter")
	}
	f := records.By("user", "u1")
	if f.IsZero() || f.Field != "user" || f.Value != "u1" {
		t.Errorf("unexpected filter %+v", f)
	}
}
