package records

import (
	"fmt"

	"github.com/jacentio/members/store"
)

// Collection names a set of documents of one type. The name doubles as the
// logical table name.
type Collection string

const (
	Users     Collection = "users"
	Addresses Collection = "addresses"
	Companies Collection = "companies"
	Todos     Collection = "todos"
	Favorites Collection = "favorites"
	Carts     Collection = "carts"
	Albums    Collection = "albums"
	Photos    Collection = "photos"
	Posts     Collection = "posts"
	Comments  Collection = "comments"
)

// collectionInfo describes one collection's place in the ownership graph.
type collectionInfo struct {
	entityType string
	owner      Collection // zero for root collections
	ownerField string
	new        func() Document
}

// ownership lists collections in cascade order: a parent's children appear in
// the order they must be removed.
var ownership = []Collection{
	Addresses, Companies, Todos,
	Favorites, Carts,
	Albums, Photos,
	Posts, Comments,
}

var collections = map[Collection]collectionInfo{
	Users:     {entityType: "user", new: func() Document { return &User{} }},
	Addresses: {entityType: "address", owner: Users, ownerField: "user", new: func() Document { return &Address{} }},
	Companies: {entityType: "company", owner: Users, ownerField: "user", new: func() Document { return &Company{} }},
	Todos:     {entityType: "todo", owner: Users, ownerField: "user", new: func() Document { return &Todo{} }},
	Favorites: {entityType: "favorite", owner: Users, ownerField: "user", new: func() Document { return &Favorite{} }},
	Carts:     {entityType: "cart", owner: Users, ownerField: "user", new: func() Document { return &Cart{} }},
	Albums:    {entityType: "album", owner: Users, ownerField: "user", new: func() Document { return &Album{} }},
	Photos:    {entityType: "photo", owner: Albums, ownerField: "album", new: func() Document { return &Photo{} }},
	Posts:     {entityType: "post", owner: Users, ownerField: "user", new: func() Document { return &Post{} }},
	Comments:  {entityType: "comment", owner: Posts, ownerField: "post", new: func() Document { return &Comment{} }},
}

// All returns every collection, users first, then owned collections in
// cascade order.
func All() []Collection {
	return append([]Collection{Users}, ownership...)
}

// ParseCollection validates a collection name.
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if _, ok := collections[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// New returns an empty document of the collection's type.
func New(c Collection) (Document, error) {
	info, ok := collections[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return info.new(), nil
}

// OwnerField returns the attribute holding the owner's id for documents of c,
// or "" for root collections.
func OwnerField(c Collection) string {
	return collections[c].ownerField
}

// OwnerOf returns the collection owning documents of c, or "" for root
// collections.
func OwnerOf(c Collection) Collection {
	return collections[c].owner
}

// Link is one edge of the ownership graph seen from the owner.
type Link struct {
	Collection Collection
	Field      string
}

// Children returns the collections directly owned by c, in cascade order.
func Children(c Collection) []Link {
	var links []Link
	for _, child := range ownership {
		info := collections[child]
		if info.owner == c {
			links = append(links, Link{Collection: child, Field: info.ownerField})
		}
	}
	return links
}

// Registry returns the ownership graph as a store registry. Each owned table
// carries a global secondary index named "<field>-index" on its owner field.
func Registry() *store.Registry {
	r := store.NewRegistry()
	for _, child := range ownership {
		info := collections[child]
		r.Register(store.Relationship{
			ParentType:     collections[info.owner].entityType,
			ChildType:      info.entityType,
			ChildTableName: string(child),
			ParentKeyAttr:  info.ownerField,
			IndexName:      IndexName(info.ownerField),
		})
	}
	return r
}

// IndexName returns the name of the owner index for an owner field.
func IndexName(field string) string {
	return field + "-index"
}

// CheckFilter rejects filters on anything but c's owner field.
func CheckFilter(c Collection, f Filter) error {
	if f.IsZero() {
		return nil
	}
	if field := OwnerField(c); field == "" || f.Field != field {
		return fmt.Errorf("%w: %s by %q", ErrUnsupportedFilter, c, f.Field)
	}
	return nil
}
