package records

import (
	"context"
	"fmt"
	"maps"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/members/store"
)

// DynamoStore implements Store on DynamoDB.
//
// Owner filters are served by the owner indexes, so FindMany and DeleteMany
// with a filter observe eventually consistent results. FindByID is strongly
// consistent.
type DynamoStore struct {
	store *store.Store
}

// NewDynamoStore creates a DynamoStore using the member ownership registry.
func NewDynamoStore(client store.API, cfg store.Config) *DynamoStore {
	return &DynamoStore{store: store.NewWithRegistry(client, cfg, Registry())}
}

var _ Store = (*DynamoStore)(nil)

func (s *DynamoStore) FindByID(ctx context.Context, c Collection, id string, out Document) error {
	if out.Collection() != c {
		return fmt.Errorf("records: %T cannot hold %s", out, c)
	}
	if id == "" {
		return ErrNotFound
	}
	item, err := s.store.Get(ctx, string(c), idKey(id))
	if err != nil {
		return err
	}
	return Unmarshal(item.Raw, out)
}

func (s *DynamoStore) FindMany(ctx context.Context, c Collection, f Filter, out any) error {
	if _, ok := collections[c]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	if err := CheckFilter(c, f); err != nil {
		return err
	}

	var items []*store.Item
	var err error
	if f.IsZero() {
		items, err = s.store.Scan(ctx, string(c))
	} else {
		rel, _ := s.store.Registry().ByTable(string(c), f.Field)
		items, err = s.store.QueryByParent(ctx, rel, f.Value)
	}
	if err != nil {
		return err
	}

	raws := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		raws = append(raws, item.Raw)
	}
	if err := attributevalue.UnmarshalListOfMaps(raws, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", c, err)
	}
	return nil
}

func (s *DynamoStore) Create(ctx context.Context, docs ...Document) error {
	writes := make([]store.Write, 0, len(docs))
	for _, doc := range docs {
		if err := Prepare(doc); err != nil {
			return err
		}
		item, err := Marshal(doc)
		if err != nil {
			return err
		}
		writes = append(writes, store.Write{Entity: doc, Item: item})
	}

	if err := s.store.CreateAll(ctx, writes...); err != nil {
		return err
	}

	// CreateAll stamps the managed attributes onto each item.
	for i, w := range writes {
		if err := attributevalue.UnmarshalMap(w.Item, docs[i].Metadata()); err != nil {
			return fmt.Errorf("unmarshal %s metadata: %w", docs[i].Collection(), err)
		}
	}
	return nil
}

func (s *DynamoStore) Save(ctx context.Context, doc Document) error {
	if doc.Metadata().ID == "" {
		return ErrNotFound
	}
	if err := Prepare(doc); err != nil {
		return err
	}
	item, err := Marshal(doc)
	if err != nil {
		return err
	}

	current, err := s.store.Get(ctx, string(doc.Collection()), doc.GetKey())
	if err != nil {
		return err
	}
	for name := range current.Raw {
		if _, ok := item[name]; !ok && !store.IsManagedAttr(name) {
			item[name] = &types.AttributeValueMemberNULL{Value: true}
		}
	}

	updated, err := s.store.Update(ctx, doc, item, doc.Metadata().Version)
	if err != nil {
		return err
	}
	return attributevalue.UnmarshalMap(updated.Raw, doc.Metadata())
}

func (s *DynamoStore) UpdateByID(ctx context.Context, c Collection, id string, patch Patch, opts UpdateOptions, out Document) error {
	if err := CheckPatch(c, patch); err != nil {
		return err
	}
	values, err := PatchItem(patch)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNotFound
	}

	current, err := s.store.Get(ctx, string(c), idKey(id))
	if err != nil {
		return err
	}

	// The merged document carries the new unique values for the store's
	// constraint bookkeeping.
	merged := maps.Clone(current.Raw)
	MergeItem(merged, values)
	doc, err := New(c)
	if err != nil {
		return err
	}
	if err := Unmarshal(merged, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if opts.Validate {
		if err := Validate(doc); err != nil {
			return err
		}
	}

	updated, err := s.store.Update(ctx, doc, values, current.Version)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if opts.ReturnUpdated {
		return Unmarshal(updated.Raw, out)
	}
	return Unmarshal(current.Raw, out)
}

func (s *DynamoStore) DeleteByID(ctx context.Context, c Collection, id string) error {
	doc, err := New(c)
	if err != nil {
		return err
	}
	if id == "" {
		return nil
	}
	doc.Metadata().ID = id
	return s.store.Delete(ctx, doc, store.DeleteOptions{OrphanProtect: true})
}

func (s *DynamoStore) DeleteMany(ctx context.Context, c Collection, f Filter) (int, error) {
	if f.IsZero() {
		return 0, fmt.Errorf("%w: %s requires an owner filter", ErrUnsupportedFilter, c)
	}
	if err := CheckFilter(c, f); err != nil {
		return 0, err
	}
	rel, _ := s.store.Registry().ByTable(string(c), f.Field)
	return s.store.DeleteByParent(ctx, rel, f.Value)
}
