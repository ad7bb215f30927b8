// Package memstore is an in-memory records.Store with the same semantics as
// the DynamoDB store: atomic multi-document creates, parent checks, unique
// emails, version-guarded writes and orphan protection. It backs the dev
// server and the account tests.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/members/records"
	"github.com/jacentio/members/store"
)

type row = map[string]types.AttributeValue

// Store holds documents as attribute maps, encoded exactly as the DynamoDB
// store would encode them.
type Store struct {
	mu       sync.RWMutex
	tables   map[records.Collection]map[string]row
	uniques  map[string]string // constraint -> owning "collection/id"
	registry *store.Registry
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tables:   make(map[records.Collection]map[string]row),
		uniques:  make(map[string]string),
		registry: records.Registry(),
		now:      time.Now,
	}
}

var _ records.Store = (*Store)(nil)

// Len returns the number of documents in c.
func (s *Store) Len(c records.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[c])
}

func (s *Store) FindByID(_ context.Context, c records.Collection, id string, out records.Document) error {
	if out.Collection() != c {
		return fmt.Errorf("memstore: %T cannot hold %s", out, c)
	}
	s.mu.RLock()
	r, ok := s.tables[c][id]
	s.mu.RUnlock()
	if !ok {
		return records.ErrNotFound
	}
	return records.Unmarshal(r, out)
}

func (s *Store) FindMany(_ context.Context, c records.Collection, f records.Filter, out any) error {
	if _, err := records.New(c); err != nil {
		return err
	}
	if err := records.CheckFilter(c, f); err != nil {
		return err
	}

	s.mu.RLock()
	rows := s.match(c, f)
	s.mu.RUnlock()

	if err := attributevalue.UnmarshalListOfMaps(rows, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", c, err)
	}
	return nil
}

func (s *Store) Create(_ context.Context, docs ...records.Document) error {
	items := make([]row, len(docs))
	for i, doc := range docs {
		if err := records.Prepare(doc); err != nil {
			return err
		}
		item, err := records.Marshal(doc)
		if err != nil {
			return err
		}
		items[i] = item
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check everything before writing anything.
	claimed := make(map[string]bool)
	for _, doc := range docs {
		if checker, ok := doc.(store.ParentChecker); ok {
			if check := checker.ParentCheck(); check != nil && !s.exists(records.Collection(check.TableName), keyID(check.Key)) {
				return records.ErrParentNotFound
			}
		}
		if s.exists(doc.Collection(), doc.Metadata().ID) {
			return records.ErrAlreadyExists
		}
		for _, key := range constraints(doc) {
			if _, taken := s.uniques[key]; taken || claimed[key] {
				return records.ErrDuplicateValue
			}
			claimed[key] = true
		}
	}

	ts := s.timestamp()
	for i, doc := range docs {
		meta := doc.Metadata()
		meta.Version, meta.CreatedAt, meta.UpdatedAt = 1, ts, ts
		s.put(doc, items[i])
	}
	return nil
}

func (s *Store) Save(_ context.Context, doc records.Document) error {
	if doc.Metadata().ID == "" {
		return records.ErrNotFound
	}
	if err := records.Prepare(doc); err != nil {
		return err
	}
	item, err := records.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta := doc.Metadata()
	current, err := s.current(doc.Collection(), meta.ID, meta.Version)
	if err != nil {
		return err
	}
	if err := s.swapConstraints(current, doc); err != nil {
		return err
	}

	meta.Version++
	meta.UpdatedAt = s.timestamp()
	meta.CreatedAt = current.Metadata().CreatedAt
	s.put(doc, item)
	return nil
}

func (s *Store) UpdateByID(_ context.Context, c records.Collection, id string, patch records.Patch, opts records.UpdateOptions, out records.Document) error {
	if err := records.CheckPatch(c, patch); err != nil {
		return err
	}
	values, err := records.PatchItem(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.tables[c][id]
	if !ok {
		return records.ErrNotFound
	}
	current, err := s.decode(c, before)
	if err != nil {
		return err
	}

	merged := maps.Clone(before)
	records.MergeItem(merged, values)
	doc, err := s.decode(c, merged)
	if err != nil {
		return fmt.Errorf("%w: %v", records.ErrValidation, err)
	}
	if opts.Validate {
		if err := records.Validate(doc); err != nil {
			return err
		}
	}
	if err := s.swapConstraints(current, doc); err != nil {
		return err
	}

	meta := doc.Metadata()
	meta.Version++
	meta.UpdatedAt = s.timestamp()
	item, err := records.Marshal(doc)
	if err != nil {
		return err
	}
	s.put(doc, item)

	if out == nil {
		return nil
	}
	if opts.ReturnUpdated {
		return records.Unmarshal(s.tables[c][id], out)
	}
	return records.Unmarshal(before, out)
}

func (s *Store) DeleteByID(_ context.Context, c records.Collection, id string) error {
	doc, err := records.New(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range s.registry.ChildrenOf(doc.EntityType()) {
		if len(s.match(records.Collection(rel.ChildTableName), records.By(rel.ParentKeyAttr, id))) > 0 {
			return records.ErrHasChildren
		}
	}
	if _, ok := s.tables[c][id]; !ok {
		return nil
	}
	s.remove(c, id)
	return nil
}

func (s *Store) DeleteMany(_ context.Context, c records.Collection, f records.Filter) (int, error) {
	if f.IsZero() {
		return 0, fmt.Errorf("%w: %s requires an owner filter", records.ErrUnsupportedFilter, c)
	}
	if err := records.CheckFilter(c, f); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, r := range s.tables[c] {
		if attrString(r, f.Field) == f.Value {
			s.remove(c, id)
			n++
		}
	}
	return n, nil
}

// match returns copies of c's rows selected by f, oldest first.
func (s *Store) match(c records.Collection, f records.Filter) []row {
	var rows []row
	for _, r := range s.tables[c] {
		if f.IsZero() || attrString(r, f.Field) == f.Value {
			rows = append(rows, maps.Clone(r))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := attrString(rows[i], "created_at"), attrString(rows[j], "created_at")
		if ci != cj {
			return ci < cj
		}
		return attrString(rows[i], "id") < attrString(rows[j], "id")
	})
	return rows
}

// current loads the stored document, enforcing the expected version.
func (s *Store) current(c records.Collection, id string, version int64) (records.Document, error) {
	r, ok := s.tables[c][id]
	if !ok {
		return nil, records.ErrNotFound
	}
	doc, err := s.decode(c, r)
	if err != nil {
		return nil, err
	}
	if doc.Metadata().Version != version {
		return nil, records.ErrConcurrentModification
	}
	return doc, nil
}

func (s *Store) decode(c records.Collection, r row) (records.Document, error) {
	doc, err := records.New(c)
	if err != nil {
		return nil, err
	}
	if err := records.Unmarshal(r, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// put stores item with doc's metadata and claims doc's unique values.
func (s *Store) put(doc records.Document, item row) {
	meta := doc.Metadata()
	item = maps.Clone(item)
	item["id"] = &types.AttributeValueMemberS{Value: meta.ID}
	item["version"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.Version, 10)}
	item["created_at"] = &types.AttributeValueMemberS{Value: meta.CreatedAt}
	item["updated_at"] = &types.AttributeValueMemberS{Value: meta.UpdatedAt}
	item["entity_ref"] = &types.AttributeValueMemberS{Value: doc.EntityRef()}

	c := doc.Collection()
	if s.tables[c] == nil {
		s.tables[c] = make(map[string]row)
	}
	s.tables[c][meta.ID] = item
	for _, key := range constraints(doc) {
		s.uniques[key] = ref(c, meta.ID)
	}
}

func (s *Store) remove(c records.Collection, id string) {
	delete(s.tables[c], id)
	owner := ref(c, id)
	for key, r := range s.uniques {
		if r == owner {
			delete(s.uniques, key)
		}
	}
}

// swapConstraints releases current's unique values and claims next's,
// failing if another document holds one of the new values.
func (s *Store) swapConstraints(current, next records.Document) error {
	owner := ref(next.Collection(), next.Metadata().ID)
	for _, key := range constraints(next) {
		if holder, taken := s.uniques[key]; taken && holder != owner {
			return records.ErrDuplicateValue
		}
	}
	for _, key := range constraints(current) {
		delete(s.uniques, key)
	}
	return nil
}

func (s *Store) exists(c records.Collection, id string) bool {
	_, ok := s.tables[c][id]
	return ok
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// constraints returns the unique keys doc claims, scoped like the DynamoDB
// store: by parent for child documents, by entity type otherwise.
func constraints(doc records.Document) []string {
	uf, ok := doc.(store.UniqueFielder)
	if !ok {
		return nil
	}
	scope := doc.EntityType()
	if pc, ok := doc.(store.ParentChecker); ok && pc.ParentRef() != "" {
		scope = pc.ParentRef()
	}
	var keys []string
	for field, value := range uf.UniqueFields() {
		keys = append(keys, scope+"/"+field+"/"+value)
	}
	return keys
}

func ref(c records.Collection, id string) string {
	return string(c) + "/" + id
}

func keyID(key store.PK) string {
	return attrString(key, "id")
}

func attrString(r map[string]types.AttributeValue, name string) string {
	if v, ok := r[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
