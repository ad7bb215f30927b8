package records

import (
	"context"
	"fmt"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/members/store"
)

// Meta holds the fields every document carries. The store maintains all of
// them except ID.
type Meta struct {
	ID        string `dynamodbav:"id" json:"id"`
	Version   int64  `dynamodbav:"version,omitempty" json:"version,omitempty"`
	CreatedAt string `dynamodbav:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// Metadata gives Store implementations access to the embedded Meta.
func (m *Meta) Metadata() *Meta { return m }

// GetKey returns the primary key.
func (m *Meta) GetKey() store.PK { return idKey(m.ID) }

// Document is a storable record.
type Document interface {
	store.Entity
	Collection() Collection
	Metadata() *Meta
}

// Owned is implemented by documents that belong to another document.
type Owned interface {
	// OwnerField returns the attribute naming the owner ("user", "album", "post").
	OwnerField() string
	OwnerID() string
	SetOwner(id string)
}

// Validator is implemented by documents with schema checks. Validate errors
// wrap ErrValidation.
type Validator interface {
	Validate() error
}

// BeforeSaver is implemented by documents that transform fields on Create
// and Save, such as hashing a password.
type BeforeSaver interface {
	BeforeSave() error
}

// Protector is implemented by documents with fields that patches may not set.
type Protector interface {
	ProtectedFields() []string
}

// Filter selects documents whose owner field equals Value. The zero Filter
// selects every document of a collection.
type Filter struct {
	Field string
	Value string
}

// By returns a filter on field == value.
func By(field, value string) Filter {
	return Filter{Field: field, Value: value}
}

// IsZero reports whether f selects everything.
func (f Filter) IsZero() bool {
	return f.Field == ""
}

// Patch assigns attribute values by name. A nil value removes the attribute.
type Patch map[string]any

// UpdateOptions configures UpdateByID.
type UpdateOptions struct {
	// ReturnUpdated fills out with the document after the update instead of before.
	ReturnUpdated bool

	// Validate runs the document's schema checks on the patched document
	// before writing.
	Validate bool
}

// Store is typed access to the member collections.
type Store interface {
	// FindByID loads one document into out. Returns ErrNotFound if absent.
	FindByID(ctx context.Context, c Collection, id string, out Document) error

	// FindMany loads every document matching f into out, a pointer to a
	// slice of document structs.
	FindMany(ctx context.Context, c Collection, f Filter, out any) error

	// Create writes all docs or none. Missing ids are generated.
	Create(ctx context.Context, docs ...Document) error

	// Save writes doc in full, guarded by its version. Fields left empty
	// are removed. doc is refreshed with the stored metadata.
	Save(ctx context.Context, doc Document) error

	// UpdateByID assigns patch to the stored document without running
	// BeforeSave hooks. out may be nil.
	UpdateByID(ctx context.Context, c Collection, id string, patch Patch, opts UpdateOptions, out Document) error

	// DeleteByID removes one document. Deleting an absent document is a
	// no-op. Returns ErrHasChildren while owned documents remain.
	DeleteByID(ctx context.Context, c Collection, id string) error

	// DeleteMany removes every document matching f, which must name the
	// owner field, and returns how many were removed.
	DeleteMany(ctx context.Context, c Collection, f Filter) (int, error)
}

// Prepare readies doc for writing: it assigns an id if missing, then runs
// BeforeSave and Validate.
func Prepare(doc Document) error {
	if meta := doc.Metadata(); meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if bs, ok := doc.(BeforeSaver); ok {
		if err := bs.BeforeSave(); err != nil {
			return err
		}
	}
	return Validate(doc)
}

// Validate runs doc's schema checks, if any.
func Validate(doc Document) error {
	if v, ok := doc.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// Marshal encodes doc's fields as attributes, leaving out store-managed ones.
func Marshal(doc Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", doc.Collection(), err)
	}
	for k := range item {
		if store.IsManagedAttr(k) {
			delete(item, k)
		}
	}
	return item, nil
}

// Unmarshal decodes a stored item into doc.
func Unmarshal(item map[string]types.AttributeValue, doc Document) error {
	if err := attributevalue.UnmarshalMap(item, doc); err != nil {
		return fmt.Errorf("unmarshal %s: %w", doc.Collection(), err)
	}
	return nil
}

// CheckPatch rejects patches that name protected, managed or owner fields of c.
func CheckPatch(c Collection, patch Patch) error {
	doc, err := New(c)
	if err != nil {
		return err
	}
	var protected []string
	if p, ok := doc.(Protector); ok {
		protected = p.ProtectedFields()
	}
	if field := OwnerField(c); field != "" {
		protected = append(protected, field)
	}
	for name := range patch {
		if store.IsManagedAttr(name) {
			return fmt.Errorf("%w: %s", ErrProtectedField, name)
		}
		for _, p := range protected {
			if name == p {
				return fmt.Errorf("%w: %s", ErrProtectedField, name)
			}
		}
	}
	return nil
}

// PatchItem encodes a patch. Nil values become NULL, which stores read as
// "remove this attribute".
func PatchItem(patch Patch) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(patch))
	for name, v := range patch {
		if v == nil {
			item[name] = &types.AttributeValueMemberNULL{Value: true}
			continue
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrValidation, name, err)
		}
		item[name] = av
	}
	return item, nil
}

// ApplyPatch assigns patch to doc in memory, the way a store would persist it.
func ApplyPatch(doc Document, patch Patch) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", doc.Collection(), err)
	}
	values, err := PatchItem(patch)
	if err != nil {
		return err
	}
	MergeItem(item, values)
	return decodeInto(item, doc)
}

// MergeItem applies encoded patch values to item in place.
func MergeItem(item, values map[string]types.AttributeValue) {
	for name, v := range values {
		if _, isNull := v.(*types.AttributeValueMemberNULL); isNull {
			delete(item, name)
			continue
		}
		item[name] = v
	}
}

// decodeInto replaces doc's fields with item. Fields missing from item are
// reset, which a plain UnmarshalMap onto a populated struct would not do.
func decodeInto(item map[string]types.AttributeValue, doc Document) error {
	fresh, err := New(doc.Collection())
	if err != nil {
		return err
	}
	if err := Unmarshal(item, fresh); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return assign(doc, fresh)
}

func idKey(id string) store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: id}}
}

func ownerCheck(c Collection, id string) *store.ConditionCheck {
	return &store.ConditionCheck{TableName: string(c), Key: idKey(id)}
}

// assign copies src over dst; both must point to the same document type.
func assign(dst, src Document) error {
	dv, sv := reflect.ValueOf(dst), reflect.ValueOf(src)
	if dv.Kind() != reflect.Pointer || dv.Type() != sv.Type() {
		return fmt.Errorf("records: cannot assign %T to %T", src, dst)
	}
	dv.Elem().Set(sv.Elem())
	return nil
}
