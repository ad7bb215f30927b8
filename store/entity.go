package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Entity is the base interface for all storable types.
type Entity interface {
	// TableName returns the logical table name for this entity type.
	// The store applies Config.TablePrefix.
	TableName() string

	// GetKey returns the primary key for this entity.
	GetKey() PK

	// EntityRef returns the type-qualified reference (e.g., "user#uuid").
	EntityRef() string

	// EntityType returns the entity type name (e.g., "user").
	EntityType() string
}

// ParentChecker is implemented by entities that have a parent.
type ParentChecker interface {
	// ParentCheck returns the condition check for parent validation.
	// Returns nil for root entities or when parent validation should be skipped.
	ParentCheck() *ConditionCheck

	// ParentRef returns the parent's entity reference (e.g., "user#uuid").
	// Returns empty string for root entities.
	ParentRef() string
}

// ConditionCheck defines a parent existence check for transactions.
type ConditionCheck struct {
	// TableName is the logical parent table name.
	TableName string
	Key       PK

	// ConditionExpr is an optional custom condition expression.
	// If empty, ParentExistsCondition() is used.
	ConditionExpr string
}

// UniqueFielder is implemented by entities with unique field constraints.
type UniqueFielder interface {
	// UniqueFields returns field name to value mappings for fields
	// that must be unique within the owner scope (the parent, or the entity
	// type for root entities).
	UniqueFields() map[string]string
}

// Write pairs an entity with the attributes to persist for it.
type Write struct {
	Entity Entity
	Item   map[string]types.AttributeValue
}

// Item represents a retrieved DynamoDB item with common fields.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string

	// EntityRef is the type-qualified entity reference.
	EntityRef string

	// ParentRef is the parent's entity reference (empty for root entities).
	ParentRef string
}

// QueryInput defines parameters for querying entities.
type QueryInput struct {
	// TableName is the logical table to query.
	TableName string

	// IndexName is the optional GSI/LSI to query.
	IndexName string

	// KeyConditionExpression is the DynamoDB key condition.
	KeyConditionExpression string

	// FilterExpression is an optional filter.
	FilterExpression string

	// ProjectionExpression optionally limits the returned attributes.
	ProjectionExpression string

	// ExpressionAttributeNames maps expression attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues maps expression attribute value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue

	// Limit is the maximum number of items to return (0 = no limit).
	Limit int32

	// ScanIndexForward determines sort order (true = ascending, false = descending).
	ScanIndexForward *bool
}

// managedAttrs are maintained by the store and never taken from caller items
// on update.
var managedAttrs = map[string]bool{
	"id":          true,
	"entity_ref":  true,
	"parent_ref":  true,
	"version":     true,
	"created_at":  true,
	"updated_at":  true,
	"_unique_pks": true,
}

// IsManagedAttr reports whether the store owns the named attribute.
func IsManagedAttr(name string) bool {
	return managedAttrs[name]
}
