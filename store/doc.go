// Package store provides a DynamoDB document store with ownership-aware operations.
//
// The store is entity-agnostic: callers describe each row through the [Entity]
// interface and pass raw attribute maps. On top of plain reads and writes it
// maintains the invariants an owning hierarchy needs when rows are removed
// piecemeal rather than inside one multi-table transaction.
//
// # Key Features
//
//   - Parent validation on child creation (atomic)
//   - Multi-entity creates in a single transaction
//   - Orphan protection (refuse to delete a parent while owned rows remain)
//   - Owner-index queries and batched delete-by-owner
//   - Unique field constraints within an owner scope
//   - Optimistic locking with a version field
//
// # Entity Interfaces
//
// All entities must implement the [Entity] interface:
//
//	type Entity interface {
//	    TableName() string
//	    GetKey() PK
//	    EntityRef() string
//	    EntityType() string
//	}
//
// Child entities may also implement [ParentChecker]:
//
//	type ParentChecker interface {
//	    ParentCheck() *ConditionCheck
//	    ParentRef() string
//	}
//
// Entities with unique constraints implement [UniqueFielder]:
//
//	type UniqueFielder interface {
//	    UniqueFields() map[string]string
//	}
//
// # Ownership
//
// Parent/child links are declared once in a [Registry]. Each [Relationship]
// names the child table, the attribute holding the owner id and the global
// secondary index keyed on it. [Store.QueryByParent], [Store.DeleteByParent]
// and [Store.HasChildren] all resolve through the registry.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - entity doesn't exist
//   - [ErrParentNotFound] - parent validation failed
//   - [ErrAlreadyExists] - entity with ID already exists
//   - [ErrHasChildren] - cannot delete entity with children
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrDuplicateValue] - unique constraint violated
package store
