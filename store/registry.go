package store

// Relationship defines a parent-child ownership link for cascade operations.
type Relationship struct {
	// ParentType is the parent entity type (e.g., "user").
	ParentType string

	// ChildType is the child entity type (e.g., "album").
	ChildType string

	// ChildTableName is the logical table name for the child (e.g., "albums").
	ChildTableName string

	// ParentKeyAttr is the attribute name in child that references parent (e.g., "user").
	ParentKeyAttr string

	// IndexName is the global secondary index on ParentKeyAttr (e.g., "user-index").
	IndexName string
}

// Registry holds all known entity relationships for cascade operations.
// Relationships are kept in registration order; cascades visit children in
// that order.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
	byChild       map[string]Relationship
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		relationships: []Relationship{},
		byParent:      make(map[string][]Relationship),
		byChild:       make(map[string]Relationship),
	}
}

// Register adds a relationship to the registry.
// A child type has at most one owner; registering it again replaces the
// lookup returned by ParentOf but keeps both entries in ChildrenOf.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentType] = append(r.byParent[rel.ParentType], rel)
	r.byChild[rel.ChildType] = rel
}

// ChildrenOf returns all child relationships for a given parent type.
func (r *Registry) ChildrenOf(parentType string) []Relationship {
	return r.byParent[parentType]
}

// ParentOf returns the relationship in which childType is the child.
func (r *Registry) ParentOf(childType string) (Relationship, bool) {
	rel, ok := r.byChild[childType]
	return rel, ok
}

// ByTable returns the relationship whose child lives in the given table and
// references its parent through attr.
func (r *Registry) ByTable(table, attr string) (Relationship, bool) {
	for _, rel := range r.relationships {
		if rel.ChildTableName == table && rel.ParentKeyAttr == attr {
			return rel, true
		}
	}
	return Relationship{}, false
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent type has any registered child relationships.
func (r *Registry) HasChildren(parentType string) bool {
	return len(r.byParent[parentType]) > 0
}
