package store

import "fmt"

// Relationship declares that documents of ChildKind live under a parent of
// ParentKind.
type Relationship struct {
	// ParentKind is the parent kind (e.g., "Profile").
	ParentKind string

	// ChildKind is the child kind (e.g., "Conference").
	ChildKind string
}

// Registry holds the known kinds and their ancestor relationships. A store
// with a registry rejects keys whose hierarchy is not registered.
type Registry struct {
	relationships []Relationship
	byParent      map[string][]Relationship
	parentOf      map[string]string
	roots         map[string]bool
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byParent: make(map[string][]Relationship),
		parentOf: make(map[string]string),
		roots:    make(map[string]bool),
	}
}

// RegisterRoot declares a kind whose keys have no parent.
func (r *Registry) RegisterRoot(kind string) {
	r.roots[kind] = true
}

// Register adds a relationship to the registry.
func (r *Registry) Register(rel Relationship) {
	r.relationships = append(r.relationships, rel)
	r.byParent[rel.ParentKind] = append(r.byParent[rel.ParentKind], rel)
	r.parentOf[rel.ChildKind] = rel.ParentKind
}

// ChildrenOf returns all child relationships for a given parent kind.
func (r *Registry) ChildrenOf(parentKind string) []Relationship {
	return r.byParent[parentKind]
}

// AllRelationships returns all registered relationships.
func (r *Registry) AllRelationships() []Relationship {
	return r.relationships
}

// HasChildren returns true if the parent kind has any registered child relationships.
func (r *Registry) HasChildren(parentKind string) bool {
	return len(r.byParent[parentKind]) > 0
}

// Validate checks every level of key against the registered hierarchy.
// A nil registry accepts any key.
func (r *Registry) Validate(key *Key) error {
	if r == nil {
		return nil
	}
	for cur := key; cur != nil; cur = cur.Parent {
		if cur.Parent == nil {
			if !r.roots[cur.Kind] {
				return fmt.Errorf("%w: %s is not a root kind", ErrInvalidHierarchy, cur.Kind)
			}
			continue
		}
		parent, ok := r.parentOf[cur.Kind]
		if !ok || parent != cur.Parent.Kind {
			return fmt.Errorf("%w: %s under %s", ErrInvalidHierarchy, cur.Kind, cur.Parent.Kind)
		}
	}
	return nil
}
