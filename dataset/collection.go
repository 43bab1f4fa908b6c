package dataset

import (
	geo "github.com/nci/geometry"
	"golang.org/x/net/context"
)

// MemberDescriptor carries the identifier and lightweight metadata of one
// collection member. Producing a descriptor has no side effect of
// instantiating the member or any sibling.
type MemberDescriptor struct {
	// ID addresses the member within its collection.
	ID string
	// Name is the display name of the member.
	Name string
	Kind Kind
	// Path locates the member in the backing storage.
	Path string
	// Signature fingerprints the member's backing resource (path plus
	// modification state); it changes whenever the resource changes.
	Signature string
	// Attributes are the member's queryable attribute values.
	Attributes map[string]interface{}
	// Footprint is the member's spatial footprint when known.
	Footprint *geo.Feature
}

// Collection is a named, possibly nested grouping of grids and tables.
// Enumeration is lazy and restartable: each List call re-scans the backing
// storage. Traversal of nested collections must not loop forever on
// reference cycles in the backing storage; implementations fail with
// CyclicCollectionError instead.
type Collection interface {
	Dataset

	// List enumerates member descriptors matching the filter expression.
	// An empty filter matches every member.
	List(ctx context.Context, filter string) ([]*MemberDescriptor, error)

	// Resolve instantiates the member addressed by id. Fails with
	// NotFoundError when id is absent and AmbiguousIdentifierError when it
	// matches more than one member.
	Resolve(ctx context.Context, id string) (Dataset, error)

	// ResolveAll instantiates every member matching the filter.
	ResolveAll(ctx context.Context, filter string) ([]Dataset, error)
}
