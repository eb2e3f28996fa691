package insertdest

import (
	"context"

	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/storage"
)

// Destination is the contract all three insertion strategies implement.
// Every method is safe for concurrent use by multiple worker goroutines
// inserting into the same relation.
type Destination interface {
	// InsertTuple appends t to whatever block is checked out for this call,
	// finalizing the block as soon as it is full.
	InsertTuple(ctx context.Context, t storage.Tuple) error

	// InsertTupleInBatch behaves like InsertTuple, except a block is never
	// finalized just because a single insert into it was rejected for lack
	// of room; it is only finalized when an insert exactly fills it.
	InsertTupleInBatch(ctx context.Context, t storage.Tuple) error

	// BulkInsert drains accessor, writing each tuple through the same
	// checkout discipline as InsertTupleInBatch. If alwaysMarkFull is true,
	// every block touched during the call is finalized when returned,
	// except one that received zero tuples during this call.
	BulkInsert(ctx context.Context, accessor storage.Accessor, alwaysMarkFull bool) error

	// BulkInsertRemapped behaves like BulkInsert, but attribute attr of the
	// destination relation is populated from column attributeMap[attr] of
	// the accessor's tuples, including for partition routing.
	BulkInsertRemapped(ctx context.Context, attributeMap []int, accessor storage.Accessor, alwaysMarkFull bool) error

	// InsertTuplesFromVector inserts each tuple via InsertTuple, in order.
	InsertTuplesFromVector(ctx context.Context, tuples []storage.Tuple) error

	// PartitioningAttribute returns the attribute this destination routes
	// on, or storage.NoAttribute if it does not partition.
	PartitioningAttribute() storage.AttributeID

	// PartiallyFilledBlocks drains and returns every block this destination
	// is currently holding in memory but has not finalized. After this
	// call, those blocks are no longer tracked by the destination; the
	// caller now owns them.
	PartiallyFilledBlocks() ([]*BlockRef, error)

	// TouchedBlocks returns the id of every block this destination has
	// handed out for insertion over its lifetime: every finalized block,
	// plus every block drained by PartiallyFilledBlocks.
	TouchedBlocks() ([]storage.BlockID, error)
}

// Advanced exposes the block checkout primitives a privileged collaborator
// needs direct access to, such as a sort-run creator that wants a specific
// block rather than whatever a pool would hand out next. This stands in
// for the access a C++ friend class would otherwise get into pool
// internals.
type Advanced interface {
	AcquireSpecificBlock(id storage.BlockID) (*BlockRef, error)
	ReleaseSpecificBlock(ctx context.Context, ref *BlockRef, full bool) error
}

func checkSchema(rel storage.Relation, t storage.Tuple) error {
	if !rel.Schema().Conforms(t) {
		return destErrors.New(destErrors.SchemaMismatch, "tuple does not conform to relation schema")
	}
	return nil
}
