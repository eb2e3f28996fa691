// Package insertdest implements the Insert Destination subsystem of a
// distributed analytic database: the component that decides where a
// query-plan operator's output tuple lands among a relation's storage
// blocks, under concurrent insertion from many worker goroutines, and that
// tells the scheduler whenever a block fills up.
//
// Three strategies share the Destination contract:
//
//   - AlwaysCreateDestination allocates a fresh block on every checkout and
//     never reuses a partially-filled one.
//   - PoolDestination keeps a pool of partially-filled blocks and hands
//     them out one at a time.
//   - PartitionAwareDestination keeps one independent pool per partition,
//     routing tuples by a partition scheme's hash of the partitioning
//     attribute.
//
// The storage manager, relation catalog, partition scheme, and value
// accessor are all external collaborators defined in the storage package.
// The message bus used to publish "block filled" notifications is in the
// bus package; the wire format for those notifications is in wire.
package insertdest
