package insertdest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insertdest "github.com/moleculadb/insertdest"
	"github.com/moleculadb/insertdest/bus"
	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/mock"
	"github.com/moleculadb/insertdest/partition"
	"github.com/moleculadb/insertdest/storage"
)

const partitionAttr storage.AttributeID = 0

func newPartitionAwareDestination(t *testing.T, n, capacity int, b bus.MessageBus) *insertdest.PartitionAwareDestination {
	t.Helper()
	rel := mock.NewRelation(3)
	rel.HasPartition = true
	scheme := partition.NewHashModScheme(n, partitionAttr)
	rel.PartScheme = scheme
	mgr := mock.NewManager(capacity)
	notify := newTestNotifier(b, rel.ID())
	return insertdest.NewPartitionAwareDestination(rel, scheme, nil, mgr, notify, logger.NopLogger, nil)
}

func TestPartitionAwareRoutesByHashModAndNeverMixesPartitions(t *testing.T) {
	b := bus.NewChannelBus(64)
	d := newPartitionAwareDestination(t, 4, 1000, b)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		require.NoError(t, d.InsertTuple(ctx, mock.Tuple{partitionAttr: i}))
	}

	touched, err := d.TouchedBlocks()
	require.NoError(t, err)
	assert.Empty(t, touched, "capacity is large enough that no block seals yet")

	partial, err := d.PartiallyFilledBlocks()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(partial), 4, "at most one in-memory block per partition")

	seenPartitions := map[int]bool{}
	for _, ref := range partial {
		seenPartitions[ref.Partition()] = true
	}
	assert.NotEmpty(t, seenPartitions)
	for p := range seenPartitions {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 4)
	}
}

func TestPartitionAwareTupleMissingKeyIsPartitionKeyMissing(t *testing.T) {
	b := bus.NewChannelBus(16)
	d := newPartitionAwareDestination(t, 4, 10, b)

	err := d.InsertTuple(context.Background(), mock.Tuple{1: "no partition attr"})
	require.Error(t, err)
	assert.True(t, destErrors.Is(err, destErrors.PartitionKeyMissing))
}

func TestPartitionAwareBulkInsertGroupsByPartitionInOrder(t *testing.T) {
	b := bus.NewChannelBus(16)
	d := newPartitionAwareDestination(t, 4, 2, b)

	tuples := make([]storage.Tuple, 0, 20)
	for i := 0; i < 20; i++ {
		tuples = append(tuples, mock.Tuple{partitionAttr: i})
	}
	acc := mock.NewSliceAccessor(tuples)
	require.NoError(t, d.BulkInsert(context.Background(), acc, true))

	touched, err := d.TouchedBlocks()
	require.NoError(t, err)
	assert.NotEmpty(t, touched)
}

// TestPartitionAwareBulkInsertAlwaysMarkFullSkipsAnAlreadyFullSeededBlock
// mirrors the block-pool livelock regression above, but against a
// partition-aware destination's per-partition pool with alwaysMarkFull=true:
// a pre-full backlog block rejects the first tuple routed to its partition
// during this call, so flush never seals it, and the very next checkout for
// that partition must not hand the same block straight back out.
func TestPartitionAwareBulkInsertAlwaysMarkFullSkipsAnAlreadyFullSeededBlock(t *testing.T) {
	b := bus.NewChannelBus(16)
	rel := mock.NewRelation(17)
	rel.HasPartition = true
	scheme := partition.NewHashModScheme(2, partitionAttr)
	scheme.RecordBlock(storage.BlockID(55), 1)
	rel.PartScheme = scheme
	rel.Blocks = []storage.BlockID{55}

	mgr := mock.NewManager(2)
	full := mock.NewBlockHandle(55, 1)
	_, err := full.Insert(mock.Tuple{partitionAttr: 0})
	require.NoError(t, err)
	mgr.LoadBlockHandle(55, full)

	notify := newTestNotifier(b, rel.ID())
	d := insertdest.NewPartitionAwareDestination(rel, scheme, nil, mgr, notify, logger.NopLogger, nil)
	d.AddAllBlocksFromRelation()

	var key int
	for i := 0; i < 1000; i++ {
		p, err := scheme.PartitionOf(i)
		require.NoError(t, err)
		if p == 1 {
			key = i
			break
		}
	}

	acc := mock.NewSliceAccessor([]storage.Tuple{mock.Tuple{partitionAttr: key}})
	done := make(chan error, 1)
	go func() { done <- d.BulkInsert(context.Background(), acc, true) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("alwaysMarkFull BulkInsert against an already-full seeded block did not return; livelocked")
	}

	assert.EqualValues(t, 1, mgr.Created(), "the rejecting seeded block is skipped in favor of a freshly created one")
}

func TestPartitionAwareAddAllBlocksFromRelationRoutesByRecordedPartition(t *testing.T) {
	b := bus.NewChannelBus(16)
	rel := mock.NewRelation(5)
	rel.HasPartition = true
	scheme := partition.NewHashModScheme(2, partitionAttr)
	scheme.RecordBlock(storage.BlockID(42), 1)
	rel.PartScheme = scheme
	rel.Blocks = []storage.BlockID{42}
	mgr := mock.NewManager(10)
	mgr.LoadBlock(42)
	notify := newTestNotifier(b, rel.ID())
	d := insertdest.NewPartitionAwareDestination(rel, scheme, nil, mgr, notify, logger.NopLogger, nil)

	d.AddAllBlocksFromRelation()

	// A value hashing to partition 1 should reuse block 42 rather than
	// creating a new one.
	var key int
	for i := 0; i < 1000; i++ {
		p, err := scheme.PartitionOf(i)
		require.NoError(t, err)
		if p == 1 {
			key = i
			break
		}
	}
	require.NoError(t, d.InsertTuple(context.Background(), mock.Tuple{partitionAttr: key}))
	assert.EqualValues(t, 0, mgr.Created())
}
