package insertdest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	insertdest "github.com/moleculadb/insertdest"
	"github.com/moleculadb/insertdest/bus"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/mock"
)

func newAlwaysCreate(t *testing.T, capacity int, b bus.MessageBus) (*insertdest.AlwaysCreateDestination, *mock.Manager) {
	t.Helper()
	rel := mock.NewRelation(1)
	mgr := mock.NewManager(capacity)
	notify := newTestNotifier(b, rel.ID())
	return insertdest.NewAlwaysCreateDestination(rel, nil, mgr, notify, logger.NopLogger, nil), mgr
}

func TestAlwaysCreateInsertTupleSingleTuplePerBlock(t *testing.T) {
	b := bus.NewChannelBus(16)
	d, mgr := newAlwaysCreate(t, 1, b)
	ctx := insertdest.WithSenderClientID(context.Background(), "worker-1")

	for i := 0; i < 3; i++ {
		require.NoError(t, d.InsertTuple(ctx, mock.Tuple{0: i}))
	}

	touched, err := d.TouchedBlocks()
	require.NoError(t, err)
	assert.Len(t, touched, 3)

	partial, err := d.PartiallyFilledBlocks()
	require.NoError(t, err)
	assert.Empty(t, partial)

	assert.EqualValues(t, 3, mgr.Created())
	assert.Len(t, b.Sent(), 3)
}

func TestAlwaysCreateNeverReusesAPartialBlock(t *testing.T) {
	b := bus.NewChannelBus(16)
	d, mgr := newAlwaysCreate(t, 3, b)
	ctx := context.Background()

	require.NoError(t, d.InsertTuple(ctx, mock.Tuple{0: 1}))
	require.NoError(t, d.InsertTuple(ctx, mock.Tuple{0: 2}))

	assert.EqualValues(t, 2, mgr.Created(), "every checkout must create a new block even though the first one had room left")
	partial, err := d.PartiallyFilledBlocks()
	require.NoError(t, err)
	assert.Empty(t, partial, "always-create never tracks a block as reusable")
}
