package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/moleculadb/insertdest/wire"
)

func TestDescriptorRoundTripIsByteIdentical(t *testing.T) {
	d := &wire.Descriptor{
		Kind:               wire.PartitionAware,
		RelationId:         42,
		OperatorIndex:      2,
		SchedulerClientId:  "scheduler-1",
		PartitionSchemeRef: "hash-mod-4",
	}

	buf1, err := wire.EncodeDescriptor(d)
	require.NoError(t, err)

	decoded, err := wire.DecodeDescriptor(buf1)
	require.NoError(t, err)
	require.Equal(t, d, decoded)

	buf2, err := wire.EncodeDescriptor(decoded)
	require.NoError(t, err)
	require.Equal(t, buf1, buf2)
}
