package insertdest

import (
	"encoding/binary"

	"github.com/moleculadb/insertdest/bus"
	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/storage"
	"github.com/moleculadb/insertdest/wire"
)

// layoutAttributeCount extracts the attribute count a descriptor's layout
// bytes were built for: a big-endian uint32 header. The remaining bytes
// describe the block's physical layout, which is the storage manager's
// concern and opaque to this module; only the header needs to be checked
// against the relation's schema before a destination is built from it.
func layoutAttributeCount(layoutBytes []byte) (int, error) {
	if len(layoutBytes) < 4 {
		return 0, destErrors.New(destErrors.ProtocolInvalid, "descriptor layout bytes too short to carry an attribute count header")
	}
	return int(binary.BigEndian.Uint32(layoutBytes[:4])), nil
}

// ValidateDescriptor checks a serialized destination descriptor against the
// relation it claims to target: an unknown relation id, a layout
// inconsistent with the relation's schema, or a PARTITION_AWARE descriptor
// on a relation with no partition scheme, are all protocol errors a query
// plan reconstructed from this descriptor must reject rather than run
// against.
func ValidateDescriptor(d *wire.Descriptor, rel storage.Relation) error {
	if rel == nil || rel.ID() != d.RelationId {
		return destErrors.New(destErrors.ProtocolInvalid, "descriptor references an unknown relation")
	}
	if len(d.LayoutBytes) > 0 {
		n, err := layoutAttributeCount(d.LayoutBytes)
		if err != nil {
			return err
		}
		if n != rel.Schema().AttributeCount() {
			return destErrors.New(destErrors.ProtocolInvalid, "descriptor layout is inconsistent with the relation's schema")
		}
	}
	if d.Kind == wire.PartitionAware {
		if _, ok := rel.PartitionScheme(); !ok {
			return destErrors.New(destErrors.ProtocolInvalid, "partition-aware descriptor on a relation with no partition scheme")
		}
	}
	return nil
}

// BuildDestination reconstructs the Destination a serialized descriptor
// describes, validating it against rel first.
func BuildDestination(d *wire.Descriptor, rel storage.Relation, layout storage.Layout, manager storage.Manager, b bus.MessageBus, log logger.Logger, stats Stats) (Destination, error) {
	if err := ValidateDescriptor(d, rel); err != nil {
		return nil, err
	}
	notify := NewNotifier(b, d.OperatorIndex, rel.ID(), d.SchedulerClientId, log)
	switch d.Kind {
	case wire.AlwaysCreate:
		return NewAlwaysCreateDestination(rel, layout, manager, notify, log, stats), nil
	case wire.BlockPool:
		return NewPoolDestination(rel, layout, manager, notify, log, stats), nil
	case wire.PartitionAware:
		scheme, _ := rel.PartitionScheme()
		return NewPartitionAwareDestination(rel, scheme, layout, manager, notify, log, stats), nil
	default:
		return nil, destErrors.Newf(destErrors.ProtocolInvalid, "unknown strategy kind %d", d.Kind)
	}
}
