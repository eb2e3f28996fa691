package wire

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// StrategyKind tags which of the three insert destination strategies a
// Descriptor reconstructs.
type StrategyKind int32

const (
	AlwaysCreate StrategyKind = iota
	BlockPool
	PartitionAware
)

func (k StrategyKind) String() string {
	switch k {
	case AlwaysCreate:
		return "ALWAYS_CREATE"
	case BlockPool:
		return "BLOCK_POOL"
	case PartitionAware:
		return "PARTITION_AWARE"
	default:
		return "UNKNOWN"
	}
}

// Descriptor is the serialized form of an insert destination, used to
// reconstruct one from a query plan. LayoutBytes is optional: when empty,
// the destination borrows the relation's default layout.
type Descriptor struct {
	Kind              StrategyKind `protobuf:"varint,1,opt,name=kind" json:"kind,omitempty"`
	RelationId        uint32       `protobuf:"varint,2,opt,name=relation_id,json=relationId" json:"relation_id,omitempty"`
	LayoutBytes       []byte       `protobuf:"bytes,3,opt,name=layout_bytes,json=layoutBytes" json:"layout_bytes,omitempty"`
	OperatorIndex     uint32       `protobuf:"varint,4,opt,name=operator_index,json=operatorIndex" json:"operator_index,omitempty"`
	SchedulerClientId string       `protobuf:"bytes,5,opt,name=scheduler_client_id,json=schedulerClientId" json:"scheduler_client_id,omitempty"`
	// PartitionSchemeRef names the partition scheme of a PartitionAware
	// descriptor. It is carried through encoding only: BuildDestination
	// does not read it and takes the scheme from the relation instead.
	PartitionSchemeRef string `protobuf:"bytes,6,opt,name=partition_scheme_ref,json=partitionSchemeRef" json:"partition_scheme_ref,omitempty"`
}

func (m *Descriptor) Reset()         { *m = Descriptor{} }
func (m *Descriptor) String() string { return fmt.Sprintf("%+v", *m) }
func (m *Descriptor) ProtoMessage()  {}

// EncodeDescriptor marshals a Descriptor to protobuf bytes.
func EncodeDescriptor(d *Descriptor) ([]byte, error) {
	return proto.Marshal(d)
}

// DecodeDescriptor reverses EncodeDescriptor.
func DecodeDescriptor(buf []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := proto.Unmarshal(buf, d); err != nil {
		return nil, err
	}
	return d, nil
}
