// Package wire defines the on-the-wire messages this subsystem publishes
// and the tagged envelope convention used to multiplex them, mirroring the
// teacher's MarshalMessage/UnmarshalMessage convention: a single
// message-type byte followed by a gogo/protobuf-encoded payload.
package wire

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// MessageType tags the payload that follows it in the wire envelope.
type MessageType byte

const (
	// DataPipeline tags a DataPipelineMessage.
	DataPipeline MessageType = 1
)

// DataPipelineMessage is sent to the scheduler whenever a storage block is
// sealed as full. It implements proto.Message by hand (no .proto file is
// compiled for this small, stable schema) so it can ride gogo/protobuf's
// reflection-based Marshal/Unmarshal directly.
type DataPipelineMessage struct {
	OperatorIndex uint32 `protobuf:"varint,1,opt,name=operator_index,json=operatorIndex" json:"operator_index,omitempty"`
	BlockId       uint64 `protobuf:"varint,2,opt,name=block_id,json=blockId" json:"block_id,omitempty"`
	RelationId    uint32 `protobuf:"varint,3,opt,name=relation_id,json=relationId" json:"relation_id,omitempty"`
}

func (m *DataPipelineMessage) Reset()         { *m = DataPipelineMessage{} }
func (m *DataPipelineMessage) String() string { return fmt.Sprintf("%+v", *m) }
func (m *DataPipelineMessage) ProtoMessage()  {}

// Encode marshals m into a tagged envelope: one MessageType byte followed by
// the protobuf-encoded message.
func Encode(m *DataPipelineMessage) ([]byte, error) {
	buf, err := proto.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(DataPipeline)}, buf...), nil
}

// Decode reverses Encode, rejecting envelopes tagged with any other
// MessageType.
func Decode(buf []byte) (*DataPipelineMessage, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("wire: empty envelope")
	}
	typ, body := MessageType(buf[0]), buf[1:]
	if typ != DataPipeline {
		return nil, fmt.Errorf("wire: unexpected message type %d", typ)
	}
	m := &DataPipelineMessage{}
	if err := proto.Unmarshal(body, m); err != nil {
		return nil, err
	}
	return m, nil
}
