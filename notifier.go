package insertdest

import (
	"context"

	"github.com/moleculadb/insertdest/bus"
	destErrors "github.com/moleculadb/insertdest/errors"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/storage"
	"github.com/moleculadb/insertdest/wire"
)

// Notifier serializes and publishes a DataPipelineMessage every time a
// destination finalizes a block, so the Foreman scheduler knows when
// downstream pipeline stages can consume it.
type Notifier struct {
	bus               bus.MessageBus
	operatorIndex     uint32
	relationID        uint32
	schedulerClientID string
	log               logger.Logger
}

// NewNotifier returns a Notifier publishing on b, tagging every message with
// operatorIndex and relationID and addressing it to schedulerClientID.
func NewNotifier(b bus.MessageBus, operatorIndex, relationID uint32, schedulerClientID string, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NopLogger
	}
	return &Notifier{
		bus:               b,
		operatorIndex:     operatorIndex,
		relationID:        relationID,
		schedulerClientID: schedulerClientID,
		log:               log,
	}
}

func (n *Notifier) notifyBlockFilled(ctx context.Context, blockID storage.BlockID) error {
	msg := &wire.DataPipelineMessage{
		OperatorIndex: n.operatorIndex,
		BlockId:       uint64(blockID),
		RelationId:    n.relationID,
	}
	payload, err := wire.Encode(msg)
	if err != nil {
		return destErrors.Wrap(err, "encoding pipeline notification")
	}
	if err := n.bus.Send(ctx, senderClientID(ctx), n.schedulerClientID, payload); err != nil {
		n.log.Errorf("pipeline notification for block %d of relation %d failed: %v", blockID, n.relationID, err)
		return destErrors.WithCode(destErrors.Wrap(err, "publishing pipeline notification"), destErrors.BusSendFailed)
	}
	return nil
}
