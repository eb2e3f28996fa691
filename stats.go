package insertdest

import "github.com/moleculadb/insertdest/storage"

// Stats is an optional observability hook a destination reports block and
// tuple lifecycle events to. Supplied destinations default to NopStats.
type Stats interface {
	BlockCreated(relationID uint32)
	BlockSealed(relationID uint32, blockID storage.BlockID)
	TupleInserted(relationID uint32)
}

type nopStats struct{}

func (nopStats) BlockCreated(uint32)                 {}
func (nopStats) BlockSealed(uint32, storage.BlockID) {}
func (nopStats) TupleInserted(uint32)                {}

// NopStats discards every event.
var NopStats Stats = nopStats{}
