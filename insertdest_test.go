package insertdest_test

import (
	insertdest "github.com/moleculadb/insertdest"
	"github.com/moleculadb/insertdest/bus"
	"github.com/moleculadb/insertdest/logger"
	"github.com/moleculadb/insertdest/mock"
)

// newTestNotifier builds a notifier tagged for relationID, publishing on b
// to a freshly minted scheduler client id, for use across this package's
// tests.
func newTestNotifier(b bus.MessageBus, relationID uint32) *insertdest.Notifier {
	return insertdest.NewNotifier(b, 0, relationID, mock.NewSchedulerClientID(), logger.NopLogger)
}
