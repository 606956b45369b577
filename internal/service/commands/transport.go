package commands

import (
	"context"
	"log/slog"

	"github.com/lbaudin/androfleet/internal/models"
)

// Transport pushes a freshly queued command toward the device. Delivery is an
// external capability: enqueue commits first and never blocks on it, and a
// transport failure leaves the command queued for the device's next poll.
type Transport interface {
	Deliver(ctx context.Context, device *models.Device, cmd *models.Command) error
}

// LogTransport is the default transport: it records the dispatch intent and
// relies on device polling. A push implementation (FCM, long-poll wakeup)
// slots in behind the same interface.
type LogTransport struct {
	Log *slog.Logger
}

func (t *LogTransport) Deliver(_ context.Context, device *models.Device, cmd *models.Command) error {
	t.Log.Info("command awaiting device poll",
		"command_id", cmd.CommandID,
		"type", cmd.Type,
		"android_id", device.AndroidID,
	)
	return nil
}
