package collab

import (
	"context"
	"log/slog"

	"travelmate/internal/domain"
)

// LocationLogger records live location updates in the log. The map
// subsystem owns the real sink.
type LocationLogger struct {
	log *slog.Logger
}

var _ domain.LocationSink = (*LocationLogger)(nil)

func NewLocationLogger(log *slog.Logger) *LocationLogger {
	return &LocationLogger{log: log}
}

func (l *LocationLogger) UpdateLocation(ctx context.Context, userID string, lat, lng float64) error {
	l.log.DebugContext(ctx, "location update", "user_id", userID, "lat", lat, "lng", lng)
	return nil
}
