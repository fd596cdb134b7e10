package notification

import (
	"context"

	"go.uber.org/zap"
)

// Event shapes consumed by the notification collaborator. Delivery is
// fire-and-forget: a failed emit must never fail the operation that
// produced it.

type SeriesAssignedEvent struct {
	PatientID string `json:"patientId"`
	SeriesID  string `json:"seriesId"`
}

type SessionCompletedEvent struct {
	PatientID       string `json:"patientId"`
	SessionID       string `json:"sessionId"`
	SessionNumber   int    `json:"sessionNumber"`
	PainImprovement int    `json:"painImprovement"`
}

// Notifier publishes core events for external consumers.
type Notifier interface {
	SeriesAssigned(ctx context.Context, event SeriesAssignedEvent) error
	SessionCompleted(ctx context.Context, event SessionCompletedEvent) error
}

// logNotifier is the fallback implementation used when no transport is
// configured; it just records the event in the application log.
type logNotifier struct {
	log *zap.SugaredLogger
}

// NewLogNotifier creates a Notifier that only logs events.
func NewLogNotifier(log *zap.SugaredLogger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) SeriesAssigned(_ context.Context, event SeriesAssignedEvent) error {
	n.log.Infow("series assigned",
		"patientId", event.PatientID,
		"seriesId", event.SeriesID,
	)
	return nil
}

func (n *logNotifier) SessionCompleted(_ context.Context, event SessionCompletedEvent) error {
	n.log.Infow("session completed",
		"patientId", event.PatientID,
		"sessionId", event.SessionID,
		"sessionNumber", event.SessionNumber,
		"painImprovement", event.PainImprovement,
	)
	return nil
}
