package types

import (
	"encoding/json"
	"time"
)

const (
	EventScanCreated         = "scan.created"
	EventScansCleared        = "scans.cleared"
	EventPredictionCompleted = "prediction.completed"
)

// Event is the envelope published to the message queue.
type Event struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// ScansClearedPayload reports a bulk history deletion.
type ScansClearedPayload struct {
	Deleted int64 `json:"deleted"`
}

// PredictionCompletedPayload describes a relayed prediction.
type PredictionCompletedPayload struct {
	FileName   string     `json:"fileName"`
	Status     int        `json:"status"`
	ObjectKey  string     `json:"objectKey,omitempty"`
	ReceivedAt time.Time  `json:"receivedAt"`
	Prediction Prediction `json:"prediction"`
}
