package services

import (
	"pose-stream-server-go/internal/domain/envelope"
	"pose-stream-server-go/internal/domain/inference"
)

// DetectionResult is the JSON reply to one frame. On failure the embedded
// Result is nil so detections and count are omitted.
type DetectionResult struct {
	Success bool `json:"success"`
	*inference.Result
	Error             string  `json:"error,omitempty"`
	Timestamp         uint64  `json:"timestamp"`
	CorrelationID     string  `json:"correlationId,omitempty"`
	ProcessingTimeMs  float64 `json:"processingTimeMs"`
	ResponseTimestamp int64   `json:"responseTimestamp"`
}

func (r *DetectionResult) withMeta(meta envelope.Meta) {
	r.Timestamp = meta.Timestamp
	r.CorrelationID = meta.CorrelationID.String()
}

// ControlMessage is a server or client text frame such as ping or heartbeat.
type ControlMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

const (
	ControlPing              = "ping"
	ControlHeartbeat         = "heartbeat"
	ControlHeartbeatResponse = "heartbeat_response"
)
