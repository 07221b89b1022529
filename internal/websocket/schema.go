package websocket

import "time"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave  Action = "autosave"
	ActionViolation Action = "violation"
	ActionSubmit    Action = "submit"
	ActionPing      Action = "ping"
)

// RequestPayload is the single client message shape; fields beyond Action
// are read depending on the action.
type RequestPayload struct {
	Action Action `json:"action"`
	// autosave
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	// violation
	ViolationType string    `json:"type,omitempty"`
	OccurredAt    time.Time `json:"occurred_at,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventSaved     Event = "saved"
	EventViolation Event = "violation"
	EventFinalized Event = "finalized"
	EventPong      Event = "pong"
)

type SavedResponse struct {
	Event Event  `json:"event"`
	QID   string `json:"q_id"`
}

// ViolationResponse tells the client whether the event was recorded and
// whether it tripped the auto-submit threshold.
type ViolationResponse struct {
	Event             Event `json:"event"`
	Accepted          bool  `json:"accepted"`
	ThresholdBreached bool  `json:"threshold_breached"`
}

// FinalizedResponse carries the immutable outcome once the attempt closes.
type FinalizedResponse struct {
	Event      Event   `json:"event"`
	Status     string  `json:"status"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
	Passed     bool    `json:"passed"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

// PongResponse echoes the server clock so clients can correct drift.
type PongResponse struct {
	Event            Event    `json:"event"`
	ServerTime       string   `json:"server_time"`
	RemainingSeconds *float64 `json:"remaining_seconds,omitempty"`
}
