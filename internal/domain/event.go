package domain

// Wire contract shared with the balance ledger service. The payloads travel
// as raw JSON, no envelope.
const (
	CommandSubtract = "SUBTRACT"

	DebitStatusCompleted = "COMPLETED"
	DebitStatusFailed    = "FAILED"
)

type DebitRequest struct {
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount"`
	Command string  `json:"command"`
}

type DebitReply struct {
	UserID string  `json:"userId"`
	Status string  `json:"status"`
	Amount float64 `json:"amount"`
}
