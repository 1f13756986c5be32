package model

// ExchangeRecord is the server-side record of one generation exchange,
// queued for asynchronous append to the session chat history.
type ExchangeRecord struct {
	SessionID uint        `json:"sessionId"`
	UserID    uint        `json:"userId"`
	Prompt    string      `json:"prompt"`
	Message   ChatMessage `json:"message"`
}
