package chat

const (
	metaTokensUsed = "tokensUsed"
	metaModel      = "model"
	metaStale      = "stale"
)

type SendInput struct {
	Message   string
	SessionID string
}

type SendResult struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
	Stale     bool   `json:"stale,omitempty"`
}
