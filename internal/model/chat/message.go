package chat

import "time"

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// TimestampLayout renders message times as hour:minute.
const TimestampLayout = "15:04"

// Message is one entry in the trial chat transcript.
type Message struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Sender    Sender `json:"sender"`
	Timestamp string `json:"timestamp"`
	IsLoading bool   `json:"isLoading,omitempty"`
}

// Stamp formats t with TimestampLayout.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
