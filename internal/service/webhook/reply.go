package webhook

// FallbackReply is shown when a response carries no recognisable reply text.
const FallbackReply = "Desculpe, não consegui processar sua mensagem."

var replyKeys = []string{"resposta-i.a", "response", "message"}

// ExtractReply picks the assistant text out of a send-message response.
// Arrays (workflows answering with all items) are unwrapped to their first element.
func ExtractReply(body any) string {
	if items, ok := body.([]any); ok {
		if len(items) == 0 {
			return FallbackReply
		}
		body = items[0]
	}

	fields, ok := body.(map[string]any)
	if !ok {
		return FallbackReply
	}
	for _, key := range replyKeys {
		if text, ok := fields[key].(string); ok && text != "" {
			return text
		}
	}
	return FallbackReply
}
