package cache

// Request purposes recognised by the TTL policy.
const (
	PurposeTemplate     = "template"
	PurposeSystemPrompt = "system_prompt"
	PurposeChat         = "chat"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a completion call. It is both the cache-key input and
// the payload the completion client sends.
type Request struct {
	Model       string    `json:"model,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`

	// Purpose classifies caller intent for TTL selection. It does not
	// change the generated output, so it is excluded from the key.
	Purpose string `json:"-"`
}

// Temperature returns a pointer to t for Request.Temperature.
func Temperature(t float64) *float64 {
	return &t
}

// PrimaryInput returns the content of the last user message.
func (r Request) PrimaryInput() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
