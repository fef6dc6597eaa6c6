package chatrelay

import (
	_ "embed"
	"strings"
)

//go:embed system_prompt.txt
var systemPrompt string

// SystemPrompt returns the instruction block prepended to every conversation.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}
