// Package ai turns free-text audience descriptions into filter groups using a
// language-model text completion service.
package ai

import (
	"context"
	"strings"
)

// CompletionRequest is one system+user prompt exchange.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Completer is the text-completion collaborator. Implementations return
// errors wrapped with retry.Permanent when repeating the call cannot help.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// stripCodeFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
