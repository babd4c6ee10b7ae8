package ai

import "errors"

// Sentinel errors for AI segment generation.
var (
	ErrEmptyDescription = errors.New("description is required")
	ErrUnparseable      = errors.New("AI response was not valid JSON")
	ErrInvalidResponse  = errors.New("AI generated invalid filter structure")
	ErrUnavailable      = errors.New("AI generation temporarily unavailable")
	ErrRateLimited      = errors.New("too many AI generation requests")
)

// UserMessage maps a generation error to a message that can be shown to the
// seller. Internal detail never leaves this function.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyDescription):
		return "Description is required"
	case errors.Is(err, ErrUnparseable), errors.Is(err, ErrInvalidResponse):
		return "We couldn't understand that description. Try rephrasing it and generate again."
	case errors.Is(err, ErrRateLimited):
		return "You've generated a lot of segments recently. Please wait a minute and try again."
	default:
		return "AI generation is temporarily unavailable. Please try again in a moment."
	}
}
