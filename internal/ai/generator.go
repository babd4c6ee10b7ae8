package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/audience-segments/internal/domain"
	"github.com/ignite/audience-segments/internal/pkg/logger"
	"github.com/ignite/audience-segments/internal/pkg/retry"
)

// Defaults for the completion collaborator.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// State is a step of one generation run.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateValidating
	StateAccepted
	StateRejected
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateRequesting: "requesting",
	StateValidating: "validating",
	StateAccepted:   "accepted",
	StateRejected:   "rejected",
	StateFailed:     "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var transitions = map[State][]State{
	StateIdle:       {StateRequesting},
	StateRequesting: {StateValidating, StateFailed},
	StateValidating: {StateAccepted, StateRejected},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateRejected || s == StateFailed
}

// Result is an accepted generation.
type Result struct {
	FilterGroups  []domain.FilterGroupSpec `json:"filter_groups"`
	SuggestedName string                   `json:"suggested_name"`
}

// Generator converts descriptions into filter groups.
type Generator struct {
	completer    Completer
	policy       retry.Policy
	onTransition func(from, to State)
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetryPolicy overrides the retry policy for the filter request.
func WithRetryPolicy(p retry.Policy) Option {
	return func(g *Generator) { g.policy = p }
}

// WithTransitionHook registers a callback invoked on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(g *Generator) { g.onTransition = fn }
}

// NewGenerator creates a generator that retries transient completion
// failures DefaultMaxAttempts times, DefaultRetryDelay apart.
func NewGenerator(c Completer, opts ...Option) *Generator {
	g := &Generator{
		completer: c,
		policy:    retry.Fixed(DefaultMaxAttempts, DefaultRetryDelay),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type run struct {
	g     *Generator
	state State
}

func (r *run) to(next State) {
	allowed := false
	for _, s := range transitions[r.state] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		panic(fmt.Sprintf("ai: invalid generation transition %s -> %s", r.state, next))
	}
	logger.Debug("segment generation state", "from", r.state.String(), "to", next.String())
	if r.g.onTransition != nil {
		r.g.onTransition(r.state, next)
	}
	r.state = next
}

// Generate asks the model for filter groups matching description and a name
// for the segment. Errors wrap one of the package sentinels; show them with
// UserMessage.
func (g *Generator) Generate(ctx context.Context, description string) (*Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	r := &run{g: g, state: StateIdle}
	r.to(StateRequesting)

	var content string
	err := retry.Do(ctx, g.policy, "ai.generate_filters", func(ctx context.Context) error {
		var err error
		content, err = g.completer.Complete(ctx, CompletionRequest{
			System:      filterSystemPrompt,
			User:        filterUserPrompt(description),
			Temperature: 0.2,
			MaxTokens:   500,
		})
		return err
	})
	if err != nil {
		r.to(StateFailed)
		logger.Error("AI segment generation failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	r.to(StateValidating)
	groups, err := ParseFilterGroups(content)
	if err != nil {
		r.to(StateRejected)
		logger.Warn("AI response rejected", "error", err, "content", truncate(content, 500))
		return nil, err
	}
	r.to(StateAccepted)

	return &Result{FilterGroups: groups, SuggestedName: g.SuggestName(ctx, description)}, nil
}

// SuggestName asks the model for a short marketing name and falls back to
// FallbackName when the call fails or returns nothing usable.
func (g *Generator) SuggestName(ctx context.Context, description string) string {
	content, err := g.completer.Complete(ctx, CompletionRequest{
		System:      nameSystemPrompt,
		User:        nameUserPrompt(description),
		Temperature: 0.3,
		MaxTokens:   20,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("AI name generation failed", "error", err)
		}
		return FallbackName(description)
	}
	if name := cleanName(content); name != "" {
		return name
	}
	return FallbackName(description)
}
