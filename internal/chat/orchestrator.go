// Package chat answers free-form user questions. Recognized intents are
// dispatched to their bound tool; everything else goes to the inference
// provider with retrieved ledger context prepended.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asiento-ai/asiento/internal/engine"
	"github.com/asiento-ai/asiento/internal/intent"
	"github.com/asiento-ai/asiento/internal/retrieval"
)

const systemPrompt = `You are an accounting assistant for Peruvian double-entry bookkeeping.
Answer the user's question concisely. When the provided context names relevant accounts or past entries, ground your answer in them and cite account codes.`

// ToolExecutor runs a named tool for an intent-matched message.
type ToolExecutor interface {
	Execute(ctx context.Context, tool, message string) (string, error)
}

// ToolExecutorFunc adapts a function to the ToolExecutor interface.
type ToolExecutorFunc func(ctx context.Context, tool, message string) (string, error)

func (f ToolExecutorFunc) Execute(ctx context.Context, tool, message string) (string, error) {
	return f(ctx, tool, message)
}

// Answer is one chat response. Intent and Tool are set when the message was
// handled by a tool instead of the model.
type Answer struct {
	Text   string `json:"text"`
	Intent string `json:"intent,omitempty"`
	Tool   string `json:"tool,omitempty"`
}

// Orchestrator routes messages between intent tools and grounded chat.
type Orchestrator struct {
	matcher   *intent.Matcher
	registry  *engine.Registry
	retriever *retrieval.Coordinator
	tools     ToolExecutor
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. tools may be nil, in which case
// every message goes to the model.
func NewOrchestrator(matcher *intent.Matcher, registry *engine.Registry, retriever *retrieval.Coordinator, tools ToolExecutor) *Orchestrator {
	return &Orchestrator{
		matcher:   matcher,
		registry:  registry,
		retriever: retriever,
		tools:     tools,
		logger:    slog.Default(),
	}
}

// Respond answers one message. Intent matching and tool failures degrade to
// grounded chat rather than failing the request; only a provider failure is
// returned as an error.
func (o *Orchestrator) Respond(ctx context.Context, message, providerName string) (Answer, error) {
	if strings.TrimSpace(message) == "" {
		return Answer{}, fmt.Errorf("empty message")
	}

	match := o.matchIntent(ctx, message)
	if match != nil && match.Tool != "" && o.tools != nil {
		out, err := o.tools.Execute(ctx, match.Tool, message)
		if err == nil {
			return Answer{Text: out, Intent: match.Name, Tool: match.Tool}, nil
		}
		o.logger.Warn("tool execution failed, answering via chat",
			"intent", match.Name, "tool", match.Tool, "error", err)
	}

	prompt := message
	var intentName string
	if match != nil && match.Prompt != "" {
		prompt = applyPromptTemplate(match.Prompt, message)
		intentName = match.Name
	}

	ans, err := o.chatAnswer(ctx, message, prompt, providerName)
	if err == nil && ans.Intent == "" {
		ans.Intent = intentName
	}
	return ans, err
}

// applyPromptTemplate substitutes the user message into an intent's prompt
// template. A template without a %s placeholder is prepended instead.
func applyPromptTemplate(template, message string) string {
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, message)
	}
	return template + "\n\n" + message
}

// matchIntent returns nil on any matcher failure; chat must not block on it.
func (o *Orchestrator) matchIntent(ctx context.Context, message string) *intent.Match {
	if o.matcher == nil {
		return nil
	}
	match, err := o.matcher.Match(ctx, message)
	if err != nil {
		o.logger.Warn("intent matching failed", "error", err)
		return nil
	}
	return match
}

// chatAnswer asks the model. Retrieval runs on the raw message; prompt is
// what the model actually sees, already templated when the matched intent
// carries one.
func (o *Orchestrator) chatAnswer(ctx context.Context, message, prompt, providerName string) (Answer, error) {
	provider, err := o.registry.Get(providerName)
	if err != nil {
		return Answer{}, err
	}

	var sb strings.Builder
	if o.retriever != nil {
		retrieved, err := o.retriever.Retrieve(ctx, message)
		if err != nil {
			o.logger.Warn("retrieval failed, answering without context", "error", err)
		} else {
			if len(retrieved.Accounts) > 0 {
				sb.WriteString("[Relevant Accounts]\n")
				for _, a := range retrieved.Accounts {
					fmt.Fprintf(&sb, "- %s\n", a.Text)
				}
			}
			if len(retrieved.Entries) > 0 {
				sb.WriteString("\n[Similar Past Entries]\n")
				for _, e := range retrieved.Entries {
					fmt.Fprintf(&sb, "- %s\n", e.Text)
				}
			}
		}
	}

	userContent := prompt
	if ctxText := sb.String(); ctxText != "" {
		userContent = ctxText + "\n" + prompt
	}

	text, err := provider.Engine.Chat(ctx, provider.ChatModel, []engine.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userContent},
	}, nil)
	if err != nil {
		return Answer{}, fmt.Errorf("chat with %s: %w", provider.Name, err)
	}

	return Answer{Text: text}, nil
}
