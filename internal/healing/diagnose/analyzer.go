// Package diagnose turns an error event into a recovery recommendation.
// The primary path asks the chat-completion collaborator; any failure there
// degrades to the deterministic rule tree, so Analyze always succeeds.
package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/sanitize"
)

// maxStackInPrompt bounds how much stack trace is sent to the collaborator.
const maxStackInPrompt = 600

// ChatCompleter is the diagnostic collaborator surface.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Configured() bool
}

// Analyzer produces an AIAnalysis for an error event.
type Analyzer struct {
	llm ChatCompleter
	log *slog.Logger
}

// NewAnalyzer creates an analyzer. llm may be nil; the rule tree then
// handles everything.
func NewAnalyzer(llm ChatCompleter) *Analyzer {
	return &Analyzer{
		llm: llm,
		log: slog.With("component", "diagnose"),
	}
}

// Analyze never returns an error: a usable AIAnalysis always comes back.
func (a *Analyzer) Analyze(ctx context.Context, event domain.ErrorEvent) domain.AIAnalysis {
	if a.llm != nil && a.llm.Configured() {
		analysis, err := a.analyzeLLM(ctx, event)
		if err == nil {
			return analysis
		}
		a.log.Debug("LLM diagnosis failed, using rule tree", "source", event.Source, "error", err)
	}
	return RuleBased(event)
}

const systemPrompt = `You are a production error-recovery analyst. ` +
	`Reply with a single JSON object and nothing else, with the fields: ` +
	`diagnosis (string, max 100 chars), recommended_strategy (one of the listed strategy names), ` +
	`confidence (number 0-1), severity (low|medium|high|critical), ` +
	`reasoning (string, max 150 chars), estimated_fix_time_ms (integer).`

func (a *Analyzer) analyzeLLM(ctx context.Context, event domain.ErrorEvent) (domain.AIAnalysis, error) {
	reply, err := a.llm.Complete(ctx, systemPrompt, buildPrompt(event))
	if err != nil {
		return domain.AIAnalysis{}, err
	}
	return parseReply(reply)
}

// buildPrompt assembles a bounded, sanitized description of the failure
// plus the fixed strategy menu.
func buildPrompt(event domain.ErrorEvent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "category: %s\n", event.Category)
	fmt.Fprintf(&b, "source: %s\n", event.Source)
	fmt.Fprintf(&b, "message: %s\n", sanitize.String(event.Message))

	if event.Stack != "" {
		stack := event.Stack
		if len(stack) > maxStackInPrompt {
			stack = stack[:maxStackInPrompt] + "..."
		}
		fmt.Fprintf(&b, "stack: %s\n", stack)
	}

	if len(event.Context) > 0 {
		if data, err := json.Marshal(sanitize.Map(event.Context)); err == nil {
			fmt.Fprintf(&b, "context: %s\n", sanitize.String(string(data)))
		}
	}

	b.WriteString("\navailable strategies:\n")
	for _, s := range domain.Strategies {
		fmt.Fprintf(&b, "- %s: %s\n", s, domain.StrategyDescriptions[s])
	}
	return b.String()
}

// parseReply extracts the structured verdict from the assistant text.
// Models wrap JSON in fences or prose often enough that strict decoding is
// a losing game; gjson over the located object tolerates both.
func parseReply(reply string) (domain.AIAnalysis, error) {
	raw := extractJSON(reply)
	if raw == "" || !gjson.Valid(raw) {
		return domain.AIAnalysis{}, fmt.Errorf("no JSON object in reply: %q", truncateForLog(reply))
	}

	strategy, err := domain.ParseStrategy(gjson.Get(raw, "recommended_strategy").String())
	if err != nil {
		return domain.AIAnalysis{}, err
	}

	confidence := gjson.Get(raw, "confidence").Float()
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	severity := domain.Severity(gjson.Get(raw, "severity").String())
	switch severity {
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	default:
		severity = domain.SeverityMedium
	}

	return domain.AIAnalysis{
		Diagnosis:           capLen(gjson.Get(raw, "diagnosis").String(), domain.MaxDiagnosisLen),
		RecommendedStrategy: strategy,
		Confidence:          confidence,
		Severity:            severity,
		Reasoning:           capLen(gjson.Get(raw, "reasoning").String(), domain.MaxReasoningLen),
		EstimatedFixTimeMs:  int(gjson.Get(raw, "estimated_fix_time_ms").Int()),
	}, nil
}

// extractJSON returns the first balanced {...} span in the text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func capLen(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func truncateForLog(s string) string {
	if len(s) <= 120 {
		return s
	}
	return s[:120] + "..."
}
