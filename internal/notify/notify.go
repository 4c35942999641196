// Package notify escalates healing failures and unhealthy probes to
// operators. Delivery is best-effort: per-recipient failures are logged
// individually and never affect the orchestrator's result.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remedyops/healer/internal/core/domain"
	"github.com/remedyops/healer/internal/healing/metrics"
	"github.com/remedyops/healer/internal/healing/strategy"
)

// Recipient is an operator registered for escalations.
type Recipient struct {
	ID      string `json:"id"      yaml:"id"`
	Channel string `json:"channel" yaml:"channel"` // email, sms, webhook
}

// Notification is one message to one recipient.
type Notification struct {
	RecipientID string `json:"recipient_id"`
	Channel     string `json:"channel"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
}

// Sender delivers one notification. The collaborator boundary.
type Sender interface {
	SendNotification(ctx context.Context, n Notification) error
}

// OperatorDirectory lists escalation recipients.
type OperatorDirectory interface {
	GetOperators(ctx context.Context) ([]Recipient, error)
}

// Notifier fans escalations out to every operator.
type Notifier struct {
	sender    Sender
	directory OperatorDirectory
	log       *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(sender Sender, directory OperatorDirectory) *Notifier {
	return &Notifier{
		sender:    sender,
		directory: directory,
		log:       slog.With("component", "notify"),
	}
}

// NotifyHealingOutcome alerts operators about a failed or high-severity
// orchestration run.
func (n *Notifier) NotifyHealingOutcome(
	ctx context.Context,
	event domain.ErrorEvent,
	analysis *domain.AIAnalysis,
	result strategy.Result,
) {
	outcome := "failed"
	if result.Success {
		outcome = "recovered"
	}
	severity := domain.SeverityHigh
	if analysis != nil {
		severity = analysis.Severity
	}

	subject := fmt.Sprintf("[healer] %s %s (%s)", event.Source, outcome, severity)

	var b strings.Builder
	fmt.Fprintf(&b, "source: %s\ncategory: %s\nmessage: %s\n", event.Source, event.Category, event.Message)
	if analysis != nil {
		fmt.Fprintf(&b, "diagnosis: %s\n", analysis.Diagnosis)
	}
	if len(result.ActionsTaken) > 0 {
		fmt.Fprintf(&b, "actions:\n- %s\n", strings.Join(result.ActionsTaken, "\n- "))
	}

	n.fanOut(ctx, subject, b.String(), "healing")
}

// NotifyHealthCheckFailure alerts operators about one unhealthy probe.
func (n *Notifier) NotifyHealthCheckFailure(
	ctx context.Context,
	checkName, checkType string,
	probeMetrics map[string]any,
) {
	subject := fmt.Sprintf("[healer] health check failed: %s", checkName)

	var b strings.Builder
	fmt.Fprintf(&b, "check: %s (%s)\n", checkName, checkType)
	for k, v := range probeMetrics {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}

	n.fanOut(ctx, subject, b.String(), "health_check")
}

func (n *Notifier) fanOut(ctx context.Context, subject, message, reason string) {
	if n.sender == nil || n.directory == nil {
		return
	}

	operators, err := n.directory.GetOperators(ctx)
	if err != nil {
		n.log.Error("failed to list operators", "error", err)
		return
	}

	for _, op := range operators {
		err := n.sender.SendNotification(ctx, Notification{
			RecipientID: op.ID,
			Channel:     op.Channel,
			Subject:     subject,
			Message:     message,
		})
		if err != nil {
			// One bad recipient must not abort delivery to the rest.
			n.log.Error("notification delivery failed",
				"recipient", op.ID, "channel", op.Channel, "error", err)
			continue
		}
		metrics.NotificationsSent.WithLabelValues(reason).Inc()
	}
}

// StaticOperators is an OperatorDirectory over a fixed config list.
type StaticOperators struct {
	Operators []Recipient
}

func (s StaticOperators) GetOperators(ctx context.Context) ([]Recipient, error) {
	return s.Operators, nil
}
