// Package briefing renders Earth & Space briefings and delivers them by
// email.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

// Outcomes reported to Metrics.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// unavailableMessage is the user-facing detail for a missing email setup.
const unavailableMessage = "Email service is not available."

// Briefing is a fully collected briefing ready to render.
type Briefing struct {
	Recipient string
	ImageURL  string
	Date      types.Date
	Narrative string
	Regions   []types.RegionContext
}

// Receipt confirms a delivered briefing.
type Receipt struct {
	ReferenceID       string    `json:"referenceId"`
	ProviderMessageID string    `json:"providerMessageId"`
	Recipient         string    `json:"recipient"`
	SentAt            time.Time `json:"sentAt"`
}

// Metrics receives one observation per dispatch attempt.
type Metrics interface {
	RecordBriefing(outcome string)
}

// Dispatcher renders and sends briefings through an EmailProvider.
type Dispatcher struct {
	provider external.EmailProvider
	sender   external.SenderIdentity
	renderer *Renderer
	metrics  Metrics
	logger   *slog.Logger

	newID func() string
	now   func() time.Time
}

// NewDispatcher creates a Dispatcher. provider may be nil, in which case
// CheckConfigured and Dispatch report a configuration error. metrics may be
// nil.
func NewDispatcher(provider external.EmailProvider, sender external.SenderIdentity, renderer *Renderer, metrics Metrics, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider: provider,
		sender:   sender,
		renderer: renderer,
		metrics:  metrics,
		logger:   logger,
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// CheckConfigured reports whether the provider credential and sender
// address are both present.
func (d *Dispatcher) CheckConfigured() error {
	if d.provider == nil {
		return types.ConfigurationError("SENDGRID_API_KEY", unavailableMessage)
	}
	if d.sender.Address == "" {
		return types.ConfigurationError("SENDER_EMAIL", unavailableMessage)
	}
	return nil
}

// Dispatch renders b and sends it to b.Recipient.
func (d *Dispatcher) Dispatch(ctx context.Context, b Briefing) (Receipt, error) {
	if err := d.CheckConfigured(); err != nil {
		return Receipt{}, err
	}
	if b.Recipient == "" {
		return Receipt{}, types.ValidationError(types.ErrCodeValidationMissingField,
			"recipientEmail is required", "")
	}

	logger := types.LoggerFromContext(ctx, d.logger)
	refID := d.newID()

	rendered, err := d.renderer.Render(b, refID)
	if err != nil {
		d.record(OutcomeFailed)
		return Receipt{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			"Failed to generate and send briefing.", err)
	}

	msgID, err := d.provider.Send(ctx, external.SendInput{
		To:          b.Recipient,
		From:        d.sender,
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: refID,
	})
	if err != nil {
		d.record(OutcomeFailed)
		logger.ErrorContext(ctx, "briefing delivery failed",
			"reference_id", refID,
			"regions", len(b.Regions),
			"error", err,
		)
		return Receipt{}, fmt.Errorf("briefing: send %s: %w", refID, err)
	}

	d.record(OutcomeSent)
	logger.InfoContext(ctx, "briefing email sent",
		"reference_id", refID,
		"provider_message_id", msgID,
		"regions", len(b.Regions),
	)

	return Receipt{
		ReferenceID:       refID,
		ProviderMessageID: msgID,
		Recipient:         b.Recipient,
		SentAt:            d.now().UTC(),
	}, nil
}

func (d *Dispatcher) record(outcome string) {
	if d.metrics != nil {
		d.metrics.RecordBriefing(outcome)
	}
}

// SuccessMessage is the confirmation returned to the caller of a
// synchronous briefing.
func SuccessMessage(recipient string) string {
	return fmt.Sprintf("Briefing sent successfully to %s", recipient)
}

// QueuedMessage is the confirmation returned when a briefing is enqueued.
func QueuedMessage(recipient string) string {
	return fmt.Sprintf("Briefing queued for delivery to %s", recipient)
}
