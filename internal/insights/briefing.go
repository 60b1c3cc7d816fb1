package insights

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Beez1/bounceinsights/internal/briefing"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	explanationNotConfigured = "AI explanation is unavailable because the API key is not configured."
	explanationFailed        = "Failed to get explanation from AI service."
	explanationEmpty         = "Could not generate an AI explanation."
	briefingFailed           = "Failed to generate and send briefing."
)

// BriefingRequest asks for an emailed briefing about one image.
type BriefingRequest struct {
	ImageURL       string   `json:"imageUrl" validate:"required,imageref"`
	RecipientEmail string   `json:"recipientEmail" validate:"required,email"`
	Date           string   `json:"date,omitempty" validate:"omitempty,isodate"`
	Countries      []string `json:"countries,omitempty" validate:"omitempty,max=25,dive,required"`
}

// BriefingResult tells the caller whether the briefing went out or was
// queued.
type BriefingResult struct {
	Message     string `json:"message"`
	JobID       string `json:"jobId,omitempty"`
	ReferenceID string `json:"referenceId,omitempty"`
	Queued      bool   `json:"-"`
}

// SendBriefing delivers a briefing immediately, or enqueues it for the
// worker when a publisher is configured.
func (s *Service) SendBriefing(ctx context.Context, req BriefingRequest) (*BriefingResult, error) {
	if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.RecipientEmail) == "" {
		return nil, types.ValidationError(types.ErrCodeValidationMissingField,
			"imageUrl and recipientEmail are required", "")
	}
	date, err := s.briefingDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.checkDelivery(); err != nil {
		return nil, err
	}

	if s.deps.Publisher != nil {
		jobID, err := s.deps.Publisher.Publish(ctx, types.BriefingJob{
			RecipientEmail: req.RecipientEmail,
			ImageURL:       req.ImageURL,
			Date:           date.String(),
			Countries:      req.Countries,
		})
		if err != nil {
			return nil, err
		}
		s.log(ctx).InfoContext(ctx, "briefing queued", "job_id", jobID)
		return &BriefingResult{
			Message: briefing.QueuedMessage(req.RecipientEmail),
			JobID:   jobID,
			Queued:  true,
		}, nil
	}

	receipt, err := s.deliver(ctx, req.RecipientEmail, req.ImageURL, date, req.Countries)
	if err != nil {
		return nil, err
	}
	return &BriefingResult{
		Message:     briefing.SuccessMessage(receipt.Recipient),
		ReferenceID: receipt.ReferenceID,
	}, nil
}

// ProcessJob runs a queued briefing. It is the worker side of SendBriefing.
func (s *Service) ProcessJob(ctx context.Context, job types.BriefingJob) (briefing.Receipt, error) {
	if job.RequestID != "" {
		ctx = types.WithRequestID(ctx, job.RequestID)
	}
	date, err := s.briefingDate(job.Date)
	if err != nil {
		return briefing.Receipt{}, err
	}
	return s.deliver(ctx, job.RecipientEmail, job.ImageURL, date, job.Countries)
}

// checkDelivery fails when no email can be delivered, before any upstream
// call or enqueue.
func (s *Service) checkDelivery() error {
	if s.deps.Briefings == nil {
		return types.ConfigurationError("SENDGRID_API_KEY", "Email service is not available.")
	}
	return s.deps.Briefings.CheckConfigured()
}

func (s *Service) briefingDate(raw string) (types.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return s.today(), nil
	}
	return types.ParseDate(raw)
}

// deliver collects the explanation and regional context in parallel,
// then renders and sends the email.
func (s *Service) deliver(ctx context.Context, recipient, imageURL string, date types.Date, countries []string) (briefing.Receipt, error) {
	if err := s.checkDelivery(); err != nil {
		return briefing.Receipt{}, err
	}

	targets, err := s.briefingTargets(ctx, imageURL, countries)
	if err != nil {
		return briefing.Receipt{}, err
	}

	var (
		narrative string
		regions   []types.RegionContext
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		narrative = s.briefingExplanation(gCtx, imageURL)
		return nil
	})
	g.Go(func() error {
		regions = s.collectRegions(gCtx, targets, date, true)
		return nil
	})
	_ = g.Wait()

	receipt, err := s.deps.Briefings.Dispatch(ctx, briefing.Briefing{
		Recipient: recipient,
		ImageURL:  imageURL,
		Date:      date,
		Narrative: narrative,
		Regions:   regions,
	})
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) {
			return briefing.Receipt{}, types.NewAppError(types.ErrCodeInternalUnexpected, briefingFailed, err)
		}
		return briefing.Receipt{}, err
	}
	return receipt, nil
}

// briefingTargets maps the named countries, or those detected in the image,
// to capitals with a country code. Unknown countries are skipped; a briefing
// with no regional data is still sent.
func (s *Service) briefingTargets(ctx context.Context, imageURL string, countries []string) ([]types.GeoTarget, error) {
	if len(countries) == 0 {
		detected, err := s.deps.Resolver.DetectCountries(ctx, imageURL)
		if err != nil {
			return nil, err
		}
		countries = detected
	}

	targets, err := s.deps.Resolver.FromCountries(ctx, countries)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundLocation) {
			s.log(ctx).WarnContext(ctx, "no briefing countries could be mapped", "countries", countries)
			return nil, nil
		}
		return nil, err
	}

	kept := make([]types.GeoTarget, 0, len(targets))
	for _, t := range targets {
		if t.ISO2 == "" {
			s.log(ctx).WarnContext(ctx, "skipping region without country code", "region", t.Name)
			continue
		}
		kept = append(kept, t)
	}
	return kept, nil
}

// briefingExplanation never fails; problems become a readable sentence in
// the email.
func (s *Service) briefingExplanation(ctx context.Context, imageURL string) string {
	if s.deps.Vision == nil {
		return explanationNotConfigured
	}
	resp, err := s.explainImage(ctx, imageURL, briefingMaxTokens)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "briefing explanation failed", "error", err.Error())
		return explanationFailed
	}
	if strings.TrimSpace(resp.Content) == "" {
		return explanationEmpty
	}
	return resp.Content
}
