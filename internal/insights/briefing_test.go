package insights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

func briefingDeps(b *mockBriefings) Deps {
	deps := regionDeps()
	deps.Resolver = &mockResolver{
		FromCountriesFunc: capitalsFromCountries,
		DetectCountriesFunc: func(context.Context, string) ([]string, error) {
			return []string{"Nigeria", "Atlantis"}, nil
		},
	}
	deps.Vision = visionLLM("A clear view of the Gulf of Guinea.")
	deps.Briefings = b
	return deps
}

func TestSendBriefing_Sync(t *testing.T) {
	b := &mockBriefings{}
	deps := briefingDeps(b)
	llm := deps.Vision.(*mockLLM)
	svc := newTestService(deps)

	res, err := svc.SendBriefing(context.Background(), BriefingRequest{
		ImageURL:       "https://img.test/earth.png",
		RecipientEmail: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Briefing sent successfully to ada@example.com", res.Message)
	assert.Equal(t, "ref-1", res.ReferenceID)
	assert.False(t, res.Queued)

	require.Len(t, b.sent, 1)
	sent := b.sent[0]
	assert.Equal(t, "2025-03-10", sent.Date.String(), "date defaults to today")
	assert.Equal(t, "A clear view of the Gulf of Guinea.", sent.Narrative)
	require.Len(t, sent.Regions, 1, "regions without a country code are skipped")
	assert.Equal(t, "Abuja", sent.Regions[0].Capital)
	assert.Len(t, sent.Regions[0].News, 1)

	require.Len(t, llm.calls, 1)
	assert.Equal(t, briefingMaxTokens, llm.calls[0].MaxTokens)
}

func TestSendBriefing_Queued(t *testing.T) {
	pub := &mockPublisher{}
	deps := briefingDeps(&mockBriefings{})
	deps.Publisher = pub
	svc := newTestService(deps)

	res, err := svc.SendBriefing(context.Background(), BriefingRequest{
		ImageURL:       "https://img.test/earth.png",
		RecipientEmail: "ada@example.com",
		Date:           "2024-06-01",
		Countries:      []string{"Ghana"},
	})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, "Briefing queued for delivery to ada@example.com", res.Message)

	require.Len(t, pub.jobs, 1)
	assert.Equal(t, types.BriefingJob{
		RecipientEmail: "ada@example.com",
		ImageURL:       "https://img.test/earth.png",
		Date:           "2024-06-01",
		Countries:      []string{"Ghana"},
	}, pub.jobs[0])
}

func TestSendBriefing_QueuedUnconfiguredIsRejected(t *testing.T) {
	pub := &mockPublisher{}
	deps := briefingDeps(&mockBriefings{configErr: types.ConfigurationError("SENDGRID_API_KEY", "Email service is not available.")})
	deps.Publisher = pub
	svc := newTestService(deps)

	res, err := svc.SendBriefing(context.Background(), BriefingRequest{
		ImageURL:       "https://img.test/earth.png",
		RecipientEmail: "ada@example.com",
	})
	assert.Nil(t, res)
	assert.True(t, types.IsCode(err, types.ErrCodeConfigMissingCredential))
	assert.Empty(t, pub.jobs, "nothing is enqueued without delivery credentials")
}

func TestSendBriefing_Validation(t *testing.T) {
	svc := newTestService(briefingDeps(&mockBriefings{}))

	_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png"})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))

	_, err = svc.SendBriefing(context.Background(), BriefingRequest{
		ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c", Date: "01/06/2024",
	})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidDate))
}

func TestSendBriefing_UnconfiguredFailsBeforeUpstream(t *testing.T) {
	b := &mockBriefings{configErr: types.ConfigurationError("SENDGRID_API_KEY", "Email service is not available.")}
	deps := briefingDeps(b)
	detected := false
	deps.Resolver = &mockResolver{DetectCountriesFunc: func(context.Context, string) ([]string, error) {
		detected = true
		return nil, nil
	}}
	llm := deps.Vision.(*mockLLM)
	svc := newTestService(deps)

	_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c"})
	assert.True(t, types.IsCode(err, types.ErrCodeConfigMissingCredential))
	assert.False(t, detected)
	assert.Empty(t, llm.calls)
	assert.Empty(t, b.sent)
}

func TestSendBriefing_NoDeliveryService(t *testing.T) {
	deps := briefingDeps(nil)
	deps.Briefings = nil
	svc := newTestService(deps)

	_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c"})
	assert.True(t, types.IsCode(err, types.ErrCodeConfigMissingCredential))
}

func TestSendBriefing_DetectionNotFound(t *testing.T) {
	deps := briefingDeps(&mockBriefings{})
	deps.Resolver = &mockResolver{DetectCountriesFunc: func(context.Context, string) ([]string, error) {
		return nil, types.NotFoundError(types.ErrCodeNotFoundLocation, "Could not detect any countries from the image.", "", nil)
	}}
	svc := newTestService(deps)

	_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c"})
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundLocation))
}

func TestSendBriefing_UnknownCountriesStillSends(t *testing.T) {
	b := &mockBriefings{}
	svc := newTestService(briefingDeps(b))

	_, err := svc.SendBriefing(context.Background(), BriefingRequest{
		ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c", Countries: []string{"Narnia"},
	})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)
	assert.Empty(t, b.sent[0].Regions)
}

func TestSendBriefing_DispatchErrors(t *testing.T) {
	t.Run("plain error becomes internal", func(t *testing.T) {
		svc := newTestService(briefingDeps(&mockBriefings{sendErr: errors.New("template exploded")}))
		_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c"})

		var appErr *types.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, types.ErrCodeInternalUnexpected, appErr.Code)
		assert.Equal(t, "Failed to generate and send briefing.", appErr.Message)
	})

	t.Run("provider code is kept", func(t *testing.T) {
		sendErr := types.NewAppError(types.ErrCodeUpstreamEmailProvider, "sendgrid: unavailable", nil)
		svc := newTestService(briefingDeps(&mockBriefings{sendErr: sendErr}))
		_, err := svc.SendBriefing(context.Background(), BriefingRequest{ImageURL: "https://img.test/a.png", RecipientEmail: "a@b.c"})
		assert.True(t, types.IsCode(err, types.ErrCodeUpstreamEmailProvider))
	})
}

func TestBriefingExplanation_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		vision external.TextGenerator
		want   string
	}{
		{name: "unconfigured", want: explanationNotConfigured},
		{
			name: "upstream error",
			vision: &mockLLM{CompleteFunc: func(external.ChatRequest) (external.ChatResponse, error) {
				return external.ChatResponse{}, errors.New("boom")
			}},
			want: explanationFailed,
		},
		{name: "empty answer", vision: visionLLM("  "), want: explanationEmpty},
		{name: "answer", vision: visionLLM("Clouds."), want: "Clouds."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(Deps{Vision: tt.vision})
			assert.Equal(t, tt.want, svc.briefingExplanation(context.Background(), "https://img.test/a.png"))
		})
	}
}

func TestProcessJob(t *testing.T) {
	b := &mockBriefings{}
	svc := newTestService(briefingDeps(b))

	receipt, err := svc.ProcessJob(context.Background(), types.BriefingJob{
		JobID:          "job-9",
		RecipientEmail: "ada@example.com",
		ImageURL:       "https://img.test/earth.png",
		Date:           "2024-06-01",
		Countries:      []string{"Nigeria"},
		RequestID:      "req-7",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", receipt.Recipient)
	require.Len(t, b.sent, 1)
	assert.Equal(t, "2024-06-01", b.sent[0].Date.String())
}
