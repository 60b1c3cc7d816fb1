package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

const pngData = "data:image/png;base64,iVBORw0KGgo="

func visionLLM(content string) *mockLLM {
	return &mockLLM{CompleteFunc: func(req external.ChatRequest) (external.ChatResponse, error) {
		return external.ChatResponse{Content: content, Model: req.Model, TokensUsed: 120}, nil
	}}
}

func TestExplain(t *testing.T) {
	llm := visionLLM("This image shows West Africa.")
	svc := newTestService(Deps{Vision: llm})

	resp, err := svc.Explain(context.Background(), ImageRequest{ImageURL: "https://img.test/earth.png"})
	require.NoError(t, err)
	assert.Equal(t, "This image shows West Africa.", resp.Explanation)
	assert.Equal(t, "gpt-4-turbo", resp.Model)

	require.Len(t, llm.calls, 1)
	call := llm.calls[0]
	assert.Equal(t, explainMaxTokens, call.MaxTokens)
	require.Len(t, call.Messages, 1)
	assert.Equal(t, "user", call.Messages[0].Role)
	assert.True(t, strings.HasPrefix(call.Messages[0].Text, "You are a NASA Earth scientist"))
	assert.Equal(t, []string{"https://img.test/earth.png"}, call.Messages[0].ImageURLs)
}

func TestExplain_Unconfigured(t *testing.T) {
	svc := newTestService(Deps{})
	_, err := svc.Explain(context.Background(), ImageRequest{ImageURL: "https://img.test/earth.png"})
	assert.True(t, types.IsCode(err, types.ErrCodeConfigMissingCredential))
}

func TestDetectCountries(t *testing.T) {
	svc := newTestService(Deps{Resolver: &mockResolver{
		DetectCountriesFunc: func(context.Context, string) ([]string, error) {
			return []string{"Kenya", "Tanzania"}, nil
		},
	}})

	resp, err := svc.DetectCountries(context.Background(), ImageRequest{ImageURL: "https://img.test/a.png"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"Kenya", "Tanzania"}, resp.Countries)

	_, err = svc.DetectCountries(context.Background(), ImageRequest{})
	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))
}

func TestCompare_RequestShape(t *testing.T) {
	tests := []struct {
		name       string
		images     []string
		kind       string
		focus      []string
		wantDetail string
		wantTokens int
		wantSystem string
		wantSuffix string
	}{
		{
			name:       "two images default type",
			images:     []string{pngData, "https://img.test/a.png"},
			wantDetail: "high",
			wantTokens: 600,
			wantSystem: comparisonTemplates["general"].system,
			wantSuffix: "overall assessment.",
		},
		{
			name:       "four images with focus",
			images:     []string{pngData, pngData, pngData, "https://img.test/a.png"},
			kind:       "satellite",
			focus:      []string{"coastlines", "cloud cover"},
			wantDetail: "low",
			wantTokens: 1200,
			wantSystem: comparisonTemplates["satellite"].system,
			wantSuffix: "Focus particularly on: coastlines, cloud cover.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := visionLLM("They differ.")
			svc := newTestService(Deps{
				Vision: llm,
				Prober: &mockProber{contentTypes: map[string]string{"https://img.test/a.png": "image/png"}},
			})

			resp, err := svc.Compare(context.Background(), CompareRequest{Images: tt.images, ComparisonType: tt.kind, FocusAreas: tt.focus})
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, len(tt.images), resp.ImageCount)
			assert.Equal(t, "They differ.", resp.Analysis)
			assert.Equal(t, tt.wantDetail, resp.Metadata.ImageDetail)
			assert.NotNil(t, resp.FocusAreas)

			require.Len(t, llm.calls, 1)
			call := llm.calls[0]
			assert.Equal(t, tt.wantTokens, call.MaxTokens)
			require.NotNil(t, call.Temperature)
			assert.InDelta(t, 0.5, *call.Temperature, 1e-9)
			require.Len(t, call.Messages, 2)
			assert.Equal(t, "system", call.Messages[0].Role)
			assert.Equal(t, tt.wantSystem, call.Messages[0].Text)
			assert.Equal(t, tt.images, call.Messages[1].ImageURLs)
			assert.Equal(t, tt.wantDetail, call.Messages[1].ImageDetail)
			assert.True(t, strings.HasSuffix(call.Messages[1].Text, tt.wantSuffix), call.Messages[1].Text)
		})
	}
}

func TestCompare_Validation(t *testing.T) {
	tests := []struct {
		name       string
		req        CompareRequest
		deps       Deps
		wantCode   types.ErrorCode
		wantDetail string
	}{
		{
			name:       "too few",
			req:        CompareRequest{Images: []string{pngData}},
			wantCode:   types.ErrCodeValidationImageCount,
			wantDetail: "Please provide at least 2 images for comparison",
		},
		{
			name:       "too many",
			req:        CompareRequest{Images: []string{pngData, pngData, pngData, pngData, pngData}},
			wantCode:   types.ErrCodeValidationImageCount,
			wantDetail: "Maximum 4 images allowed for comparison",
		},
		{
			name:     "unknown type",
			req:      CompareRequest{Images: []string{pngData, pngData}, ComparisonType: "artistic"},
			wantCode: types.ErrCodeValidationComparisonType,
		},
		{
			name:     "unconfigured",
			req:      CompareRequest{Images: []string{pngData, pngData}},
			wantCode: types.ErrCodeConfigMissingCredential,
		},
		{
			name:       "bad format",
			req:        CompareRequest{Images: []string{pngData, "ftp://img.test/a.png"}},
			deps:       Deps{Vision: visionLLM("x")},
			wantCode:   types.ErrCodeValidationInvalidImage,
			wantDetail: "Invalid image format at index 1. Must be URL or base64",
		},
		{
			name:       "unsupported data uri",
			req:        CompareRequest{Images: []string{"data:image/tiff;base64,AAAA", pngData}},
			deps:       Deps{Vision: visionLLM("x")},
			wantCode:   types.ErrCodeValidationInvalidImage,
			wantDetail: "Invalid image format at index 0. Must be URL or base64",
		},
		{
			name: "not an image",
			req:  CompareRequest{Images: []string{pngData, "https://img.test/page.html"}},
			deps: Deps{
				Vision: visionLLM("x"),
				Prober: &mockProber{contentTypes: map[string]string{"https://img.test/page.html": "text/html"}},
			},
			wantCode:   types.ErrCodeValidationInvalidImage,
			wantDetail: "URL at index 1 does not point to an image",
		},
		{
			name: "unreachable",
			req:  CompareRequest{Images: []string{"https://img.test/gone.png", pngData}},
			deps: Deps{
				Vision: visionLLM("x"),
				Prober: &mockProber{},
			},
			wantCode:   types.ErrCodeValidationInvalidImage,
			wantDetail: "Image at index 0 could not be reached",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.deps)
			_, err := svc.Compare(context.Background(), tt.req)
			require.Error(t, err)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, appErr.Detail)
			}
			if tt.wantCode == types.ErrCodeValidationInvalidImage {
				assert.Equal(t, "Image validation failed", appErr.Message)
			}
		})
	}
}

func TestCompare_UpstreamError(t *testing.T) {
	llm := &mockLLM{CompleteFunc: func(external.ChatRequest) (external.ChatResponse, error) {
		return external.ChatResponse{}, types.NewAppError(types.ErrCodeUpstreamRateLimited, "openai: rate limited", nil)
	}}
	svc := newTestService(Deps{Vision: llm})

	_, err := svc.Compare(context.Background(), CompareRequest{Images: []string{pngData, pngData}})
	assert.True(t, types.IsCode(err, types.ErrCodeUpstreamRateLimited))
}
