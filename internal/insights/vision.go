package insights

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Beez1/bounceinsights/internal/external"
	"github.com/Beez1/bounceinsights/internal/types"
)

const (
	explainMaxTokens  = 300
	briefingMaxTokens = 400

	compareMinImages       = 2
	compareMaxImages       = 4
	compareTokensPerImage  = 300
	compareMaxTokens       = 1500
	compareTemperature     = 0.5
	compareLowDetailAbove  = 2
	defaultComparisonType  = "general"
	openAICredential       = "OPENAI_API_KEY"
	openAINotConfiguredMsg = "OpenAI API key not configured"
)

const explainPrompt = "You are a NASA Earth scientist and satellite imagery analyst. " +
	"Based only on what is visible in this image, identify whether the photo shows any parts of Earth. " +
	"If so, describe what continents and countries might be visible, using natural landforms and coastline patterns for reference. " +
	"If possible, identify and list up to 10 major cities that can be seen in the photo. " +
	"Analyze the atmospheric features too, such as clouds, their shapes, and their densities. " +
	"Comment on what the cloud formations might indicate: clear skies, light clouds, storm systems, or heavy cloud cover. " +
	"If visible, describe ocean currents, snow, deserts, or mountain ranges. " +
	"The goal is to educate a general audience about what this satellite image likely reveals about Earth's geography and weather, " +
	"without using any external metadata or assumptions."

// dataImagePattern accepts the base64 data URIs the vision model can read.
var dataImagePattern = regexp.MustCompile(`^data:image/(jpeg|jpg|png|gif|webp);base64,`)

type comparisonTemplate struct {
	system string
	prompt string
	focus  string
}

// comparisonTemplates holds the prompt templates per comparison type.
var comparisonTemplates = map[string]comparisonTemplate{
	"general": {
		system: "You are an expert image analyst. Provide a comprehensive comparison of these images in plain text, without any markdown formatting.",
		prompt: "Compare and analyze these images, discussing visual similarities and differences, key features, content, and subject matter to provide an overall assessment.",
		focus:  "Give special attention to: ",
	},
	"satellite": {
		system: "You are an expert satellite imagery analyst. Compare these satellite images and provide a detailed analysis in plain text, without any markdown formatting.",
		prompt: "Compare these satellite images by analyzing geographic features, environmental conditions, urban development, land use changes, and weather patterns. Note any significant differences or similarities.",
		focus:  "Focus particularly on: ",
	},
	"weather": {
		system: "You are a meteorological expert. Analyze these images for weather-related comparisons in plain text, without any markdown formatting.",
		prompt: "Compare these images focusing on weather patterns, including cloud formations, atmospheric conditions, and indicators of precipitation or climate changes.",
		focus:  "Pay special attention to: ",
	},
	"temporal": {
		system: "You are a temporal analysis expert. Compare these images to identify changes over time. Provide the analysis in plain text, without any markdown formatting.",
		prompt: "Analyze these images for temporal changes. Describe what has changed, any evidence of progression or development, seasonal differences, and any patterns of growth, decay, or transformation.",
		focus:  "Focus on changes in: ",
	},
}

// IsComparisonType reports whether name selects a known template.
func IsComparisonType(name string) bool {
	_, ok := comparisonTemplates[name]
	return ok
}

// ImageRequest names a single image.
type ImageRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,imageref"`
}

// ExplainResponse is the vision model's reading of one image.
type ExplainResponse struct {
	Explanation string `json:"explanation"`
	Model       string `json:"model,omitempty"`
	TokensUsed  int    `json:"tokensUsed,omitempty"`
}

// DetectCountriesResponse lists the countries detected in an image.
type DetectCountriesResponse struct {
	Success   bool     `json:"success"`
	Countries []string `json:"countries"`
}

// CompareRequest asks for a side-by-side analysis of 2 to 4 images.
type CompareRequest struct {
	Images         []string `json:"images"`
	ComparisonType string   `json:"comparisonType,omitempty" validate:"omitempty,comparison"`
	FocusAreas     []string `json:"focusAreas,omitempty" validate:"omitempty,max=10,dive,required"`
}

// CompareMetadata describes how a comparison was produced.
type CompareMetadata struct {
	Model            string `json:"model"`
	TokensUsed       int    `json:"tokensUsed"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
	ImageDetail      string `json:"imageDetail"`
}

// CompareResponse is the comparator's answer.
type CompareResponse struct {
	Success        bool            `json:"success"`
	ComparisonType string          `json:"comparisonType"`
	ImageCount     int             `json:"imageCount"`
	FocusAreas     []string        `json:"focusAreas"`
	Analysis       string          `json:"analysis"`
	Metadata       CompareMetadata `json:"metadata"`
}

// Explain asks the vision model what the image shows.
func (s *Service) Explain(ctx context.Context, req ImageRequest) (*ExplainResponse, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, types.ValidationError(types.ErrCodeValidationMissingField,
			"Image URL is required", "Provide imageUrl")
	}
	if s.deps.Vision == nil {
		return nil, types.ConfigurationError(openAICredential, openAINotConfiguredMsg)
	}
	resp, err := s.explainImage(ctx, req.ImageURL, explainMaxTokens)
	if err != nil {
		return nil, err
	}
	return &ExplainResponse{Explanation: resp.Content, Model: resp.Model, TokensUsed: resp.TokensUsed}, nil
}

func (s *Service) explainImage(ctx context.Context, imageURL string, maxTokens int) (external.ChatResponse, error) {
	return s.deps.Vision.Complete(ctx, external.ChatRequest{
		Model: s.cfg.VisionModel,
		Messages: []external.ChatMessage{{
			Role:      "user",
			Text:      explainPrompt,
			ImageURLs: []string{imageURL},
		}},
		MaxTokens: maxTokens,
	})
}

// DetectCountries lists the countries visible in an image.
func (s *Service) DetectCountries(ctx context.Context, req ImageRequest) (*DetectCountriesResponse, error) {
	if strings.TrimSpace(req.ImageURL) == "" {
		return nil, types.ValidationError(types.ErrCodeValidationMissingField,
			"Image URL is required", "Image URL is required")
	}
	names, err := s.deps.Resolver.DetectCountries(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}
	return &DetectCountriesResponse{Success: true, Countries: names}, nil
}

// Compare validates every image and asks the vision model to compare them
// according to the chosen template.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*CompareResponse, error) {
	start := s.now()
	switch {
	case len(req.Images) < compareMinImages:
		return nil, types.ValidationError(types.ErrCodeValidationImageCount,
			"Invalid input", "Please provide at least 2 images for comparison")
	case len(req.Images) > compareMaxImages:
		return nil, types.ValidationError(types.ErrCodeValidationImageCount,
			"Invalid input", "Maximum 4 images allowed for comparison")
	}

	kind := req.ComparisonType
	if kind == "" {
		kind = defaultComparisonType
	}
	tmpl, ok := comparisonTemplates[kind]
	if !ok {
		return nil, types.ValidationError(types.ErrCodeValidationComparisonType,
			"Invalid comparison type", "comparisonType must be one of general, satellite, weather, temporal")
	}

	if s.deps.Vision == nil {
		return nil, types.ConfigurationError(openAICredential, openAINotConfiguredMsg)
	}
	if err := s.validateImages(ctx, req.Images); err != nil {
		return nil, err
	}

	detail := "high"
	if len(req.Images) > compareLowDetailAbove {
		detail = "low"
	}
	prompt := tmpl.prompt
	if len(req.FocusAreas) > 0 {
		prompt += " " + tmpl.focus + strings.Join(req.FocusAreas, ", ") + "."
	}

	resp, err := s.deps.Vision.Complete(ctx, external.ChatRequest{
		Model: s.cfg.VisionModel,
		Messages: []external.ChatMessage{
			{Role: "system", Text: tmpl.system},
			{Role: "user", Text: prompt, ImageURLs: req.Images, ImageDetail: detail},
		},
		Temperature: external.Float(compareTemperature),
		MaxTokens:   min(compareMaxTokens, compareTokensPerImage*len(req.Images)),
	})
	if err != nil {
		return nil, err
	}

	focus := req.FocusAreas
	if focus == nil {
		focus = []string{}
	}
	return &CompareResponse{
		Success:        true,
		ComparisonType: kind,
		ImageCount:     len(req.Images),
		FocusAreas:     focus,
		Analysis:       resp.Content,
		Metadata: CompareMetadata{
			Model:            resp.Model,
			TokensUsed:       resp.TokensUsed,
			ProcessingTimeMs: s.elapsedMs(ctx, start),
			ImageDetail:      detail,
		},
	}, nil
}

// validateImages checks data URIs locally, then probes remote URLs in
// parallel. The first failure wins.
func (s *Service) validateImages(ctx context.Context, images []string) error {
	var remote []int
	for i, img := range images {
		switch {
		case dataImagePattern.MatchString(img):
		case strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://"):
			remote = append(remote, i)
		default:
			return invalidImage(fmt.Sprintf("Invalid image format at index %d. Must be URL or base64", i))
		}
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, i := range remote {
		g.Go(func() error { return s.probeImage(gCtx, i, images[i]) })
	}
	return g.Wait()
}

func (s *Service) probeImage(ctx context.Context, index int, url string) error {
	if s.deps.Prober == nil {
		return nil
	}
	contentType, err := s.deps.Prober.Probe(ctx, url)
	if err != nil {
		s.log(ctx).WarnContext(ctx, "image probe failed", "index", index, "error", err.Error())
		return invalidImage(fmt.Sprintf("Image at index %d could not be reached", index))
	}
	if !strings.HasPrefix(contentType, "image/") {
		return invalidImage(fmt.Sprintf("URL at index %d does not point to an image", index))
	}
	return nil
}

func invalidImage(detail string) error {
	return types.ValidationError(types.ErrCodeValidationInvalidImage, "Image validation failed", detail)
}
