package external

import (
	"context"
	"encoding/json"

	"github.com/Beez1/bounceinsights/internal/types"
)

// ---------------------------------------------------------------------------
// NASA (EPIC + APOD)
// ---------------------------------------------------------------------------

// EPICImage is one entry of the EPIC natural imagery listing.
type EPICImage struct {
	Identifier string       `json:"identifier"`
	Caption    string       `json:"caption"`
	Image      string       `json:"image"`
	Date       string       `json:"date"`
	Centroid   types.LatLon `json:"centroid_coordinates"`
}

// EPICClient lists EPIC natural-color images for a calendar day.
type EPICClient interface {
	// Natural returns the images taken on date. An empty slice (not an error)
	// means the camera has nothing for that day.
	Natural(ctx context.Context, date types.Date) ([]EPICImage, error)

	// ImageURL builds the archive PNG URL for an image of the given day.
	ImageURL(date types.Date, image string) string

	// ThumbnailURL builds the archive thumbnail URL.
	ThumbnailURL(date types.Date, image string) string

	// PublicJPEGURL builds the key-less JPEG URL on the EPIC site.
	PublicJPEGURL(date types.Date, image string) string
}

// APODClient reads the Astronomy Picture of the Day.
type APODClient interface {
	// APOD returns the entry for date, or today's when date is zero.
	APOD(ctx context.Context, date types.Date) (types.ApodEntry, error)

	// Range returns every entry in [start, end].
	Range(ctx context.Context, start, end types.Date) ([]types.ApodEntry, error)

	// Today returns today's entry exactly as NASA serves it.
	Today(ctx context.Context) (json.RawMessage, error)
}

// ---------------------------------------------------------------------------
// Weather (Open-Meteo archive)
// ---------------------------------------------------------------------------

// WeatherArchive returns daily historical weather for a coordinate.
type WeatherArchive interface {
	Daily(ctx context.Context, at types.LatLon, start, end types.Date) (types.WeatherDaily, error)
}

// ---------------------------------------------------------------------------
// News (GNews)
// ---------------------------------------------------------------------------

// NewsClient fetches current top headlines for a country.
type NewsClient interface {
	TopHeadlines(ctx context.Context, iso2 string, limit int) ([]types.Article, error)
}

// ---------------------------------------------------------------------------
// Language models (OpenAI chat completions)
// ---------------------------------------------------------------------------

// ChatMessage is one turn of a chat completion request. Image URLs turn the
// message into multi-part content for vision models.
type ChatMessage struct {
	Role        string
	Text        string
	ImageURLs   []string
	ImageDetail string // "low", "high" or "auto"; empty leaves it unset
}

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature *float64
	MaxTokens   int
}

// ChatChoice mirrors the first choice of a completion.
type ChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// ChatResponse is the decoded completion.
type ChatResponse struct {
	Content    string
	Model      string
	TokensUsed int
	Choice     ChatChoice
}

// TextGenerator produces completions from a language model.
type TextGenerator interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// ---------------------------------------------------------------------------
// Image analysis (Google Vision)
// ---------------------------------------------------------------------------

// CountryDetector extracts candidate country names visible in an image.
type CountryDetector interface {
	DetectCountries(ctx context.Context, image string) ([]string, error)
}

// ImageProber reports the content type of a remote image without fetching
// its body.
type ImageProber interface {
	Probe(ctx context.Context, url string) (contentType string, err error)
}

// ---------------------------------------------------------------------------
// Email (SendGrid)
// ---------------------------------------------------------------------------

// SenderIdentity is the From address of an outgoing email.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput is a fully rendered email.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// EmailProvider abstracts interactions with the email delivery service.
type EmailProvider interface {
	// Send transmits an email with pre-rendered content.
	// Returns the provider's message ID for tracking and correlation.
	Send(ctx context.Context, input SendInput) (providerMsgID string, err error)
}
