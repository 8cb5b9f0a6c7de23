package beehiiv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/navarrastar/newsletter-signup/pkg/models"
	"github.com/navarrastar/newsletter-signup/pkg/utils"
)

const (
	DefaultBaseURL = "https://api.beehiiv.com"

	// utmSource tags every subscription created by the signup form.
	utmSource = "framer"
)

var (
	ErrMissingAPIKey        = errors.New("Missing BEEHIIV_API_KEY")
	ErrMissingPublicationID = errors.New("Missing BEEHIIV_PUBLICATION_ID")
)

// Subscriber is the subscribe intent sent to Beehiiv
type Subscriber struct {
	Email string
	Name  string
	// Origin is the page the form was submitted from, reported as the referring site.
	Origin string
}

// Client defines the interface for interacting with the Beehiiv API
type Client interface {
	Subscribe(ctx context.Context, sub Subscriber) (models.ProviderOutcome, error)
}

type clientImpl struct {
	apiKey        string
	publicationID string
	baseURL       string
	httpClient    *http.Client
}

type Option func(*clientImpl)

// WithBaseURL points the client at another API host.
func WithBaseURL(baseURL string) Option {
	return func(c *clientImpl) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientImpl) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a new Beehiiv client
func NewClient(apiKey, publicationID string, opts ...Option) Client {
	c := &clientImpl{
		apiKey:        apiKey,
		publicationID: publicationID,
		baseURL:       DefaultBaseURL,
		httpClient:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type subscriptionRequest struct {
	Email              string `json:"email"`
	ReactivateExisting bool   `json:"reactivate_existing"`
	SendWelcomeEmail   bool   `json:"send_welcome_email"`
	UTMSource          string `json:"utm_source"`
	ReferringSite      string `json:"referring_site,omitempty"`
	FirstName          string `json:"first_name,omitempty"`
	LastName           string `json:"last_name,omitempty"`
}

// Subscribe creates or reactivates a subscription on the configured publication.
// A non-2xx answer is reported in the outcome; only configuration and
// transport problems are returned as errors.
func (c *clientImpl) Subscribe(ctx context.Context, sub Subscriber) (models.ProviderOutcome, error) {
	if c.apiKey == "" {
		return models.ProviderOutcome{}, ErrMissingAPIKey
	}
	if c.publicationID == "" {
		return models.ProviderOutcome{}, ErrMissingPublicationID
	}

	name := utils.SplitName(sub.Name)
	payload := subscriptionRequest{
		Email:              sub.Email,
		ReactivateExisting: true,
		SendWelcomeEmail:   false,
		UTMSource:          utmSource,
		ReferringSite:      sub.Origin,
		FirstName:          name.First,
		LastName:           name.Last,
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error creating payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/publications/%s/subscriptions", c.baseURL, url.PathEscape(c.publicationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonPayload))
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error creating Beehiiv subscription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return models.ProviderOutcome{}, fmt.Errorf("error reading response: %w", err)
		}
		return models.ProviderOutcome{OK: false, Status: resp.StatusCode, Message: string(body)}, nil
	}

	return models.ProviderOutcome{OK: true}, nil
}
