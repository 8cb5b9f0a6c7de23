package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/navarrastar/newsletter-signup/pkg/models"
	"github.com/navarrastar/newsletter-signup/pkg/utils"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"

	upsertPath = "/crm/v3/objects/contacts/batch/upsert?idProperty=email"

	legalBasis            = "CONSENT_WITH_NOTICE"
	legalBasisExplanation = "User consented via newsletter signup form on website."
)

var ErrMissingAccessToken = errors.New("Missing HUBSPOT_ACCESS_TOKEN")

// Contact is the person upserted into the CRM
type Contact struct {
	Email       string
	Name        string
	CompanyName string
	PhoneNumber string
}

// Client defines the interface for interacting with the HubSpot CRM API
type Client interface {
	UpsertContact(ctx context.Context, contact Contact) (models.ProviderOutcome, error)
}

type clientImpl struct {
	token      string
	baseURL    string
	httpClient *http.Client
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

// NewClient creates a new HubSpot client authenticated with a private app token
func NewClient(token string, opts ...Option) Client {
	c := &clientImpl{
		token:      token,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contactProperties struct {
	Email                 string `json:"email"`
	FirstName             string `json:"firstname,omitempty"`
	LastName              string `json:"lastname,omitempty"`
	Company               string `json:"company,omitempty"`
	Phone                 string `json:"phone,omitempty"`
	LegalBasis            string `json:"hs_legal_basis"`
	LegalBasisExplanation string `json:"hs_legal_basis_explanation"`
}

type upsertInput struct {
	Properties contactProperties `json:"properties"`
}

type upsertRequest struct {
	Inputs []upsertInput `json:"inputs"`
}

// UpsertContact creates or updates the contact keyed by email, recording the
// consent legal basis alongside it.
func (c *clientImpl) UpsertContact(ctx context.Context, contact Contact) (models.ProviderOutcome, error) {
	if c.token == "" {
		return models.ProviderOutcome{}, ErrMissingAccessToken
	}

	name := utils.SplitName(contact.Name)
	payload := upsertRequest{
		Inputs: []upsertInput{
			{
				Properties: contactProperties{
					Email:                 contact.Email,
					FirstName:             name.First,
					LastName:              name.Last,
					Company:               contact.CompanyName,
					Phone:                 contact.PhoneNumber,
					LegalBasis:            legalBasis,
					LegalBasisExplanation: legalBasisExplanation,
				},
			},
		},
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error creating payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+upsertPath, bytes.NewReader(jsonPayload))
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ProviderOutcome{}, fmt.Errorf("error upserting HubSpot contact: %w", err)
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
