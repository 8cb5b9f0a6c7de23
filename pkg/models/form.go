package models

import (
	"bytes"
	"encoding/json"
)

// Represents the data structure coming from the newsletter signup form
type SubmissionPayload struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required"`
	CompanyName string `json:"companyName" validate:"required"`
	PhoneNumber string `json:"phoneNumber,omitempty"`

	// Consent stays raw so that only the JSON literal true counts as opting in.
	Consent json.RawMessage `json:"consent,omitempty"`
}

// HasConsent reports whether consent was given as the boolean true.
func (p SubmissionPayload) HasConsent() bool {
	return bytes.Equal(bytes.TrimSpace(p.Consent), []byte("true"))
}

// ProviderOutcome is the normalized result of one upstream call
type ProviderOutcome struct {
	OK      bool   `json:"ok"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ProviderResults always carries one outcome per provider
type ProviderResults struct {
	Beehiiv ProviderOutcome `json:"beehiiv"`
	Hubspot ProviderOutcome `json:"hubspot"`
}

// AggregatedResult is returned to the form after dispatching to every provider
type AggregatedResult struct {
	OK      bool            `json:"ok"`
	Results ProviderResults `json:"results"`
}

// NewAggregatedResult combines provider outcomes; the overall result is ok
// only when every provider accepted the subscription.
func NewAggregatedResult(beehiiv, hubspot ProviderOutcome) AggregatedResult {
	return AggregatedResult{
		OK: beehiiv.OK && hubspot.OK,
		Results: ProviderResults{
			Beehiiv: beehiiv,
			Hubspot: hubspot,
		},
	}
}

// ErrorResponse is returned for requests rejected before dispatch
type ErrorResponse struct {
	OK      bool     `json:"ok"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}
