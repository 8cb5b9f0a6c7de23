package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/navarrastar/newsletter-signup/pkg/clients/beehiiv"
	"github.com/navarrastar/newsletter-signup/pkg/clients/hubspot"
	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/models"
	"github.com/navarrastar/newsletter-signup/pkg/utils"
)

const (
	ProviderBeehiiv = "beehiiv"
	ProviderHubSpot = "hubspot"

	DefaultProviderTimeout = 10 * time.Second
)

// Submission is a validated signup plus the page it came from
type Submission struct {
	Payload models.SubmissionPayload
	Origin  string
}

// SubmissionService defines the interface for handling signup submissions
type SubmissionService interface {
	ProcessSubmission(ctx context.Context, sub Submission) models.AggregatedResult
}

type submissionServiceImpl struct {
	beehiivClient beehiiv.Client
	hubspotClient hubspot.Client
	timeout       time.Duration
	logger        *logging.Logger
	tracer        trace.Tracer
}

// NewSubmissionService creates a new submission service. A non-positive
// timeout falls back to DefaultProviderTimeout.
func NewSubmissionService(
	beehiivClient beehiiv.Client,
	hubspotClient hubspot.Client,
	timeout time.Duration,
	logger *logging.Logger,
) SubmissionService {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &submissionServiceImpl{
		beehiivClient: beehiivClient,
		hubspotClient: hubspotClient,
		timeout:       timeout,
		logger:        logger,
		tracer:        otel.Tracer("github.com/navarrastar/newsletter-signup/pkg/services"),
	}
}

// ProcessSubmission sends the signup to both providers at once and waits for
// both to settle. A provider failure never hides the other provider's outcome.
func (s *submissionServiceImpl) ProcessSubmission(ctx context.Context, sub Submission) models.AggregatedResult {
	p := sub.Payload
	emailHash := utils.HashEmail(p.Email)

	s.logger.Info("Processing submission for %s", emailHash)

	var (
		wg                 sync.WaitGroup
		beehiivOut, hubOut models.ProviderOutcome
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		beehiivOut = s.dispatch(ctx, ProviderBeehiiv, emailHash, func(ctx context.Context) (models.ProviderOutcome, error) {
			return s.beehiivClient.Subscribe(ctx, beehiiv.Subscriber{
				Email:  p.Email,
				Name:   p.Name,
				Origin: sub.Origin,
			})
		})
	}()
	go func() {
		defer wg.Done()
		hubOut = s.dispatch(ctx, ProviderHubSpot, emailHash, func(ctx context.Context) (models.ProviderOutcome, error) {
			return s.hubspotClient.UpsertContact(ctx, hubspot.Contact{
				Email:       p.Email,
				Name:        p.Name,
				CompanyName: p.CompanyName,
				PhoneNumber: p.PhoneNumber,
			})
		})
	}()
	wg.Wait()

	result := models.NewAggregatedResult(beehiivOut, hubOut)
	s.logger.Info("Submission for %s finished: ok=%v beehiiv=%v hubspot=%v",
		emailHash, result.OK, beehiivOut.OK, hubOut.OK)

	return result
}

// dispatch runs one provider call under its own deadline and folds errors
// and panics into a failed outcome. The caller going away does not cancel
// the call; only the provider timeout does.
func (s *submissionServiceImpl) dispatch(
	ctx context.Context,
	provider, emailHash string,
	call func(context.Context) (models.ProviderOutcome, error),
) (out models.ProviderOutcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, provider+".subscribe",
		trace.WithAttributes(attribute.String("signup.provider", provider)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic calling %s for %s: %v", provider, emailHash, r)
			span.SetStatus(codes.Error, "panic")
			out = models.ProviderOutcome{
				OK:      false,
				Status:  http.StatusInternalServerError,
				Message: fmt.Sprintf("%v", r),
			}
		}
	}()

	res, err := call(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}

		s.logger.Error("Error with %s API for %s: %v", provider, emailHash, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return models.ProviderOutcome{OK: false, Status: status, Message: err.Error()}
	}

	span.SetAttributes(attribute.Bool("signup.ok", res.OK))
	if !res.OK {
		span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
		span.SetStatus(codes.Error, "provider rejected subscription")
		s.logger.Warn("%s rejected %s with status %d: %s", provider, emailHash, res.Status, res.Message)
	}

	return res
}
