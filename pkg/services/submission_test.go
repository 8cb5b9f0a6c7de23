package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navarrastar/newsletter-signup/pkg/clients/beehiiv"
	"github.com/navarrastar/newsletter-signup/pkg/clients/hubspot"
	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/models"
)

type mockBeehiivClient struct {
	subscribeFunc func(ctx context.Context, sub beehiiv.Subscriber) (models.ProviderOutcome, error)
}

func (m *mockBeehiivClient) Subscribe(ctx context.Context, sub beehiiv.Subscriber) (models.ProviderOutcome, error) {
	if m.subscribeFunc != nil {
		return m.subscribeFunc(ctx, sub)
	}
	return models.ProviderOutcome{OK: true}, nil
}

type mockHubSpotClient struct {
	upsertFunc func(ctx context.Context, contact hubspot.Contact) (models.ProviderOutcome, error)
}

func (m *mockHubSpotClient) UpsertContact(ctx context.Context, contact hubspot.Contact) (models.ProviderOutcome, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, contact)
	}
	return models.ProviderOutcome{OK: true}, nil
}

func testSubmission() Submission {
	return Submission{
		Payload: models.SubmissionPayload{
			Name:        "Jane Doe",
			Email:       "jane@example.com",
			CompanyName: "Acme",
			PhoneNumber: "+1 555 0100",
			Consent:     json.RawMessage("true"),
		},
		Origin: "https://acme.framer.website",
	}
}

func TestProcessSubmission_BothProvidersSucceed(t *testing.T) {
	var gotSub beehiiv.Subscriber
	var gotContact hubspot.Contact

	svc := NewSubmissionService(
		&mockBeehiivClient{subscribeFunc: func(_ context.Context, sub beehiiv.Subscriber) (models.ProviderOutcome, error) {
			gotSub = sub
			return models.ProviderOutcome{OK: true}, nil
		}},
		&mockHubSpotClient{upsertFunc: func(_ context.Context, c hubspot.Contact) (models.ProviderOutcome, error) {
			gotContact = c
			return models.ProviderOutcome{OK: true}, nil
		}},
		time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.Equal(t, models.AggregatedResult{
		OK: true,
		Results: models.ProviderResults{
			Beehiiv: models.ProviderOutcome{OK: true},
			Hubspot: models.ProviderOutcome{OK: true},
		},
	}, res)

	assert.Equal(t, beehiiv.Subscriber{
		Email:  "jane@example.com",
		Name:   "Jane Doe",
		Origin: "https://acme.framer.website",
	}, gotSub)
	assert.Equal(t, hubspot.Contact{
		Email:       "jane@example.com",
		Name:        "Jane Doe",
		CompanyName: "Acme",
		PhoneNumber: "+1 555 0100",
	}, gotContact)
}

func TestProcessSubmission_NewsletterErrorDoesNotAffectCRM(t *testing.T) {
	svc := NewSubmissionService(
		&mockBeehiivClient{subscribeFunc: func(context.Context, beehiiv.Subscriber) (models.ProviderOutcome, error) {
			return models.ProviderOutcome{}, errors.New("dial tcp: connection refused")
		}},
		&mockHubSpotClient{},
		time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.False(t, res.OK)
	assert.Equal(t, models.ProviderOutcome{
		OK:      false,
		Status:  http.StatusInternalServerError,
		Message: "dial tcp: connection refused",
	}, res.Results.Beehiiv)
	assert.True(t, res.Results.Hubspot.OK)
}

func TestProcessSubmission_ConfigurationErrorIsFolded(t *testing.T) {
	svc := NewSubmissionService(
		&mockBeehiivClient{},
		&mockHubSpotClient{upsertFunc: func(context.Context, hubspot.Contact) (models.ProviderOutcome, error) {
			return models.ProviderOutcome{}, hubspot.ErrMissingAccessToken
		}},
		time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.False(t, res.OK)
	assert.True(t, res.Results.Beehiiv.OK)
	assert.False(t, res.Results.Hubspot.OK)
	assert.Equal(t, "Missing HUBSPOT_ACCESS_TOKEN", res.Results.Hubspot.Message)
}

func TestProcessSubmission_UpstreamRejectionPassesThrough(t *testing.T) {
	rejected := models.ProviderOutcome{OK: false, Status: http.StatusConflict, Message: `{"message":"exists"}`}
	svc := NewSubmissionService(
		&mockBeehiivClient{subscribeFunc: func(context.Context, beehiiv.Subscriber) (models.ProviderOutcome, error) {
			return rejected, nil
		}},
		&mockHubSpotClient{},
		time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())
	assert.False(t, res.OK)
	assert.Equal(t, rejected, res.Results.Beehiiv)
}

func TestProcessSubmission_PanicIsIsolated(t *testing.T) {
	svc := NewSubmissionService(
		&mockBeehiivClient{},
		&mockHubSpotClient{upsertFunc: func(context.Context, hubspot.Contact) (models.ProviderOutcome, error) {
			panic("nil map write")
		}},
		time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.False(t, res.OK)
	assert.True(t, res.Results.Beehiiv.OK)
	assert.Equal(t, models.ProviderOutcome{
		OK:      false,
		Status:  http.StatusInternalServerError,
		Message: "nil map write",
	}, res.Results.Hubspot)
}

func TestProcessSubmission_TimeoutBecomesFailedOutcome(t *testing.T) {
	svc := NewSubmissionService(
		&mockBeehiivClient{subscribeFunc: func(ctx context.Context, _ beehiiv.Subscriber) (models.ProviderOutcome, error) {
			<-ctx.Done()
			return models.ProviderOutcome{}, ctx.Err()
		}},
		&mockHubSpotClient{},
		20*time.Millisecond,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusGatewayTimeout, res.Results.Beehiiv.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), res.Results.Beehiiv.Message)
	assert.True(t, res.Results.Hubspot.OK)
}

func TestProcessSubmission_CallsRunConcurrently(t *testing.T) {
	var inFlight, peak int32
	enter := func() {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
	}

	// Each call blocks until the other one has started.
	both := make(chan struct{})
	var started int32
	wait := func(ctx context.Context) {
		enter()
		if atomic.AddInt32(&started, 1) == 2 {
			close(both)
		}
		select {
		case <-both:
		case <-ctx.Done():
		}
		atomic.AddInt32(&inFlight, -1)
	}

	svc := NewSubmissionService(
		&mockBeehiivClient{subscribeFunc: func(ctx context.Context, _ beehiiv.Subscriber) (models.ProviderOutcome, error) {
			wait(ctx)
			return models.ProviderOutcome{OK: true}, nil
		}},
		&mockHubSpotClient{upsertFunc: func(ctx context.Context, _ hubspot.Contact) (models.ProviderOutcome, error) {
			wait(ctx)
			return models.ProviderOutcome{OK: true}, nil
		}},
		2*time.Second,
		logging.Discard(),
	)

	res := svc.ProcessSubmission(context.Background(), testSubmission())

	assert.True(t, res.OK)
	require.Equal(t, int32(2), atomic.LoadInt32(&peak))
}

func TestNewSubmissionService_DefaultTimeout(t *testing.T) {
	svc := NewSubmissionService(&mockBeehiivClient{}, &mockHubSpotClient{}, 0, logging.Discard())
	assert.Equal(t, DefaultProviderTimeout, svc.(*submissionServiceImpl).timeout)
}

func TestProcessSubmission_CallerCancellationDoesNotAbortProviders(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	svc := NewSubmissionService(
		&mockBeehiivClient{},
		&mockHubSpotClient{upsertFunc: func(ctx context.Context, _ hubspot.Contact) (models.ProviderOutcome, error) {
			close(started)
			select {
			case <-ctx.Done():
				return models.ProviderOutcome{}, ctx.Err()
			case <-time.After(100 * time.Millisecond):
				return models.ProviderOutcome{OK: true}, nil
			}
		}},
		time.Second,
		logging.Discard(),
	)

	go func() {
		<-started
		cancel()
	}()

	res := svc.ProcessSubmission(ctx, testSubmission())

	assert.True(t, res.OK)
	assert.Equal(t, models.ProviderOutcome{OK: true}, res.Results.Hubspot)
}
