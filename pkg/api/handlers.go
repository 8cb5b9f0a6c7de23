package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/navarrastar/newsletter-signup/pkg/logging"
	"github.com/navarrastar/newsletter-signup/pkg/models"
	"github.com/navarrastar/newsletter-signup/pkg/ratelimit"
	"github.com/navarrastar/newsletter-signup/pkg/services"
)

const (
	MsgMethodNotAllowed = "Method not allowed"
	MsgTooManyRequests  = "Too many requests"
	MsgMissingFields    = "Missing required fields"
	MsgConsentRequired  = "Consent is required"
	MsgInvalidEmail     = "Invalid email address"

	maxBodyBytes = 64 << 10
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	submissionService services.SubmissionService
	limiter           *ratelimit.Limiter
	validate          *validator.Validate
	logger            *logging.Logger

	// Throttles the rate-limit rejection log so a flood cannot fill the log.
	rejectLog rate.Sometimes
}

// NewHandlers creates a new Handlers instance
func NewHandlers(submissionService services.SubmissionService, limiter *ratelimit.Limiter, logger *logging.Logger) *Handlers {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handlers{
		submissionService: submissionService,
		limiter:           limiter,
		validate:          validate,
		logger:            logger,
		rejectLog:         rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// HandleSubscribe accepts a signup from the form and forwards it to every
// provider. Rejections before dispatch use 4xx; once dispatched the response
// is always 200 and per-provider failures are reported in the body.
func (h *Handlers) HandleSubscribe(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Message: MsgMethodNotAllowed})
		return
	}

	key := ratelimit.ClientKey(c.Request)
	allowed, err := h.limiter.Allow(c.Request.Context(), key)
	if err != nil {
		h.logger.Warn("Rate limit store unavailable, admitting %s: %v", key, err)
	}
	if !allowed {
		h.rejectLog.Do(func() {
			h.logger.Warn("Rate limit exceeded for %s", key)
		})
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Message: MsgTooManyRequests})
		return
	}

	var payload models.SubmissionPayload
	if err := decodePayload(c, &payload); err != nil {
		h.logger.Error("Error parsing request from %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: err.Error()})
		return
	}

	missing, err := h.missingFields(payload)
	if err != nil {
		h.logger.Error("Error validating request from %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: err.Error()})
		return
	}
	if len(missing) > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: MsgMissingFields, Fields: missing})
		return
	}

	if !payload.HasConsent() {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: MsgConsentRequired})
		return
	}

	if err := h.validate.Var(payload.Email, "email"); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: MsgInvalidEmail, Fields: []string{"email"}})
		return
	}

	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = c.Request.Referer()
	}

	result := h.submissionService.ProcessSubmission(c.Request.Context(), services.Submission{
		Payload: payload,
		Origin:  origin,
	})

	c.JSON(http.StatusOK, result)
}

// decodePayload reads the JSON body. An empty body decodes to an empty
// payload so that it fails field validation instead of parsing.
func decodePayload(c *gin.Context, payload *models.SubmissionPayload) error {
	if c.Request.Body == nil {
		return nil
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// missingFields returns the JSON names of required fields left empty.
func (h *Handlers) missingFields(payload models.SubmissionPayload) ([]string, error) {
	err := h.validate.Struct(payload)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields, nil
}
