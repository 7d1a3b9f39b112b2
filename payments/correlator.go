package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"zapstack-backend/database"
	"zapstack-backend/models"

	"github.com/rs/zerolog"
)

const CallbackEndpoint = "/api/webhooks/mpesa"

// InitiationFinder locates the stk_initiate audit entry (with its project)
// whose provider response carries merchantRequestID.
type InitiationFinder interface {
	FindInitiation(ctx context.Context, merchantRequestID string) (*models.PaymentLog, error)
}

type CorrelatorDeps struct {
	Initiations InitiationFinder
	Logs        LogWriter
	Results     *ResultCache
	Sender      Deliverer
	Retries     *RetryQueue
}

// Correlator matches provider callbacks to the tenant that started the
// payment. The provider echoes nothing but its own request identifiers, so
// the audit trail is the only place the tenant can be recovered from.
type Correlator struct {
	initiations InitiationFinder
	logs        LogWriter
	results     *ResultCache
	sender      Deliverer
	retries     *RetryQueue
	now         func() time.Time
}

func NewCorrelator(deps CorrelatorDeps) *Correlator {
	return &Correlator{
		initiations: deps.Initiations,
		logs:        deps.Logs,
		results:     deps.Results,
		sender:      deps.Sender,
		retries:     deps.Retries,
		now:         time.Now,
	}
}

// Handle processes one callback body. ErrTenantNotFound means the callback
// could not be attributed and nothing was recorded; any other error is an
// internal fault. Webhook delivery problems never surface here.
func (c *Correlator) Handle(ctx context.Context, body []byte) (*Result, error) {
	start := c.now()
	logger := zerolog.Ctx(ctx)

	cb, err := DecodeCallback(body)
	if err != nil {
		logger.Warn().Err(err).Msg("undecodable mpesa callback")
		return nil, fmt.Errorf("%w: undecodable callback", ErrTenantNotFound)
	}
	if cb.MerchantRequestID == "" {
		return nil, fmt.Errorf("%w: callback has no MerchantRequestID", ErrTenantNotFound)
	}

	origin, err := c.initiations.FindInitiation(ctx, cb.MerchantRequestID)
	if errors.Is(err, database.ErrNotFound) {
		logger.Warn().Str("merchant_request_id", cb.MerchantRequestID).Msg("callback matches no initiation")
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: correlating callback: %w", ErrInternal, err)
	}
	project := origin.Project
	if project == nil {
		return nil, ErrTenantNotFound
	}

	res := ParseResult(project.Id, cb)
	resultLogger := logger.With().
		Str("project_id", project.Id).
		Str("reference_id", origin.ReferenceId).
		Str("checkout_request_id", res.CheckoutRequestID).
		Str("status", res.Status).
		Logger()

	c.audit(ctx, project, origin.ReferenceId, body, res, start)
	c.results.Store(res)

	if project.WebhookURL != "" {
		c.forward(ctx, project, res)
	}

	resultLogger.Info().Int("result_code", res.ResultCode).Msg("mpesa callback processed")
	return &res, nil
}

func (c *Correlator) audit(ctx context.Context, project *models.Project, referenceID string, body []byte, res Result, start time.Time) {
	event := models.EventSuccess
	if res.Status != StatusSuccess {
		event = models.EventError
	}
	entry := &models.PaymentLog{
		ProjectId:       &project.Id,
		Type:            models.LogTypeStkCallback,
		ReferenceId:     referenceID,
		RequestPayload:  toJSON(body),
		ResponsePayload: toJSON(res),
		Endpoint:        CallbackEndpoint,
		DurationMs:      c.now().Sub(start).Milliseconds(),
		Event:           event,
		StatusCode:      200,
		Message:         res.ResultDesc,
	}
	if err := c.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("writing stk_callback audit entry failed")
	}
}

func (c *Correlator) forward(ctx context.Context, project *models.Project, res Result) {
	logger := zerolog.Ctx(ctx)

	payload, err := json.Marshal(res)
	if err != nil {
		logger.Error().Err(err).Msg("encoding webhook payload failed")
		return
	}

	err = c.sender.Deliver(ctx, project.WebhookURL, project.Id, payload)
	if err == nil {
		return
	}
	logger.Warn().Err(err).Msg("webhook delivery failed, queued for retry")

	item := RetryItem{
		URL:       project.WebhookURL,
		Payload:   payload,
		ProjectID: project.Id,
		Attempts:  1,
	}
	if err := c.retries.Enqueue(item); err != nil {
		logger.Error().Err(err).Msg("webhook result dropped")
	}
}
