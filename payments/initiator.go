package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"zapstack-backend/database"
	"zapstack-backend/models"
	"zapstack-backend/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

const (
	InitiateEndpoint = "/api/initiate/payments/mpesa"

	transactionType  = "CustomerPayBillOnline"
	accountReference = "ZapStack"
	transactionDesc  = "ZapStack Payment"

	initiatedMessage = "STK Push initiated successfully"
)

type ProjectFinder interface {
	FindPaymentsProject(ctx context.Context, zapKey, provider string) (*models.Project, error)
}

type StkPusher interface {
	StkPush(ctx context.Context, token, environment string, payload *StkPushRequest) (*StkPushResponse, []byte, error)
}

type LogWriter interface {
	Append(ctx context.Context, entry *models.PaymentLog) error
}

// InitiateRequest is what a tenant's client sends. ZapKey comes from the
// x-zap-key header, the rest from the JSON body.
type InitiateRequest struct {
	ZapKey string `json:"zapKey" validate:"required"`
	Phone  string `json:"phone" validate:"required"`
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Nonce  string `json:"nonce" validate:"omitempty,max=128"`
}

type InitiateResult struct {
	MerchantRequestID string `json:"merchantRequestID"`
	CheckoutRequestID string `json:"checkoutRequestID"`
	ReferenceID       string `json:"referenceId"`
	DurationMs        int64  `json:"durationMs"`
}

type InitiatorDeps struct {
	Projects ProjectFinder
	Tokens   *TokenCache
	Guard    *ReplayGuard
	Provider StkPusher
	Logs     LogWriter
}

// Initiator runs an STK push: validate, resolve tenant, token, nonce, signed
// call. Every attempt leaves exactly one stk_initiate audit row.
type Initiator struct {
	projects ProjectFinder
	tokens   *TokenCache
	guard    *ReplayGuard
	provider StkPusher
	logs     LogWriter
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
}

func NewInitiator(deps InitiatorDeps) *Initiator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return &Initiator{
		projects: deps.Projects,
		tokens:   deps.Tokens,
		guard:    deps.Guard,
		provider: deps.Provider,
		logs:     deps.Logs,
		validate: v,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Initiate runs one initiation attempt for req.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	return i.initiate(ctx, req, nil)
}

// RejectMalformed audits an attempt whose body could not be decoded and
// returns the validation error to send back.
func (i *Initiator) RejectMalformed(ctx context.Context, zapKey string) error {
	_, err := i.initiate(ctx, InitiateRequest{ZapKey: zapKey}, fmt.Errorf("%w: invalid request body", ErrValidation))
	return err
}

func (i *Initiator) initiate(ctx context.Context, req InitiateRequest, bodyErr error) (res *InitiateResult, err error) {
	start := i.now()
	entry := &models.PaymentLog{
		Type:        models.LogTypeStkInitiate,
		ReferenceId: i.newID(),
		Endpoint:    InitiateEndpoint,
		Event:       models.EventError,
	}
	var requestPayload, responsePayload any

	// The audit row is written whatever happens below, panics included.
	defer func() {
		if r := recover(); r != nil {
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("stk initiation panicked")
			res, err = nil, fmt.Errorf("%w: %v", ErrInternal, r)
		}

		entry.DurationMs = i.now().Sub(start).Milliseconds()
		entry.StatusCode = StatusCode(err)
		entry.RequestPayload = toJSON(requestPayload)
		if err != nil {
			entry.Message = err.Error()
			if responsePayload == nil {
				responsePayload = map[string]string{"error": err.Error()}
			}
		} else {
			entry.Event = models.EventSuccess
			entry.Message = initiatedMessage
			res.DurationMs = entry.DurationMs
		}
		entry.ResponsePayload = toJSON(responsePayload)

		logger := zerolog.Ctx(ctx).With().
			Str("reference_id", entry.ReferenceId).
			Int64("duration_ms", entry.DurationMs).
			Int("status", entry.StatusCode).
			Logger()
		if logErr := i.logs.Append(context.WithoutCancel(ctx), entry); logErr != nil {
			logger.Error().Err(logErr).Msg("writing stk_initiate audit entry failed")
		}
		if err != nil {
			logger.Warn().Err(err).Msg("stk initiation failed")
			return
		}
		logger.Info().Msg("stk initiation accepted")
	}()

	utils.NormalizeDTO(&req)
	requestPayload = map[string]any{
		"zapStackKey": maskKey(req.ZapKey),
		"phone":       req.Phone,
		"amount":      req.Amount,
	}

	// 1. validate
	if bodyErr != nil {
		return nil, bodyErr
	}
	if err := i.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !ValidKey(req.ZapKey) {
		return nil, ErrInvalidKeyFormat
	}

	// 2. resolve tenant
	project, err := i.projects.FindPaymentsProject(ctx, req.ZapKey, models.ProviderMpesa)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: resolving project: %w", ErrInternal, err)
	}
	entry.ProjectId = &project.Id

	// 3. token
	environment := models.EnvironmentSandbox
	if project.IsProduction() {
		environment = models.EnvironmentProduction
	}
	token, err := i.tokens.Get(ctx, Credentials{
		ConsumerKey:    project.ConsumerKey,
		ConsumerSecret: project.ConsumerSecret,
		Environment:    environment,
	})
	if err != nil {
		return nil, err
	}

	// 4. nonce
	nonce := req.Nonce
	if nonce == "" {
		nonce = i.newID()
	}
	if err := i.guard.Reserve(ctx, project.Id, nonce); err != nil {
		return nil, err
	}

	// 5. signed request
	timestamp := Timestamp(i.now())
	phone := utils.NormalizeMSISDN(req.Phone)
	payload := &StkPushRequest{
		BusinessShortCode: project.Shortcode,
		Password:          Password(project.Shortcode, project.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            project.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       project.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   transactionDesc,
	}
	redacted := *payload
	redacted.Password = "[redacted]"
	requestPayload = redacted

	// 6. provider call
	stkResp, raw, err := i.provider.StkPush(ctx, token, environment, payload)
	if err != nil {
		if raw != nil {
			responsePayload = raw
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstreamCall, err)
	}
	responsePayload = stkResp

	return &InitiateResult{
		MerchantRequestID: stkResp.MerchantRequestID,
		CheckoutRequestID: stkResp.CheckoutRequestID,
		ReferenceID:       entry.ReferenceId,
	}, nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
	}
	return fmt.Errorf("%w: missing or invalid %s", ErrValidation, strings.Join(fields, ", "))
}

// maskKey keeps enough of a tenant key to recognise it in the audit trail.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// toJSON turns an audit payload into a jsonb value. Raw bytes that are not
// JSON are wrapped so the insert cannot fail on them.
func toJSON(v any) datatypes.JSON {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if json.Valid(x) {
			return datatypes.JSON(x)
		}
		v = map[string]string{"raw": string(x)}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
