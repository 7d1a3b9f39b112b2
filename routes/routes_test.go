package routes_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"zapstack-backend/controllers"
	"zapstack-backend/database"
	"zapstack-backend/middlewares"
	"zapstack-backend/models"
	"zapstack-backend/payments"
	"zapstack-backend/routes"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	zapKey    = "zap_key1a2b3c4d5"
	ownerID   = "owner-1"
	jwtSecret = "integration-secret"
)

type hook struct {
	mu       sync.Mutex
	bodies   [][]byte
	projects []string
}

type harness struct {
	app     *fiber.App
	project *models.Project
	hook    *hook
	pushes  *atomic.Int32
	retries *payments.RetryQueue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, tune func(*routes.Options)) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	pushes := &atomic.Int32{}
	daraja := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			n := pushes.Add(1)
			_, _ = fmt.Fprintf(w, `{"MerchantRequestID":"m-%d","CheckoutRequestID":"ws_CO_%d","ResponseCode":"0","ResponseDescription":"Success"}`, n, n)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(daraja.Close)

	h := &hook{}
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.bodies = append(h.bodies, body)
		h.projects = append(h.projects, r.Header.Get(payments.ProjectIDHeader))
		h.mu.Unlock()
	}))
	t.Cleanup(webhook.Close)

	project := &models.Project{
		Name:           "shop",
		OwnerId:        ownerID,
		ZapKey:         zapKey,
		Type:           models.ProjectTypePayments,
		Provider:       models.ProviderMpesa,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Shortcode:      "174379",
		Passkey:        "pk",
		CallbackURL:    "https://gateway.example.com/api/webhooks/mpesa",
		WebhookURL:     webhook.URL,
	}
	require.NoError(t, db.Create(project).Error)

	projects := database.NewProjectRepository(db)
	logs := database.NewLogRepository(db)
	client := payments.NewDarajaClient(daraja.Client(), daraja.URL, daraja.URL)
	sender := payments.NewWebhookSender(webhook.Client())
	results := payments.NewResultCache(time.Minute)
	retries := payments.NewRetryQueue(sender, payments.RetryOptions{})

	handlers := routes.Handlers{
		Payments: &controllers.PaymentController{Initiator: payments.NewInitiator(payments.InitiatorDeps{
			Projects: projects,
			Tokens:   payments.NewTokenCache(client, time.Hour),
			Guard:    payments.NewReplayGuard(database.NewNonceRepository(db), time.Hour),
			Provider: client,
			Logs:     logs,
		})},
		Callbacks: &controllers.CallbackController{Correlator: payments.NewCorrelator(payments.CorrelatorDeps{
			Initiations: logs,
			Logs:        logs,
			Results:     results,
			Sender:      sender,
			Retries:     retries,
		})},
		Responses: &controllers.ResponseController{Projects: projects, Results: results},
		Logs:      &controllers.LogsController{Projects: projects, Logs: logs},
	}
	opts := routes.Options{
		BodyLimitBytes:         1 << 20,
		PaymentRateLimitMax:    10,
		PaymentRateLimitWindow: time.Minute,
		JWTSecret:              []byte(jwtSecret),
	}
	if tune != nil {
		tune(&opts)
	}
	app := routes.NewApp(opts, handlers)

	return &harness{app: app, project: project, hook: h, pushes: pushes, retries: retries}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func callbackBody(merchantID, checkoutID string, code int) string {
	return fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":%q,
		"CheckoutRequestID":%q,
		"ResultCode":%d,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":10},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`, merchantID, checkoutID, code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	status, body := h.do(t, fiber.MethodGet, "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestPaymentRoundTrip(t *testing.T) {
	h := newHarness(t)
	keyHeader := map[string]string{controllers.ZapKeyHeader: zapKey}

	// initiate
	status, body := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa",
		`{"phone":"0712345678","amount":10,"nonce":"order-1"}`, keyHeader)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "m-1", data["merchantRequestID"])
	assert.Equal(t, "ws_CO_1", data["checkoutRequestID"])

	// nothing cached yet
	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response", "", keyHeader)
	assert.Equal(t, fiber.StatusNotFound, status)

	// provider calls back
	status, body = h.do(t, fiber.MethodPost, "/api/webhooks/mpesa", callbackBody("m-1", "ws_CO_1", 0), nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Callback received successfully", body["message"])

	// tenant webhook got the normalized result
	h.hook.mu.Lock()
	require.Len(t, h.hook.bodies, 1)
	assert.Equal(t, h.project.Id, h.hook.projects[0])
	var forwarded payments.Result
	require.NoError(t, json.Unmarshal(h.hook.bodies[0], &forwarded))
	h.hook.mu.Unlock()
	assert.Equal(t, payments.StatusSuccess, forwarded.Status)
	assert.Equal(t, "ws_CO_1", forwarded.CheckoutRequestID)
	assert.Equal(t, 0, h.retries.Len())

	// polling
	status, body = h.do(t, fiber.MethodGet, "/api/mpesa/response", "", keyHeader)
	require.Equal(t, fiber.StatusOK, status)
	res := body["data"].(map[string]any)
	assert.Equal(t, "SUCCESS", res["status"])
	assert.Equal(t, "NLJ7RT61SV", res["mpesaReceiptNumber"])

	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response?checkout_request_id=ws_CO_1", "", keyHeader)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response?checkout_request_id=ws_CO_404", "", keyHeader)
	assert.Equal(t, fiber.StatusNotFound, status)

	// audit trail: initiation and callback
	token, err := middlewares.GenerateJWT([]byte(jwtSecret), ownerID, time.Hour)
	require.NoError(t, err)
	status, body = h.do(t, fiber.MethodGet, "/api/projects/"+h.project.Id+"/logs", "",
		map[string]string{"Authorization": "Bearer " + token})
	require.Equal(t, fiber.StatusOK, status)
	entries := body["logs"].([]any)
	require.Len(t, entries, 2)

	types := map[string]string{}
	for _, e := range entries {
		m := e.(map[string]any)
		types[m["type"].(string)] = m["reference_id"].(string)
	}
	assert.Contains(t, types, models.LogTypeStkInitiate)
	assert.Contains(t, types, models.LogTypeStkCallback)
	assert.Equal(t, types[models.LogTypeStkInitiate], types[models.LogTypeStkCallback])
}

func TestInitiate_Replay(t *testing.T) {
	h := newHarness(t)
	keyHeader := map[string]string{controllers.ZapKeyHeader: zapKey}
	body := `{"phone":"0712345678","amount":10,"nonce":"order-7"}`

	status, _ := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa", body, keyHeader)
	require.Equal(t, fiber.StatusOK, status)

	status, resp := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa", body, keyHeader)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, resp["error"], "replay")
	assert.EqualValues(t, 1, h.pushes.Load())
}

func TestInitiate_Rejections(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name       string
		key        string
		body       string
		wantStatus int
	}{
		{"missing key", "", `{"phone":"0712345678","amount":10}`, fiber.StatusBadRequest},
		{"malformed key", "zap_key", `{"phone":"0712345678","amount":10}`, fiber.StatusBadRequest},
		{"unknown key", "zap_key999999999", `{"phone":"0712345678","amount":10}`, fiber.StatusNotFound},
		{"missing amount", zapKey, `{"phone":"0712345678"}`, fiber.StatusBadRequest},
		{"malformed body", zapKey, `{"phone":`, fiber.StatusBadRequest},
		{"empty body", zapKey, ``, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.key != "" {
				headers[controllers.ZapKeyHeader] = tt.key
			}
			status, resp := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa", tt.body, headers)
			assert.Equal(t, tt.wantStatus, status)
			assert.NotEmpty(t, resp["error"])
		})
	}
	assert.EqualValues(t, 0, h.pushes.Load())
}

func TestCallback_Unmatched(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(t, fiber.MethodPost, "/api/webhooks/mpesa", callbackBody("nobody", "ws_CO_x", 0), nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Callback received, no matching project", body["message"])

	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response", "", map[string]string{controllers.ZapKeyHeader: zapKey})
	assert.Equal(t, fiber.StatusNotFound, status)

	h.hook.mu.Lock()
	assert.Empty(t, h.hook.bodies)
	h.hook.mu.Unlock()
}

func TestGetResponse_KeyChecks(t *testing.T) {
	h := newHarness(t)

	status, _ := h.do(t, fiber.MethodGet, "/api/mpesa/response", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response", "", map[string]string{controllers.ZapKeyHeader: "nope"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = h.do(t, fiber.MethodGet, "/api/mpesa/response", "", map[string]string{controllers.ZapKeyHeader: "zap_key999999999"})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestProjectLogs_Auth(t *testing.T) {
	h := newHarness(t)
	path := "/api/projects/" + h.project.Id + "/logs"

	status, _ := h.do(t, fiber.MethodGet, path, "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	token, err := middlewares.GenerateJWT([]byte(jwtSecret), "someone-else", time.Hour)
	require.NoError(t, err)
	status, _ = h.do(t, fiber.MethodGet, path, "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestPaymentLimiter(t *testing.T) {
	h := newHarness(t)
	keyHeader := map[string]string{controllers.ZapKeyHeader: zapKey}

	for i := 0; i < 10; i++ {
		status, _ := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa",
			fmt.Sprintf(`{"phone":"0712345678","amount":10,"nonce":"n-%d"}`, i), keyHeader)
		require.Equal(t, fiber.StatusOK, status)
	}
	status, body := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa",
		`{"phone":"0712345678","amount":10,"nonce":"n-10"}`, keyHeader)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "Too many payment requests, please try again later.", body["error"])
}

func TestProjectLogs_Paging(t *testing.T) {
	h := newHarness(t)
	keyHeader := map[string]string{controllers.ZapKeyHeader: zapKey}
	for i := 0; i < 3; i++ {
		status, _ := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa",
			fmt.Sprintf(`{"phone":"0712345678","amount":10,"nonce":"p-%d"}`, i), keyHeader)
		require.Equal(t, fiber.StatusOK, status)
	}

	token, err := middlewares.GenerateJWT([]byte(jwtSecret), ownerID, time.Hour)
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}
	path := "/api/projects/" + h.project.Id + "/logs"

	status, body := h.do(t, fiber.MethodGet, path+"?limit=2", "", auth)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["logs"], 2)
	assert.EqualValues(t, 2, body["limit"])

	status, body = h.do(t, fiber.MethodGet, path+"?limit=2&offset=2", "", auth)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["logs"], 1)

	status, body = h.do(t, fiber.MethodGet, path, "", auth)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 50, body["limit"])

	status, body = h.do(t, fiber.MethodGet, path+"?limit=9000", "", auth)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "max", body["fields"].(map[string]any)["limit"])

	status, _ = h.do(t, fiber.MethodGet, path+"?limit=abc", "", auth)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestLimiters_SeparateWindowsPerForwardedIP(t *testing.T) {
	h := newHarnessWith(t, func(o *routes.Options) {
		o.ProxyHeader = fiber.HeaderXForwardedFor
		o.PaymentRateLimitMax = 2
		o.RateLimitMax = 3
		o.RateLimitWindow = time.Minute
	})

	initiateFrom := func(ip string, n int) int {
		status, _ := h.do(t, fiber.MethodPost, "/api/initiate/payments/mpesa",
			fmt.Sprintf(`{"phone":"0712345678","amount":10,"nonce":"%s-%d"}`, ip, n),
			map[string]string{controllers.ZapKeyHeader: zapKey, fiber.HeaderXForwardedFor: ip})
		return status
	}

	assert.Equal(t, fiber.StatusOK, initiateFrom("10.0.0.1", 1))
	assert.Equal(t, fiber.StatusOK, initiateFrom("10.0.0.1", 2))
	assert.Equal(t, fiber.StatusTooManyRequests, initiateFrom("10.0.0.1", 3))

	assert.Equal(t, fiber.StatusOK, initiateFrom("10.0.0.2", 1))
	assert.Equal(t, fiber.StatusOK, initiateFrom("10.0.0.3", 1))

	// the global window is per caller too
	status, _ := h.do(t, fiber.MethodGet, "/healthz", "", map[string]string{fiber.HeaderXForwardedFor: "10.0.0.1"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	status, _ = h.do(t, fiber.MethodGet, "/healthz", "", map[string]string{fiber.HeaderXForwardedFor: "10.0.0.4"})
	assert.Equal(t, fiber.StatusOK, status)
}
