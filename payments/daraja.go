package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"zapstack-backend/models"
)

const (
	DefaultSandboxURL    = "https://sandbox.safaricom.co.ke"
	DefaultProductionURL = "https://api.safaricom.co.ke"

	tokenEndpoint   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushEndpoint = "/mpesa/stkpush/v1/processrequest"

	maxResponseBytes = 1 << 20
)

// Credentials is a tenant's Daraja app key pair plus the environment it belongs to.
// It must never be logged.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Environment    string
}

func (c Credentials) cacheKey() string {
	return c.ConsumerKey + "|" + c.Environment
}

// StkPushRequest is the body Daraja expects on processrequest.
type StkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type StkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

type darajaError struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// DarajaClient talks to the Safaricom Daraja API. Timeouts come from the
// supplied http.Client.
type DarajaClient struct {
	httpClient    *http.Client
	sandboxURL    string
	productionURL string
}

func NewDarajaClient(httpClient *http.Client, sandboxURL, productionURL string) *DarajaClient {
	if sandboxURL == "" {
		sandboxURL = DefaultSandboxURL
	}
	if productionURL == "" {
		productionURL = DefaultProductionURL
	}
	return &DarajaClient{
		httpClient:    httpClient,
		sandboxURL:    sandboxURL,
		productionURL: productionURL,
	}
}

func (c *DarajaClient) baseURL(environment string) string {
	if environment == models.EnvironmentProduction {
		return c.productionURL
	}
	return c.sandboxURL
}

// FetchToken requests an OAuth access token using HTTP Basic auth.
func (c *DarajaClient) FetchToken(ctx context.Context, creds Credentials) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(creds.Environment)+tokenEndpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(creds.ConsumerKey, creds.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access_token in response")
	}
	return tokenResp.AccessToken, nil
}

// StkPush sends the initiation request. The raw provider body is returned
// alongside any error so it can be audited.
func (c *DarajaClient) StkPush(
	ctx context.Context,
	token string,
	environment string,
	payload *StkPushRequest,
) (*StkPushResponse, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(environment)+stkPushEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var de darajaError
		if json.Unmarshal(raw, &de) == nil && de.ErrorMessage != "" {
			return nil, raw, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, de.ErrorMessage)
		}
		return nil, raw, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var stkResp StkPushResponse
	if err := json.Unmarshal(raw, &stkResp); err != nil {
		return nil, raw, fmt.Errorf("decoding response: %w", err)
	}
	if stkResp.ResponseCode != "0" {
		return nil, raw, fmt.Errorf("provider rejected request (code %s): %s", stkResp.ResponseCode, stkResp.ResponseDescription)
	}
	return &stkResp, raw, nil
}
