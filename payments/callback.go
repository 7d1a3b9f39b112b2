package payments

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"

	resultCodeSuccess = 0
	resultCodeMissing = -1
)

// CallbackEnvelope is the body Daraja POSTs to the callback URL.
// Every level is optional.
type CallbackEnvelope struct {
	Body *struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string       `json:"MerchantRequestID"`
	CheckoutRequestID string       `json:"CheckoutRequestID"`
	ResultCode        *json.Number `json:"ResultCode"`
	ResultDesc        *string      `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Result is the normalized outcome of a callback, served to polling clients
// and forwarded to the tenant webhook.
type Result struct {
	ProjectID          string   `json:"projectId"`
	Status             string   `json:"status"`
	ResultCode         int      `json:"resultCode"`
	ResultDesc         string   `json:"resultDesc"`
	MerchantRequestID  string   `json:"merchantRequestID"`
	CheckoutRequestID  string   `json:"checkoutRequestID"`
	Amount             *float64 `json:"amount"`
	MpesaReceiptNumber *string  `json:"mpesaReceiptNumber"`
	Balance            *float64 `json:"balance"`
	TransactionDate    *string  `json:"transactionDate"`
	PhoneNumber        *string  `json:"phoneNumber"`
}

// DecodeCallback parses a raw callback body, keeping numbers exact.
func DecodeCallback(body []byte) (*StkCallback, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env CallbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	if env.Body == nil || env.Body.StkCallback == nil {
		return &StkCallback{}, nil
	}
	return env.Body.StkCallback, nil
}

// ParseResult normalizes cb for projectID. Metadata that is absent stays nil.
func ParseResult(projectID string, cb *StkCallback) Result {
	res := Result{
		ProjectID:         projectID,
		ResultCode:        resultCodeMissing,
		ResultDesc:        "Missing ResultDesc",
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
	}
	if cb.ResultCode != nil {
		if code, err := cb.ResultCode.Int64(); err == nil {
			res.ResultCode = int(code)
		}
	}
	if cb.ResultDesc != nil {
		res.ResultDesc = *cb.ResultDesc
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			switch item.Name {
			case "Amount":
				res.Amount = numberValue(item.Value)
			case "MpesaReceiptNumber":
				res.MpesaReceiptNumber = stringValue(item.Value)
			case "Balance":
				res.Balance = numberValue(item.Value)
			case "TransactionDate":
				res.TransactionDate = stringValue(item.Value)
			case "PhoneNumber":
				res.PhoneNumber = stringValue(item.Value)
			}
		}
	}

	res.Status = StatusFailed
	if res.ResultCode == resultCodeSuccess {
		res.Status = StatusSuccess
	}
	return res
}

func numberValue(v any) *float64 {
	var f float64
	var err error
	switch x := v.(type) {
	case json.Number:
		f, err = x.Float64()
	case float64:
		f = x
	case string:
		f, err = strconv.ParseFloat(x, 64)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &f
}

func stringValue(v any) *string {
	var s string
	switch x := v.(type) {
	case json.Number:
		s = x.String()
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return nil
	}
	return &s
}
