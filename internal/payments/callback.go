package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Return codes acknowledged to the wallet gateway. The HTTP status is always 200.
const (
	AckProcessed = 1
	AckDuplicate = 2
	AckNotFound  = 0
	AckInvalid   = -1
)

// Ack is the body answered to every gateway callback.
type Ack struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// CallbackEnvelope is the raw callback body: a JSON string and its MAC.
type CallbackEnvelope struct {
	Data string `json:"data"`
	MAC  string `json:"mac"`
	Type int    `json:"type,omitempty"`
}

// CallbackData is the decoded `data` field of a callback.
type CallbackData struct {
	AppID      flexString `json:"app_id"`
	AppTransID string     `json:"app_trans_id"`
	ZPTransID  flexString `json:"zp_trans_id"`
	Status     *int       `json:"status"`
	Amount     int64      `json:"amount"`
	ServerTime int64      `json:"server_time"`
}

// Succeeded reports whether the gateway settled the payment. Callbacks without
// an explicit status are only sent for settled payments.
func (d CallbackData) Succeeded() bool {
	return d.Status == nil || *d.Status == 1
}

var (
	errEmptyEnvelope = errors.New("callback envelope is missing data or mac")
	errMACMismatch   = errors.New("mac not equal")
	errNoReference   = errors.New("callback carries no transaction reference")
)

// ParseCallback decodes the envelope, verifies its MAC with key2, and decodes the data.
func ParseCallback(body []byte, key2 string) (*CallbackData, error) {
	var envelope CallbackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == "" || envelope.MAC == "" {
		return nil, errEmptyEnvelope
	}
	if !VerifyMAC(envelope.Data, envelope.MAC, key2) {
		return nil, errMACMismatch
	}
	var data CallbackData
	if err := json.Unmarshal([]byte(envelope.Data), &data); err != nil {
		return nil, err
	}
	if strings.TrimSpace(data.AppTransID) == "" {
		return nil, errNoReference
	}
	return &data, nil
}

// Sign returns the hex hmac-sha256 of data under key.
func Sign(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyMAC compares a hex MAC in constant time.
func VerifyMAC(data, received, key string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(received))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hmac.Equal(got, mac.Sum(nil))
}

// flexString accepts both JSON strings and numbers; the gateway sends ids as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil {
		return err
	}
	*f = flexString(raw)
	return nil
}

func (f flexString) String() string { return string(f) }
