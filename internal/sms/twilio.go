package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snoutos/message-router/internal/config"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioProvider sends SMS through the Twilio REST API and verifies
// inbound webhook signatures.
type TwilioProvider struct {
	accountSID string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTwilioProvider builds a provider from configuration.
func NewTwilioProvider(cfg config.TwilioConfig, logger *zap.Logger) *TwilioProvider {
	timeout := time.Duration(cfg.SendTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioProvider{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type twilioMessageResponse struct {
	Sid          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Send posts to the Twilio Messages endpoint.
func (p *TwilioProvider) Send(ctx context.Context, fromE164, toE164, body, correlationID string) (SendResult, error) {
	if p.accountSID == "" || p.authToken == "" {
		return SendResult{}, fmt.Errorf("twilio credentials not configured")
	}

	form := url.Values{}
	form.Set("From", fromE164)
	form.Set("To", toE164)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", twilioAPIBase, p.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return SendResult{}, err
	}
	req.SetBasicAuth(p.accountSID, p.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("twilio send: %w", err)
	}
	defer resp.Body.Close()

	var parsed twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SendResult{}, fmt.Errorf("twilio response decode: %w", err)
	}

	if resp.StatusCode >= 400 {
		p.logger.Warn("twilio send rejected",
			zap.String("correlation_id", correlationID),
			zap.String("to", toE164),
			zap.Int("http_status", resp.StatusCode),
			zap.String("error_message", parsed.ErrorMessage))
		result := SendResult{Delivered: false, ErrorMessage: parsed.ErrorMessage}
		if parsed.ErrorCode != nil {
			result.ErrorCode = strconv.Itoa(*parsed.ErrorCode)
		}
		return result, nil
	}

	p.logger.Info("twilio send accepted",
		zap.String("correlation_id", correlationID),
		zap.String("to", toE164),
		zap.String("provider_sid", parsed.Sid))

	return SendResult{Delivered: true, ProviderMessageSid: parsed.Sid}, nil
}

// VerifySignature implements Twilio's request validation: the callback URL
// concatenated with every POST parameter name and value in byte order,
// HMAC-SHA1 signed with the auth token, base64 encoded, compared in
// constant time against the X-Twilio-Signature header.
func (p *TwilioProvider) VerifySignature(rawBody, signature, callbackURL string) bool {
	if p.authToken == "" {
		// No token configured means verification cannot succeed; reject
		// rather than fail open.
		return false
	}
	if signature == "" {
		return false
	}

	params, err := url.ParseQuery(rawBody)
	if err != nil {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var builder strings.Builder
	builder.WriteString(callbackURL)
	for _, k := range keys {
		for _, v := range params[k] {
			builder.WriteString(k)
			builder.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(p.authToken))
	mac.Write([]byte(builder.String()))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseInbound normalizes a form-encoded Twilio webhook body.
func ParseInbound(rawBody string) (InboundPayload, error) {
	params, err := url.ParseQuery(rawBody)
	if err != nil {
		return InboundPayload{}, fmt.Errorf("parse inbound payload: %w", err)
	}
	numMedia, _ := strconv.Atoi(params.Get("NumMedia"))
	return InboundPayload{
		MessageSid: params.Get("MessageSid"),
		From:       params.Get("From"),
		To:         params.Get("To"),
		Body:       params.Get("Body"),
		NumMedia:   numMedia,
	}, nil
}
