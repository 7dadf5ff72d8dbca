package sms

import "context"

// SendResult reports the outcome of one outbound send attempt.
type SendResult struct {
	Delivered          bool
	ProviderMessageSid string
	ErrorCode          string
	ErrorMessage       string
}

// Provider abstracts the SMS carrier. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Send delivers body to the destination number. correlationID is the
	// caller's tracing key and is only used for logging.
	Send(ctx context.Context, fromE164, toE164, body, correlationID string) (SendResult, error)

	// VerifySignature checks a webhook payload against the signature header
	// using the provider's canonicalization over the configured callback URL.
	VerifySignature(rawBody, signature, callbackURL string) bool
}

// InboundPayload is the normalized form of a provider inbound webhook.
type InboundPayload struct {
	MessageSid string
	From       string
	To         string
	Body       string
	NumMedia   int
}
