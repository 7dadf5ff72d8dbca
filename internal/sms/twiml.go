package sms

import (
	"encoding/xml"
	"strings"
)

// TwiMLContentType is the response content type Twilio expects.
const TwiMLContentType = "text/xml"

// TwiML renders a minimal <Response> document. An empty message renders
// <Response></Response>, which suppresses any auto-reply.
func TwiML(message string) string {
	var builder strings.Builder
	builder.WriteString(xml.Header)
	builder.WriteString("<Response>")
	if message != "" {
		builder.WriteString("<Message>")
		_ = xml.EscapeText(&builder, []byte(message))
		builder.WriteString("</Message>")
	}
	builder.WriteString("</Response>")
	return builder.String()
}
