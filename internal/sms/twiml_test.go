package sms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTwiMLWithMessage(t *testing.T) {
	out := TwiML("You got it!")
	assert.Contains(t, out, "<Response><Message>You got it!</Message></Response>")
}

func TestTwiMLEmptySuppressesReply(t *testing.T) {
	out := TwiML("")
	assert.Contains(t, out, "<Response></Response>")
	assert.NotContains(t, out, "<Message>")
}

func TestTwiMLEscapesBody(t *testing.T) {
	out := TwiML(`Rex says "woof" & <runs>`)
	assert.NotContains(t, out, "<runs>")
	assert.Contains(t, out, "&amp;")
}
