package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showdeck/importer/internal/model"
)

const forwardedEmail = "From: Sarah Jones <sarah.jones@promoterco.com>\r\n" +
	"To: booking@showdeck.io\r\n" +
	"Subject: Offer - The Fillmore Nov 3\r\n" +
	"Date: Mon, 20 Oct 2025 09:14:00 -0600\r\n" +
	"\r\n" +
	"Hi team,\r\n" +
	"\r\n" +
	"---------- Forwarded message ----------\r\n" +
	"From: Original Promoter <orig@promoterco.com>\r\n" +
	"Date: Sun, 19 Oct 2025 18:02:00 -0600\r\n" +
	"\r\n" +
	"On Sun, Oct 19, 2025 at 6:02 PM Original Promoter wrote:\r\n" +
	"> Venue: The Fillmore\r\n" +
	"> Guarantee: $5,000\r\n" +
	"> Set Time: 9:00 pm\r\n" +
	"\r\n" +
	"Thanks!\r\n" +
	"-- \r\n" +
	"Sarah Jones\r\n" +
	"Talent Buyer, PromoterCo\r\n"

func TestFromEmail_SubjectBecomesLabeledLine(t *testing.T) {
	b := newTestBuilder(t, nil)

	src := b.FromEmail(forwardedEmail)
	assert.Equal(t, model.SourceEmail, src.Kind)
	// Subject line leads the body so the extractor reads it as a title hint.
	assert.True(t, strings.HasPrefix(src.RawText, "Subject: Offer - The Fillmore Nov 3"))
}

func TestFromEmail_StripsQuotingAndHeaders(t *testing.T) {
	b := newTestBuilder(t, nil)

	src := b.FromEmail(forwardedEmail)

	// Quoted facts survive with the "> " markers removed.
	assert.Contains(t, src.RawText, "Venue: The Fillmore")
	assert.Contains(t, src.RawText, "Guarantee: $5,000")
	assert.Contains(t, src.RawText, "Set Time: 9:00 pm")

	// Forward separators, attribution lines and embedded headers are gone.
	assert.NotContains(t, src.RawText, "Forwarded message")
	assert.NotContains(t, src.RawText, "wrote:")
	assert.NotContains(t, src.RawText, "From:")
	assert.NotContains(t, src.RawText, "orig@promoterco.com")
}

func TestFromEmail_SignatureBlockDropped(t *testing.T) {
	b := newTestBuilder(t, nil)

	src := b.FromEmail(forwardedEmail)
	assert.NotContains(t, src.RawText, "Talent Buyer, PromoterCo")
}

func TestFromEmail_UnparseableInputKeptAsBody(t *testing.T) {
	b := newTestBuilder(t, nil)

	raw := "no header block here\nVenue: The Fillmore"
	src := b.FromEmail(raw)
	assert.Contains(t, src.RawText, "no header block here")
	assert.Contains(t, src.RawText, "Venue: The Fillmore")
	assert.NotContains(t, src.RawText, "Subject:")
}

func TestFromEmail_NestedQuoting(t *testing.T) {
	b := newTestBuilder(t, nil)

	raw := "Subject: Re: Re: Offer\r\n\r\n> > City: Denver\r\n> Date: Nov 3, 2025\r\n"
	src := b.FromEmail(raw)
	assert.Contains(t, src.RawText, "City: Denver")
	assert.Contains(t, src.RawText, "Date: Nov 3, 2025")
	require.NotContains(t, src.RawText, ">")
}
