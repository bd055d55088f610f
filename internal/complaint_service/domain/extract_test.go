package domain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockMediaFetcher struct {
	payloads map[string][]byte
	err      error
	calls    []string
}

func (m *MockMediaFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.calls = append(m.calls, url)
	if m.err != nil {
		return nil, m.err
	}
	return m.payloads[url], nil
}

func textMessage(t *testing.T, body string) *InboundMessage {
	t.Helper()
	form := url.Values{
		"From":     {"+14155551234"},
		"FromCity": {"SAN FRANCISCO"},
		"FromZip":  {"94107"},
		"To":       {"+12025550000"},
		"Body":     {body},
		"NumMedia": {"0"},
	}
	msg, err := NewInboundMessage(form)
	require.NoError(t, err)
	return msg
}

func vcardMessage(t *testing.T, attachments ...Attachment) *InboundMessage {
	t.Helper()
	form := url.Values{
		"From":     {"+14155551234"},
		"To":       {"+12025550000"},
		"NumMedia": {strconv.Itoa(len(attachments))},
	}
	for i, a := range attachments {
		form.Set(fmt.Sprintf("MediaContentType%d", i), a.ContentType)
		form.Set(fmt.Sprintf("MediaUrl%d", i), a.URL)
	}
	msg, err := NewInboundMessage(form)
	require.NoError(t, err)
	return msg
}

func TestExtractCandidates_TextMode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{name: "single number", body: "+16235371600", want: []string{"6235371600"}},
		{name: "comma separated", body: "+16235371600,+14805551212", want: []string{"6235371600", "4805551212"}},
		{name: "newline separated", body: "+16235371600\n+14805551212", want: []string{"6235371600", "4805551212"}},
		{name: "mixed delimiters with whitespace", body: " +16235371600 ,\n\t+14805551212\n", want: []string{"6235371600", "4805551212"}},
		{name: "duplicates preserved", body: "+16235371600,+16235371600", want: []string{"6235371600", "6235371600"}},
		{name: "empty body", body: "", want: nil},
		{name: "only delimiters", body: ",,\n, ", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, err := ExtractCandidates(context.Background(), textMessage(t, tt.body), nil)
			require.NoError(t, err)

			nationals := make([]string, 0, len(candidates))
			for _, c := range candidates {
				nationals = append(nationals, c.National())
			}
			if tt.want == nil {
				assert.Empty(t, nationals)
			} else {
				assert.Equal(t, tt.want, nationals)
			}
		})
	}
}

func TestExtractCandidates_MalformedTokenNamesToken(t *testing.T) {
	_, err := ExtractCandidates(context.Background(), textMessage(t, "INVALID_NUMBER"), nil)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, `Unable to parse phone number "INVALID_NUMBER".`, validationErr.Message)
}

func TestExtractCandidates_OutOfCountryRejected(t *testing.T) {
	_, err := ExtractCandidates(context.Background(), textMessage(t, "+442079460958"), nil)
	require.Error(t, err)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Unable to file complaints for out of country numbers.", validationErr.Message)
}

func TestExtractCandidates_OutOfCountryAfterValidNumber(t *testing.T) {
	// A single bad token rejects the whole extraction; no partial result.
	candidates, err := ExtractCandidates(context.Background(), textMessage(t, "+16235371600,+442079460958"), nil)
	require.Error(t, err)
	assert.Empty(t, candidates)
}

func TestExtractCandidates_AttachmentMode(t *testing.T) {
	payload := "BEGIN:VCARD\r\n" +
		"VERSION:3.0\r\n" +
		"FN:Spam Caller\r\n" +
		"TEL;TYPE=voice:+16235371600\r\n" +
		"TEL:+14805551212\r\n" +
		"END:VCARD\r\n"

	const mediaURL = "https://api.twilio.com/media/0"
	fetcher := &MockMediaFetcher{payloads: map[string][]byte{mediaURL: []byte(payload)}}

	msg := vcardMessage(t,
		Attachment{ContentType: "text/x-vcard; charset=utf-8", URL: mediaURL},
		Attachment{ContentType: "image/png", URL: "https://api.twilio.com/media/1"},
	)

	candidates, err := ExtractCandidates(context.Background(), msg, fetcher)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, "6235371600", candidates[0].National())
	assert.Equal(t, "4805551212", candidates[1].National())
	// Non-vCard attachments are never fetched.
	assert.Equal(t, []string{mediaURL}, fetcher.calls)
}

func TestExtractCandidates_AttachmentFetchFailure(t *testing.T) {
	fetcher := &MockMediaFetcher{err: errors.New("connection refused")}
	msg := vcardMessage(t, Attachment{ContentType: "text/x-vcard", URL: "https://api.twilio.com/media/0"})

	_, err := ExtractCandidates(context.Background(), msg, fetcher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch contact card")
}

func TestCandidateNumber_CountryCode(t *testing.T) {
	candidate, err := parseCandidate("+16235371600")
	require.NoError(t, err)
	assert.Equal(t, DomesticCountryCode, candidate.CountryCode())
}
