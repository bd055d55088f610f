package domain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-vcard"
	"github.com/nyaruka/phonenumbers"
)

// CandidateNumber is a parsed, country-qualified target phone number.
type CandidateNumber struct {
	raw    string
	parsed *phonenumbers.PhoneNumber
}

// National returns the national significant number, the form the complaint
// form expects.
func (c CandidateNumber) National() string {
	return phonenumbers.GetNationalSignificantNumber(c.parsed)
}

// CountryCode returns the country calling code the token parsed to.
func (c CandidateNumber) CountryCode() int32 {
	return c.parsed.GetCountryCode()
}

// MediaFetcher retrieves an attachment body by URL.
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ExtractCandidates parses the inbound message into zero or more candidate
// target numbers. With no attachments the body is treated as delimited free
// text; otherwise contact-card attachments are fetched and their telephone
// fields extracted. Order is preserved and duplicates are kept: only the
// sender is rate limited, never the targets.
func ExtractCandidates(ctx context.Context, msg *InboundMessage, fetcher MediaFetcher) ([]CandidateNumber, error) {
	if msg.NumMedia == 0 {
		return candidatesFromBody(msg.Body)
	}
	return candidatesFromAttachments(ctx, msg, fetcher)
}

func candidatesFromBody(body string) ([]CandidateNumber, error) {
	tokens := strings.FieldsFunc(body, func(r rune) bool {
		return r == ',' || r == '\n'
	})

	var candidates []CandidateNumber
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		candidate, err := parseCandidate(token)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func candidatesFromAttachments(ctx context.Context, msg *InboundMessage, fetcher MediaFetcher) ([]CandidateNumber, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("no media fetcher configured")
	}

	var candidates []CandidateNumber
	for _, attachment := range msg.AttachmentsOf(MIMETypeVCard) {
		payload, err := fetcher.Fetch(ctx, attachment.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch contact card %s: %w", attachment.URL, err)
		}

		card, err := vcard.NewDecoder(bytes.NewReader(payload)).Decode()
		if err != nil {
			if err == io.EOF {
				continue
			}
			return nil, fmt.Errorf("unable to parse contact card from %s: %w", attachment.URL, err)
		}

		// Only the first card per payload contributes numbers.
		for _, tel := range card.Values(vcard.FieldTelephone) {
			tel = strings.TrimSpace(tel)
			if tel == "" {
				continue
			}
			candidate, err := parseCandidate(tel)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, candidate)
		}
	}
	return candidates, nil
}

func parseCandidate(token string) (CandidateNumber, error) {
	parsed, err := phonenumbers.Parse(token, defaultRegion)
	if err != nil {
		return CandidateNumber{}, NewUnparsableNumberError(token)
	}
	if parsed.GetCountryCode() != DomesticCountryCode {
		return CandidateNumber{}, NewOutOfCountryError()
	}
	return CandidateNumber{raw: token, parsed: parsed}, nil
}

// mediaTypeOf strips parameters from a content-type header value, so
// "text/x-vcard; charset=utf-8" still matches the vCard filter.
func mediaTypeOf(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
