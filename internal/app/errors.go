package app

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrUnsupportedMediaType is returned for uploads that are neither
	// PDFs nor images.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrInsufficientText is returned when a document yields fewer than
	// the minimum number of readable characters.
	ErrInsufficientText = errors.New("insufficient text extracted")
	// ErrExtractionFailed marks OCR or PDF-rendering failures on the
	// direct image path.
	ErrExtractionFailed = errors.New("document text extraction failed")
	// ErrOracleUnavailable marks transport failures or timeouts talking to
	// the extraction model.
	ErrOracleUnavailable = errors.New("extraction model unavailable")
	// ErrMissingRequiredNames is returned on save when distributor or
	// retailer name is blank.
	ErrMissingRequiredNames = errors.New("distributor and retailer name are required")
)

const responseExcerptLimit = 500

// MalformedResponseError reports a model reply that could not be parsed as
// JSON. Excerpt holds a prefix of the offending text, at most
// responseExcerptLimit bytes, for diagnostics.
type MalformedResponseError struct {
	Excerpt string
	Err     error
}

func newMalformedResponseError(raw string, err error) *MalformedResponseError {
	if len(raw) > responseExcerptLimit {
		// Back off to a rune boundary so the excerpt stays valid UTF-8.
		cut := responseExcerptLimit
		for cut > 0 && !utf8.RuneStart(raw[cut]) {
			cut--
		}
		raw = raw[:cut]
	}
	return &MalformedResponseError{Excerpt: raw, Err: err}
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
