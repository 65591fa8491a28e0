package app

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeResponseFenceStrippingIdempotent(t *testing.T) {
	payload := `[{"Distributor_Name":"Acme","Retailer_Name":"Beta Mart","Retailer_Address":"","Retailer_State":"","Invoice_Total":1000,"Water_Total":100,"Net_Total":900,"Invoice_Date":"01-01-2025"}]`

	plain, err := sanitizeResponse(slog.Default(), payload)
	if err != nil {
		t.Fatalf("sanitize plain: %v", err)
	}
	fenced, err := sanitizeResponse(slog.Default(), "```json\n"+payload+"\n```")
	if err != nil {
		t.Fatalf("sanitize fenced: %v", err)
	}
	if len(plain) != 1 || len(fenced) != 1 {
		t.Fatalf("lens = %d, %d, want 1, 1", len(plain), len(fenced))
	}
	if plain[0]["Distributor_Name"] != fenced[0]["Distributor_Name"] {
		t.Fatalf("fenced result differs from plain result")
	}
	if fenced[0]["Invoice_Total"] != float64(1000) {
		t.Fatalf("Invoice_Total = %v, want 1000", fenced[0]["Invoice_Total"])
	}
}

func TestSanitizeResponseBareObjectWrapped(t *testing.T) {
	records, err := sanitizeResponse(slog.Default(), `{"Distributor_Name":"Acme","Retailer_Name":"Beta"}`)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}
	if records[0]["Distributor_Name"] != "Acme" {
		t.Fatalf("Distributor_Name = %v, want Acme", records[0]["Distributor_Name"])
	}
}

func TestSanitizeResponseRecoversArrayFromProse(t *testing.T) {
	raw := `Here is the extracted data: [{"Distributor_Name":"Acme"}] hope that helps!`
	records, err := sanitizeResponse(slog.Default(), raw)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(records) != 1 || records[0]["Distributor_Name"] != "Acme" {
		t.Fatalf("records = %+v", records)
	}
}

func TestSanitizeResponseUnwrapsEnvelopeObject(t *testing.T) {
	raw := `{"invoices":[{"Distributor_Name":"Acme","Retailer_Name":"Beta Mart"}]}`
	records, err := sanitizeResponse(slog.Default(), raw)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1", len(records))
	}
	if records[0]["Distributor_Name"] != "Acme" {
		t.Fatalf("records = %+v, want the inner array's record", records)
	}
	if _, ok := records[0]["invoices"]; ok {
		t.Fatalf("envelope object leaked through as a record: %+v", records[0])
	}
}

func TestSanitizeResponseNonRecordArrayFallsBackToObject(t *testing.T) {
	raw := `{"Distributor_Name":"Acme","page_numbers":[1,2]}`
	records, err := sanitizeResponse(slog.Default(), raw)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(records) != 1 || records[0]["Distributor_Name"] != "Acme" {
		t.Fatalf("records = %+v", records)
	}
}

func TestSanitizeResponseMalformed(t *testing.T) {
	raw := strings.Repeat("the model rambled instead of returning data ", 20)
	_, err := sanitizeResponse(slog.Default(), raw)
	if err == nil {
		t.Fatal("expected error for unparsable text")
	}
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %T", err)
	}
	if len(malformed.Excerpt) > 500 {
		t.Fatalf("excerpt length = %d, want <= 500", len(malformed.Excerpt))
	}
	if !strings.HasPrefix(raw, malformed.Excerpt) {
		t.Fatalf("excerpt is not a prefix of the offending text")
	}
}

func TestSanitizeResponseExcerptKeepsRunesIntact(t *testing.T) {
	// 3 bytes per rune, so the 500-byte limit lands mid-rune.
	raw := strings.Repeat("データ", 100)
	_, err := sanitizeResponse(slog.Default(), raw)
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if len(malformed.Excerpt) > 500 {
		t.Fatalf("excerpt length = %d, want <= 500", len(malformed.Excerpt))
	}
	if !utf8.ValidString(malformed.Excerpt) {
		t.Fatalf("excerpt is not valid UTF-8: %q", malformed.Excerpt)
	}
	if !strings.HasPrefix(raw, malformed.Excerpt) {
		t.Fatalf("excerpt is not a prefix of the offending text")
	}
}

func TestSanitizeResponseMissingFieldsTolerated(t *testing.T) {
	records, err := sanitizeResponse(slog.Default(), `[{"Distributor_Name":"Acme"}]`)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len = %d, want 1; partial records must pass through", len(records))
	}
}
