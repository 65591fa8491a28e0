package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"invoicescan/pkg/ai"
	"invoicescan/pkg/store"
)

const sampleOracleResponse = `[{"Distributor_Name":"Acme","Retailer_Name":"Beta Mart","Retailer_Address":"","Retailer_State":"","Invoice_Total":1000,"Water_Total":100,"Net_Total":900,"Invoice_Date":"01-01-2025"}]`

func TestAnalyzeAndSaveEndToEnd(t *testing.T) {
	memStore := store.NewMemoryStore()
	oracle := &stubOracle{response: sampleOracleResponse}
	a := newTestApp(t, Config{
		Store:  memStore,
		Oracle: oracle,
		PDFText: func(string) (string, error) {
			return "Distributor: Acme\nRetailer: Beta Mart\nTotal: 1000\nWater: 100", nil
		},
	})

	records, err := a.AnalyzeDocument(context.Background(), Document{
		Path:      "invoice.pdf",
		MediaType: "application/pdf",
		Filename:  "invoice.pdf",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0]["Distributor_Name"] != "Acme" || records[0]["Net_Total"] != float64(900) {
		t.Fatalf("record = %+v", records[0])
	}
	if !strings.Contains(oracle.gotUser, "Distributor: Acme") {
		t.Fatalf("prompt did not include extracted text: %q", oracle.gotUser)
	}

	date := "01-01-2025"
	inv, err := a.SaveInvoice(InvoiceInput{
		DistributorName: "Acme",
		RetailerName:    "Beta Mart",
		InvoiceTotal:    float64(1000),
		WaterTotal:      float64(100),
		NetTotal:        float64(900),
		InvoiceDate:     &date,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if inv.ID == "" {
		t.Fatal("expected generated id")
	}
	if inv.InvoiceTotal != 1000 || inv.NetTotal != 900 {
		t.Fatalf("totals = %v / %v, want 1000 / 900", inv.InvoiceTotal, inv.NetTotal)
	}

	rows, err := memStore.ListInvoices(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored rows = %d, want 1", len(rows))
	}
	if rows[0].InvoiceDate == nil || *rows[0].InvoiceDate != "01-01-2025" {
		t.Fatalf("stored invoice date = %v", rows[0].InvoiceDate)
	}
}

func TestSaveInvoiceRequiresNames(t *testing.T) {
	memStore := store.NewMemoryStore()
	a := newTestApp(t, Config{Store: memStore})

	_, err := a.SaveInvoice(InvoiceInput{DistributorName: "  ", RetailerName: "Beta Mart"})
	if !errors.Is(err, ErrMissingRequiredNames) {
		t.Fatalf("err = %v, want ErrMissingRequiredNames", err)
	}
	rows, _ := memStore.ListInvoices(0)
	if len(rows) != 0 {
		t.Fatalf("stored rows = %d, want 0 after validation failure", len(rows))
	}
}

func TestSaveInvoiceCoercesNumericStrings(t *testing.T) {
	a := newTestApp(t, Config{})
	inv, err := a.SaveInvoice(InvoiceInput{
		DistributorName: "Acme",
		RetailerName:    "Beta Mart",
		InvoiceTotal:    "1234.50",
		WaterTotal:      "not a number",
		NetTotal:        nil,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if inv.InvoiceTotal != 1234.5 {
		t.Fatalf("InvoiceTotal = %v, want 1234.5", inv.InvoiceTotal)
	}
	if inv.WaterTotal != 0 || inv.NetTotal != 0 {
		t.Fatalf("junk numerics should coerce to 0, got %v / %v", inv.WaterTotal, inv.NetTotal)
	}
}

func TestExtractFieldsTruncatesPrompt(t *testing.T) {
	oracle := &stubOracle{response: sampleOracleResponse}
	a := newTestApp(t, Config{
		Oracle:         oracle,
		MaxPromptChars: 100,
		PDFText: func(string) (string, error) {
			return strings.Repeat("invoice line data ", 100), nil
		},
	})

	if _, err := a.AnalyzeDocument(context.Background(), Document{Path: "big.pdf", MediaType: "application/pdf"}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := len([]rune(oracle.gotUser)); got != 100 {
		t.Fatalf("prompt runes = %d, want 100", got)
	}
}

func TestExtractFieldsRetriesTransientFailures(t *testing.T) {
	oracle := &flakyOracle{failures: 1, response: sampleOracleResponse}
	a := newTestApp(t, Config{
		Oracle:        oracle,
		OracleRetries: 1,
		PDFText: func(string) (string, error) {
			return "plenty of invoice text here", nil
		},
	})

	if _, err := a.AnalyzeDocument(context.Background(), Document{Path: "a.pdf", MediaType: "application/pdf"}); err != nil {
		t.Fatalf("analyze with retry: %v", err)
	}
	if oracle.calls != 2 {
		t.Fatalf("oracle calls = %d, want 2", oracle.calls)
	}
}

func TestExtractFieldsNoRetryByDefault(t *testing.T) {
	oracle := &flakyOracle{failures: 1, response: sampleOracleResponse}
	a := newTestApp(t, Config{
		Oracle: oracle,
		PDFText: func(string) (string, error) {
			return "plenty of invoice text here", nil
		},
	})

	_, err := a.AnalyzeDocument(context.Background(), Document{Path: "a.pdf", MediaType: "application/pdf"})
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("err = %v, want ErrOracleUnavailable", err)
	}
	if oracle.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", oracle.calls)
	}
}

func TestAnalyzeMalformedResponseSurfacesExcerpt(t *testing.T) {
	a := newTestApp(t, Config{
		Oracle: &stubOracle{response: "I could not find any structured data in this document"},
		PDFText: func(string) (string, error) {
			return "plenty of invoice text here", nil
		},
	})

	_, err := a.AnalyzeDocument(context.Background(), Document{Path: "a.pdf", MediaType: "application/pdf"})
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedResponseError", err)
	}
	if !strings.HasPrefix("I could not find any structured data in this document", malformed.Excerpt) {
		t.Fatalf("excerpt = %q", malformed.Excerpt)
	}
}

// flakyOracle fails with a transport error for the first N calls.
type flakyOracle struct {
	failures int
	response string
	calls    int
}

func (f *flakyOracle) CompleteChat(context.Context, string, string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", ai.ErrUnavailable
	}
	return f.response, nil
}
