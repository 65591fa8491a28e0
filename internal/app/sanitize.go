package app

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Record is one extracted invoice as returned by the model, field names and
// value types exactly as the model produced them. Coercion to storage types
// happens at save time, after human review.
type Record map[string]any

// requiredRecordFields are the field names the extraction prompt demands on
// every record.
var requiredRecordFields = []string{
	"Distributor_Name",
	"Retailer_Name",
	"Retailer_Address",
	"Retailer_State",
	"Invoice_Total",
	"Water_Total",
	"Net_Total",
	"Invoice_Date",
}

var (
	codeFencePattern = regexp.MustCompile("```(?:json)?\\s*")
	jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)
)

// sanitizeResponse strips formatting artifacts from the raw model reply and
// parses it into a list of records. Models occasionally wrap the JSON in
// fenced code blocks, prose, or an envelope object despite the prompt; all
// three are recovered here.
// Missing required fields on the first record are logged but tolerated,
// since the review step corrects gaps.
func sanitizeResponse(logger *slog.Logger, raw string) ([]Record, error) {
	cleaned := strings.TrimSpace(codeFencePattern.ReplaceAllString(raw, ""))

	// Replies that bury the array in prose or under a wrapper object are
	// recovered by substituting the first bracketed substring.
	text := cleaned
	if !strings.HasPrefix(cleaned, "[") {
		if match := jsonArrayPattern.FindString(cleaned); match != "" {
			text = match
		}
	}
	records, err := parseRecords(text)
	if err != nil && text != cleaned {
		records, err = parseRecords(cleaned)
	}
	if err != nil {
		return nil, newMalformedResponseError(cleaned, err)
	}

	if len(records) > 0 {
		var missing []string
		for _, field := range requiredRecordFields {
			if _, ok := records[0][field]; !ok {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			logger.Warn("extracted record missing fields", "fields", strings.Join(missing, ","))
		}
	}
	return records, nil
}

// parseRecords parses text as either a JSON array of records or a single
// record, which is wrapped into a one-element list.
func parseRecords(text string) ([]Record, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		var records []Record
		if err := json.Unmarshal([]byte(text), &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var record Record
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, err
	}
	return []Record{record}, nil
}
