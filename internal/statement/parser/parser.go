// Package parser turns free-text model replies into validated records.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"billwatch-backend/internal/statement/domain"
)

// DefaultCutMarker is the phrase some models append after the JSON block
const DefaultCutMarker = "This JSON format is provided for you"

// ParseError reports a model reply that is not a well-formed record
type ParseError struct {
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser strips trailing prose from model replies and decodes the remainder
type Parser struct {
	cutMarkers []string
}

// NewParser creates a parser that cuts replies at the earliest of the given
// markers. DefaultCutMarker is used when none are given.
func NewParser(cutMarkers ...string) *Parser {
	var markers []string
	for _, m := range cutMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	if len(markers) == 0 {
		markers = []string{DefaultCutMarker}
	}
	return &Parser{cutMarkers: markers}
}

// ParseRecord decodes a statement reply. Unknown keys, trailing data and
// missing required fields are rejected.
func (p *Parser) ParseRecord(output string) (*domain.CanonicalPaymentRecord, error) {
	var rec domain.CanonicalPaymentRecord
	if err := p.decode(output, &rec); err != nil {
		return nil, &ParseError{Output: output, Err: err}
	}

	var missing []string
	if strings.TrimSpace(rec.DueDate) == "" {
		missing = append(missing, "Due Date")
	}
	if strings.TrimSpace(rec.TotalAmountDue) == "" {
		missing = append(missing, "Total Amount Due")
	}
	if strings.TrimSpace(rec.BankName) == "" {
		missing = append(missing, "Bank Name")
	}
	if len(missing) > 0 {
		return nil, &ParseError{Output: output, Err: fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))}
	}

	rec.DueDate = strings.TrimSpace(rec.DueDate)
	rec.TotalAmountDue = strings.TrimSpace(rec.TotalAmountDue)
	rec.BankName = strings.TrimSpace(rec.BankName)
	rec.CardHolderName = strings.TrimSpace(rec.CardHolderName)
	return &rec, nil
}

// ParsePaidAmount decodes a payment confirmation reply
func (p *Parser) ParsePaidAmount(output string) (*domain.PaidAmount, error) {
	var paid domain.PaidAmount
	if err := p.decode(output, &paid); err != nil {
		return nil, &ParseError{Output: output, Err: err}
	}
	paid.TotalAmountDue = strings.TrimSpace(paid.TotalAmountDue)
	if paid.TotalAmountDue == "" {
		return nil, &ParseError{Output: output, Err: errors.New("missing fields: Total Amount Due")}
	}
	return &paid, nil
}

// Cut returns the reply up to the earliest cut marker, trimmed and without
// Markdown code fences
func (p *Parser) Cut(output string) string {
	end := len(output)
	for _, m := range p.cutMarkers {
		if idx := strings.Index(output, m); idx != -1 && idx < end {
			end = idx
		}
	}
	text := strings.TrimSpace(output[:end])

	// Clean up markdown code blocks if present
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

func (p *Parser) decode(output string, v interface{}) error {
	text := p.Cut(output)
	if text == "" {
		return errors.New("empty output")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}
