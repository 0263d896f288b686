package gateway

import (
	"encoding/json"
	"fmt"
)

// Page is the pagination envelope used by the backend's list endpoints.
// Next and Previous stay nil when the backend omitted them.
type Page struct {
	Results  []json.RawMessage `json:"results"`
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
}

// EmptyPage returns the canonical empty envelope.
func EmptyPage() *Page {
	return &Page{Results: []json.RawMessage{}, Count: 0}
}

// DecodeResults unmarshals every page item into a slice of T.
func DecodeResults[T any](p *Page) ([]T, error) {
	out := make([]T, 0, len(p.Results))
	for i, raw := range p.Results {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode result %d: %w", i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// NormalizePage adapts any 2xx list response into the envelope shape:
// a proper envelope passes through, a bare array is wrapped, and anything
// else yields an empty result set. Count falls back to the result length
// when the payload carries none.
func NormalizePage(raw json.RawMessage) (*Page, error) {
	if len(raw) == 0 {
		return EmptyPage(), nil
	}

	// Bare array: wrap it. A literal null lands here too and must still
	// yield the canonical empty slice.
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		if items == nil {
			items = []json.RawMessage{}
		}
		return &Page{Results: items, Count: len(items)}, nil
	}

	var envelope struct {
		Results  []json.RawMessage `json:"results"`
		Count    *int              `json:"count"`
		Next     *string           `json:"next"`
		Previous *string           `json:"previous"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("normalize page: %w", err)
	}

	page := &Page{
		Results:  envelope.Results,
		Next:     envelope.Next,
		Previous: envelope.Previous,
	}
	if page.Results == nil {
		page.Results = []json.RawMessage{}
	}
	if envelope.Count != nil {
		page.Count = *envelope.Count
	} else {
		page.Count = len(page.Results)
	}
	return page, nil
}
