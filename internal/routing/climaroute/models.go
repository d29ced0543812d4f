package climaroute

import (
	"encoding/json"
	"strings"
)

// optimizeRequest is the body for POST /optimize. The backend expects
// PascalCase field names.
type optimizeRequest struct {
	Origin      string `json:"Origin"`
	Destination string `json:"Destination"`
}

// The optimize response shape is loosely typed upstream: field names vary in
// casing between deployments and geometry arrives either as [[lat,lon],...]
// arrays or as an encoded polyline string. Everything is decoded into raw
// documents here and normalized into the typed model before leaving the
// package.

type rawDocument map[string]json.RawMessage

// field returns the first value whose key matches any candidate name,
// compared case-insensitively.
func (d rawDocument) field(names ...string) (json.RawMessage, bool) {
	for _, name := range names {
		for k, v := range d {
			if strings.EqualFold(k, name) {
				return v, true
			}
		}
	}
	return nil, false
}

func (d rawDocument) float(names ...string) (float64, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		// Some deployments quote numbers.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			return 0, false
		}
	}
	return f, true
}

func (d rawDocument) str(names ...string) (string, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (d rawDocument) docs(names ...string) ([]rawDocument, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return nil, false
	}
	var docs []rawDocument
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, false
	}
	return docs, true
}

func (d rawDocument) doc(names ...string) (rawDocument, bool) {
	raw, ok := d.field(names...)
	if !ok {
		return nil, false
	}
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return doc, true
}
