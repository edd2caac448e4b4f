package directory

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document is a record from the company document store. Field values stay
// raw until read, so a field of an unexpected shape reads as empty rather
// than failing the whole document.
type Document struct {
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type typedValue struct {
	StringValue  *string `json:"stringValue"`
	BooleanValue *bool   `json:"booleanValue"`
	ArrayValue   *struct {
		Values []json.RawMessage `json:"values"`
	} `json:"arrayValue"`
}

func (d *Document) value(field string) (typedValue, bool) {
	var v typedValue
	if d == nil {
		return v, false
	}
	raw, ok := d.Fields[field]
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// String unwraps a {"stringValue": ...} field. Missing or differently typed
// fields read as "".
func (d *Document) String(field string) string {
	v, ok := d.value(field)
	if !ok || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// Bool unwraps a {"booleanValue": ...} field.
func (d *Document) Bool(field string) bool {
	v, ok := d.value(field)
	return ok && v.BooleanValue != nil && *v.BooleanValue
}

// StringArray unwraps {"arrayValue": {"values": [{"stringValue": ...}]}}.
// Entries that are not non-empty strings are dropped. A missing or
// unwrapped field yields an empty, non-nil slice.
func (d *Document) StringArray(field string) []string {
	out := []string{}
	v, ok := d.value(field)
	if !ok || v.ArrayValue == nil {
		return out
	}
	for _, raw := range v.ArrayValue.Values {
		var item typedValue
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		if item.StringValue != nil && *item.StringValue != "" {
			out = append(out, *item.StringValue)
		}
	}
	return out
}

// Documents reads the company document store.
type Documents struct {
	getter Getter
}

// NewDocuments wraps getter, typically a *Client configured without suffix.
func NewDocuments(getter Getter) *Documents {
	return &Documents{getter: getter}
}

// Get fetches collection/id. It returns nil when the document does not exist.
func (d *Documents) Get(ctx context.Context, collection, id string) (*Document, error) {
	raw, err := d.getter.Get(ctx, collection+"/"+id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: document %s/%s: %v", ErrDecode, collection, id, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]json.RawMessage{}
	}
	return &doc, nil
}
