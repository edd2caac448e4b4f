package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	// ApprovedPath holds approved driver records keyed by passcode hash.
	ApprovedPath = "drivers/approved"
	// PendingPath holds registration requests keyed by generated id.
	PendingPath = "drivers/pending"
)

// DriverRecord is one approved driver identity.
type DriverRecord struct {
	DisplayName string
	// Active is nil when the record carries no active flag. Only an explicit
	// false deactivates the driver.
	Active      *bool
	IsAdmin     bool
	IsViewer    bool
	CompanyID   string
	CompanyName string
	ApprovedAt  string
}

// Deactivated reports whether the record is explicitly inactive.
func (r DriverRecord) Deactivated() bool {
	return r.Active != nil && !*r.Active
}

// UnmarshalJSON reads a record leniently: flags count only when they are JSON
// booleans and text fields only when they are JSON strings.
func (r *DriverRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*r = recordFromFields(fields)
	return nil
}

func recordFromFields(fields map[string]json.RawMessage) DriverRecord {
	rec := DriverRecord{
		DisplayName: rawString(fields["displayName"]),
		IsAdmin:     rawIsTrue(fields["isAdmin"]),
		IsViewer:    rawIsTrue(fields["isViewer"]),
		CompanyID:   rawString(fields["companyId"]),
		CompanyName: rawString(fields["companyName"]),
		ApprovedAt:  rawString(fields["approvedAt"]),
	}
	if raw, ok := fields["active"]; ok {
		switch string(bytes.TrimSpace(raw)) {
		case "false":
			v := false
			rec.Active = &v
		case "true":
			v := true
			rec.Active = &v
		}
	}
	return rec
}

// Shape distinguishes the two stored layouts of an approved entry.
type Shape uint8

const (
	// ShapeFlat is a single record stored directly under the hash.
	ShapeFlat Shape = iota + 1
	// ShapeLegacy nests one record per device under the hash.
	ShapeLegacy
)

// DriverDocument is the normalized content of drivers/approved/{hash}.
// Exactly one of Flat or Legacy is meaningful, as reported by Shape.
type DriverDocument struct {
	Shape  Shape
	Flat   DriverRecord
	Legacy map[string]DriverRecord
}

// DecodeDriverDocument classifies raw once: an object with a non-empty
// displayName at its root is flat, anything else is scanned as nested entries.
func DecodeDriverDocument(raw json.RawMessage) (*DriverDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		// A scalar under the hash key exists but holds no entries.
		if json.Valid(raw) {
			return &DriverDocument{Shape: ShapeLegacy, Legacy: map[string]DriverRecord{}}, nil
		}
		return nil, fmt.Errorf("%w: driver record: %v", ErrDecode, err)
	}

	if rawString(fields["displayName"]) != "" {
		return &DriverDocument{Shape: ShapeFlat, Flat: recordFromFields(fields)}, nil
	}

	doc := &DriverDocument{Shape: ShapeLegacy, Legacy: make(map[string]DriverRecord, len(fields))}
	for key, value := range fields {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(value, &nested); err != nil {
			continue
		}
		doc.Legacy[key] = recordFromFields(nested)
	}
	return doc, nil
}

// Match returns the active record whose display name equals name, ignoring
// case. Deactivated records never match.
func (d *DriverDocument) Match(name string) (DriverRecord, bool) {
	if d == nil {
		return DriverRecord{}, false
	}
	if d.Shape == ShapeFlat {
		if d.Flat.Deactivated() || !strings.EqualFold(d.Flat.DisplayName, name) {
			return DriverRecord{}, false
		}
		return d.Flat, true
	}
	for _, key := range d.legacyKeys() {
		rec := d.Legacy[key]
		if strings.EqualFold(rec.DisplayName, name) && !rec.Deactivated() {
			return rec, true
		}
	}
	return DriverRecord{}, false
}

// Standing is the outcome of re-checking a persisted identity.
type Standing uint8

const (
	// StandingMissing means no record answers for the identity.
	StandingMissing Standing = iota
	// StandingActive means the identity is still approved.
	StandingActive
	// StandingDeactivated means the identity exists but is switched off.
	StandingDeactivated
)

// Standing re-checks an identity already holding a session. A flat record
// answers for its hash regardless of name. Legacy entries are matched by
// name, and the first entry with that name decides.
func (d *DriverDocument) Standing(name string) (DriverRecord, Standing) {
	if d == nil {
		return DriverRecord{}, StandingMissing
	}
	if d.Shape == ShapeFlat {
		if d.Flat.Deactivated() {
			return d.Flat, StandingDeactivated
		}
		return d.Flat, StandingActive
	}
	for _, key := range d.legacyKeys() {
		rec := d.Legacy[key]
		if !strings.EqualFold(rec.DisplayName, name) {
			continue
		}
		if rec.Deactivated() {
			return rec, StandingDeactivated
		}
		return rec, StandingActive
	}
	return DriverRecord{}, StandingMissing
}

func (d *DriverDocument) legacyKeys() []string {
	keys := make([]string, 0, len(d.Legacy))
	for k := range d.Legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingRecord is a registration request awaiting administrator action.
type PendingRecord struct {
	DisplayName  string `json:"displayName"`
	PasscodeHash string `json:"passcodeHash"`
	RequestedAt  string `json:"requestedAt"`
	CompanyName  string `json:"companyName,omitempty"`
}

// Getter reads one path. *Client satisfies it.
type Getter interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// Store is the subset of *Client the driver service needs.
type Store interface {
	Getter
	Post(ctx context.Context, path string, body any) (string, error)
	Patch(ctx context.Context, path string, partial any) error
}

// Drivers reads and writes the driver tree.
type Drivers struct {
	store Store
}

// NewDrivers wraps store.
func NewDrivers(store Store) *Drivers {
	return &Drivers{store: store}
}

// Approved returns the normalized document under hash, or nil when the hash
// is not approved.
func (d *Drivers) Approved(ctx context.Context, hash string) (*DriverDocument, error) {
	raw, err := d.store.Get(ctx, ApprovedPath+"/"+hash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return DecodeDriverDocument(raw)
}

// Pending lists every pending registration. Malformed entries are skipped.
func (d *Drivers) Pending(ctx context.Context) (map[string]PendingRecord, error) {
	raw, err := d.store.Get(ctx, PendingPath)
	if err != nil {
		return nil, err
	}
	out := map[string]PendingRecord{}
	if raw == nil {
		return out, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return out, nil
	}
	for key, value := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(value, &fields); err != nil {
			continue
		}
		out[key] = PendingRecord{
			DisplayName:  rawString(fields["displayName"]),
			PasscodeHash: rawString(fields["passcodeHash"]),
			RequestedAt:  rawString(fields["requestedAt"]),
			CompanyName:  rawString(fields["companyName"]),
		}
	}
	return out, nil
}

// HasPending reports whether any pending registration carries hash.
func (d *Drivers) HasPending(ctx context.Context, hash string) (bool, error) {
	pending, err := d.Pending(ctx)
	if err != nil {
		return false, err
	}
	for _, rec := range pending {
		if rec.PasscodeHash == hash {
			return true, nil
		}
	}
	return false, nil
}

// SubmitPending appends rec to the pending collection.
func (d *Drivers) SubmitPending(ctx context.Context, rec PendingRecord) (string, error) {
	return d.store.Post(ctx, PendingPath, rec)
}

// ProfilePath is where a driver's profile lives.
func ProfilePath(hash string) string {
	return ApprovedPath + "/" + hash + "/profile"
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func rawIsTrue(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "true"
}
