package profile

import (
	"encoding/json"
)

const (
	ProfileCacheKey = "wellbuilt-driver-profile"
	VehicleCacheKey = "wellbuilt-vehicle-info"

	defaultLanguage = "en"
)

// Profile is the driver's shared profile.
type Profile struct {
	DisplayName string `json:"displayName"`
	Phone       string `json:"phone,omitempty"`
	CDL         string `json:"cdl,omitempty"`
	// Signature is a base64 PNG.
	Signature   string `json:"signature,omitempty"`
	Language    string `json:"language"`
	CompanyID   string `json:"companyId,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Update is a partial profile change. Nil fields are left untouched.
type Update struct {
	DisplayName *string `json:"displayName,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	CDL         *string `json:"cdl,omitempty"`
	Signature   *string `json:"signature,omitempty"`
	Language    *string `json:"language,omitempty"`
	CompanyID   *string `json:"companyId,omitempty"`
	CompanyName *string `json:"companyName,omitempty"`
}

// Apply merges u into p.
func (u Update) Apply(p Profile) Profile {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.DisplayName, u.DisplayName)
	set(&p.Phone, u.Phone)
	set(&p.CDL, u.CDL)
	set(&p.Signature, u.Signature)
	set(&p.Language, u.Language)
	set(&p.CompanyID, u.CompanyID)
	set(&p.CompanyName, u.CompanyName)
	return p
}

// Empty reports whether u changes nothing.
func (u Update) Empty() bool {
	return u == Update{}
}

// VehicleInfo is the truck and trailer the driver is operating.
type VehicleInfo struct {
	TruckNumber   string `json:"truckNumber"`
	TrailerNumber string `json:"trailerNumber"`
}

// fields is a leniently decoded directory object. Values that are not
// strings read as "".
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) (fields, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil, false
	}
	return f, true
}

func (f fields) str(key string) string {
	var s string
	if err := json.Unmarshal(f[key], &s); err != nil {
		return ""
	}
	return s
}

func (f fields) first(keys ...string) string {
	for _, k := range keys {
		if s := f.str(k); s != "" {
			return s
		}
	}
	return ""
}

func profileFromSubpath(f fields) Profile {
	p := Profile{
		DisplayName: f.str("displayName"),
		Phone:       f.str("phone"),
		CDL:         f.str("cdl"),
		Signature:   f.str("signature"),
		Language:    f.str("language"),
		CompanyID:   f.str("companyId"),
		CompanyName: f.str("companyName"),
	}
	if p.Language == "" {
		p.Language = defaultLanguage
	}
	return p
}

// profileFromRecord reads the older layout where profile fields sat on the
// approved record itself.
func profileFromRecord(f fields) Profile {
	return Profile{
		DisplayName: f.first("displayName", "name"),
		Language:    defaultLanguage,
		CompanyID:   f.str("companyId"),
		CompanyName: f.str("companyName"),
	}
}
