package entitlement

import (
	"slices"
	"time"

	"github.com/wellbuilt/hubauth/directory"
)

// CompanyConfig is the resolved company record.
type CompanyConfig struct {
	Tier         Tier     `json:"tier"`
	EnabledApps  []AppID  `json:"enabledApps"`
	Name         string   `json:"name"`
	RequiredApps []string `json:"requiredApps"`
	LogoURL      string   `json:"logoUrl,omitempty"`
	PrimaryColor string   `json:"primaryColor,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Address      string   `json:"address,omitempty"`
	City         string   `json:"city,omitempty"`
	State        string   `json:"state,omitempty"`
	Zip          string   `json:"zip,omitempty"`
}

// IsAppEnabled reports whether app is open to the company. A nil config
// enables everything.
func IsAppEnabled(cfg *CompanyConfig, app AppID) bool {
	if cfg == nil {
		return true
	}
	return slices.Contains(cfg.EnabledApps, app)
}

// IsHubAppEnabled gates a catalog app by its tier mapping. Unmapped apps
// are always enabled.
func IsHubAppEnabled(cfg *CompanyConfig, catalogID string) bool {
	if cfg == nil {
		return true
	}
	app, ok := HubAppTier[catalogID]
	if !ok {
		return true
	}
	return IsAppEnabled(cfg, app)
}

// TierLabel returns the config's tier label, "Suite" for a nil config.
func TierLabel(cfg *CompanyConfig) string {
	if cfg == nil {
		return TierLabels[TierSuite]
	}
	return cfg.Tier.Label()
}

// configFromDocument builds a config from a company document. A missing or
// unknown tier resolves to suite, and an empty enabledApps list falls back
// to the tier defaults.
func configFromDocument(doc *directory.Document) *CompanyConfig {
	tier, _ := ParseTier(doc.String("tier"))

	explicit := doc.StringArray("enabledApps")
	apps := make([]AppID, 0, len(explicit))
	for _, a := range explicit {
		apps = append(apps, AppID(a))
	}
	if len(apps) == 0 {
		apps = tier.DefaultApps()
	}

	return &CompanyConfig{
		Tier:         tier,
		EnabledApps:  apps,
		Name:         doc.String("name"),
		RequiredApps: doc.StringArray("requiredApps"),
		LogoURL:      doc.String("logoUrl"),
		PrimaryColor: doc.String("primaryColor"),
		Phone:        doc.String("phone"),
		Address:      doc.String("address"),
		City:         doc.String("city"),
		State:        doc.String("state"),
		Zip:          doc.String("zip"),
	}
}

type cachedConfig struct {
	Config    *CompanyConfig `json:"config"`
	FetchedAt int64          `json:"fetchedAt"`
}

type cachedRequiredApps struct {
	RequiredApps []string `json:"requiredApps"`
	FetchedAt    int64    `json:"fetchedAt"`
}

func fresh(fetchedAt int64, now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(fetchedAt)) < ttl
}
