package entitlement

// Tier is a subscription level.
type Tier string

const (
	TierFieldBasics Tier = "field-basics"
	TierFullField   Tier = "full-field"
	TierSuite       Tier = "suite"
)

// AppID names an app gated by tier.
type AppID string

const (
	AppHub       AppID = "wbs"
	AppTickets   AppID = "wbt"
	AppPulls     AppID = "wbm"
	AppDashboard AppID = "dashboard"
)

// TierApps is the default app set each tier unlocks. Tiers are supersets
// of the ones before them in TierOrder.
var TierApps = map[Tier][]AppID{
	TierFieldBasics: {AppTickets},
	TierFullField:   {AppTickets, AppPulls, AppDashboard},
	TierSuite:       {AppHub, AppTickets, AppPulls, AppDashboard},
}

var TierLabels = map[Tier]string{
	TierFieldBasics: "Field Basics",
	TierFullField:   "Full Field",
	TierSuite:       "Suite",
}

var TierDescriptions = map[Tier]string{
	TierFieldBasics: "Single app: water tickets or tank pulls",
	TierFullField:   "Tickets + Pulls + Dashboard",
	TierSuite:       "Hub + Tickets + Pulls + Dashboard + Billing & Payroll",
}

// TierOrder lists tiers from smallest to largest.
var TierOrder = []Tier{TierFieldBasics, TierFullField, TierSuite}

// ParseTier maps a stored tier string to a Tier. Empty and unknown values
// yield TierSuite, with ok reporting whether s was recognized.
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(s); t {
	case TierFieldBasics, TierFullField, TierSuite:
		return t, true
	default:
		return TierSuite, false
	}
}

// DefaultApps returns a copy of the tier's app set.
func (t Tier) DefaultApps() []AppID {
	return append([]AppID(nil), TierApps[t]...)
}

// Label is the human-readable tier name.
func (t Tier) Label() string {
	if l, ok := TierLabels[t]; ok {
		return l
	}
	return TierLabels[TierSuite]
}

// HubAppTier maps catalog app ids to the tier app that gates them. Apps not
// listed here are never gated.
var HubAppTier = map[string]AppID{
	"wellbuilt-mobile":    AppPulls,
	"wellbuilt-dashboard": AppDashboard,
	"water-ticket":        AppTickets,
}
