package catalog

// Platform says where an app runs.
type Platform string

const (
	PlatformMobile Platform = "mobile"
	PlatformWeb    Platform = "web"
	PlatformBoth   Platform = "both"
)

// Status is an app's release status.
type Status string

const (
	StatusActive     Status = "active"
	StatusBeta       Status = "beta"
	StatusComingSoon Status = "coming-soon"
)

// App is a bundled catalog entry.
type App struct {
	ID        string
	Name      string
	ShortName string
	Platform  Platform
	Status    Status
	// Scheme is the deep-link scheme without "://". Web apps have none.
	Scheme string
	// AndroidPackage enables the intent fallback on Android.
	AndroidPackage string
}

// Bundled is the catalog shipped with the hub.
var Bundled = []App{
	{
		ID:             "wellbuilt-mobile",
		Name:           "WellBuilt Mobile",
		ShortName:      "Mobile",
		Platform:       PlatformMobile,
		Status:         StatusActive,
		Scheme:         "wellbuiltmobile",
		AndroidPackage: "com.wellbuiltmobile.app",
	},
	{
		ID:        "wellbuilt-dashboard",
		Name:      "WellBuilt Dashboard",
		ShortName: "Dashboard",
		Platform:  PlatformWeb,
		Status:    StatusActive,
	},
	{
		ID:             "water-ticket",
		Name:           "WellBuilt Tickets",
		ShortName:      "Tickets",
		Platform:       PlatformMobile,
		Status:         StatusActive,
		Scheme:         "wellbuilt-tickets",
		AndroidPackage: "com.testerxxx.waterticket",
	},
	{
		ID:        "wellbuilt-jsa",
		Name:      "WellBuilt JSA",
		ShortName: "JSA",
		Platform:  PlatformMobile,
		Status:    StatusActive,
	},
}

// Find returns the bundled app with id.
func Find(id string) (App, bool) {
	for _, a := range Bundled {
		if a.ID == id {
			return a, true
		}
	}
	return App{}, false
}
