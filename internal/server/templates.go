package server

import (
	"embed"
	"html/template"

	"github.com/ninacare/nina-front/internal/backend"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// AuthPageData backs the login and register pages
type AuthPageData struct {
	Title     string
	Error     string
	Email     string
	CSRFToken string
}

// OnboardingPageData backs the profile selection and creation pages
type OnboardingPageData struct {
	Role      backend.Role
	Error     string
	CSRFToken string
}

// RelayPageData backs the mobile relay status pages. Status is one of
// "redirecting", "error". Target is the native deep-link URL; template.URL
// because custom app schemes would otherwise be escaped away.
type RelayPageData struct {
	Status  string
	Message string
	Target  template.URL
}

// CallbackPageData backs the fragment relay page served while the web
// callback waits for implicit-flow tokens to be moved out of the URL fragment
type CallbackPageData struct {
	Message string
}

// FamilyDashboardData backs the family dashboard
type FamilyDashboardData struct {
	Profile      *backend.Profile
	Nannies      []backend.Nanny
	Vacancies    []backend.Vacancy
	IsSubscribed bool
	CSRFToken    string
}

// NannyDashboardData backs the nanny dashboard
type NannyDashboardData struct {
	Profile      *backend.Profile
	Vacancies    []backend.Vacancy
	Availability *backend.Availability
	CSRFToken    string
}

// PaymentResultData backs the payment result page
type PaymentResultData struct {
	Outcome string
}

// LandingPageData backs the marketing landing page
type LandingPageData struct {
	SignedIn bool
}
