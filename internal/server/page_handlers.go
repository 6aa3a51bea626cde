package server

import (
	"net/http"
	"strings"

	"github.com/ninacare/nina-front/internal/backend"
	"github.com/ninacare/nina-front/internal/log"
	"github.com/ninacare/nina-front/internal/session"
)

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	signedIn := false
	if key, ok := s.sessionKey(r); ok {
		st := awaitSettled(r.Context(), s.sessions.Get(r.Context(), key), pageSettleTimeout)
		signedIn = st.Identity != nil
	}
	s.render(w, http.StatusOK, "landing.html", LandingPageData{SignedIn: signedIn})
}

// handleFallback catches every unregistered path and sends it home
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.resolvedState(w, r)
	if !ok {
		return
	}
	if role := st.Role(); role != "" {
		http.Redirect(w, r, "/dashboard/"+string(role), http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "select_profile.html", OnboardingPageData{
		CSRFToken: s.csrfToken(w, r),
	})
}

func (s *Server) handleCreateProfilePage(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.resolvedState(w, r)
	if !ok {
		return
	}
	if role := st.Role(); role != "" {
		http.Redirect(w, r, "/dashboard/"+string(role), http.StatusFound)
		return
	}

	role := backend.Role(r.URL.Query().Get("role"))
	if role != backend.RoleFamily && role != backend.RoleNanny {
		http.Redirect(w, r, "/select-profile", http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, "create_profile.html", OnboardingPageData{
		Role:      role,
		CSRFToken: s.csrfToken(w, r),
	})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	store, st, ok := s.resolvedState(w, r)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/select-profile", http.StatusFound)
		return
	}

	role := backend.Role(r.PostFormValue("role"))
	if role != backend.RoleFamily && role != backend.RoleNanny {
		http.Redirect(w, r, "/select-profile", http.StatusFound)
		return
	}

	fullName := strings.TrimSpace(r.PostFormValue("full_name"))
	if fullName == "" {
		s.render(w, http.StatusBadRequest, "create_profile.html", OnboardingPageData{
			Role:      role,
			Error:     "Please tell us your name.",
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}

	update := backend.ProfileUpdate{
		FullName: fullName,
		Phone:    strings.TrimSpace(r.PostFormValue("phone")),
		Address:  strings.TrimSpace(r.PostFormValue("address")),
		Locality: strings.TrimSpace(r.PostFormValue("locality")),
		Bio:      strings.TrimSpace(r.PostFormValue("bio")),
		Role:     role,
	}
	if _, err := s.backend.UpdateProfile(r.Context(), st.Identity.ID, update); err != nil {
		log.LogErrorWithFields("server", "Profile update failed", map[string]any{
			"error": err.Error(),
		})
		s.render(w, http.StatusBadGateway, "create_profile.html", OnboardingPageData{
			Role:      role,
			Error:     "Saving your profile failed, please try again.",
			CSRFToken: s.csrfToken(w, r),
		})
		return
	}

	if err := store.RefreshProfile(r.Context()); err != nil {
		log.LogWarnWithFields("server", "Profile refresh after onboarding failed", map[string]any{
			"error": err.Error(),
		})
	}
	http.Redirect(w, r, "/dashboard/"+string(role), http.StatusFound)
}

// requireRole resolves the session and enforces that the signed-in user has
// the given role, redirecting through onboarding or to the other dashboard
// when they don't
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, role backend.Role) (*session.Store, session.State, bool) {
	store, st, ok := s.resolvedState(w, r)
	if !ok {
		return nil, session.State{}, false
	}
	switch st.Role() {
	case role:
		return store, st, true
	case "":
		http.Redirect(w, r, "/select-profile", http.StatusFound)
	default:
		http.Redirect(w, r, "/dashboard/"+string(st.Role()), http.StatusFound)
	}
	return nil, session.State{}, false
}

func (s *Server) handleFamilyDashboard(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleFamily)
	if !ok {
		return
	}
	authID := st.Identity.ID

	data := FamilyDashboardData{
		Profile:   st.Profile,
		CSRFToken: s.csrfToken(w, r),
	}

	// Listing and subscription lookups are independent; a failed one renders
	// as an empty section rather than failing the page
	if sub, err := s.backend.SubscriptionStatus(r.Context(), authID); err != nil {
		log.LogWarnWithFields("server", "Subscription status lookup failed", map[string]any{"error": err.Error()})
	} else {
		data.IsSubscribed = sub.IsSubscribed
	}
	if nannies, err := s.backend.ListNannies(r.Context(), authID); err != nil {
		log.LogWarnWithFields("server", "Nanny listing failed", map[string]any{"error": err.Error()})
	} else {
		data.Nannies = nannies
	}
	if vacancies, err := s.backend.MyVacancies(r.Context(), authID); err != nil {
		log.LogWarnWithFields("server", "Vacancy listing failed", map[string]any{"error": err.Error()})
	} else {
		data.Vacancies = vacancies
	}

	s.render(w, http.StatusOK, "dashboard_family.html", data)
}

func (s *Server) handleNannyDashboard(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleNanny)
	if !ok {
		return
	}
	authID := st.Identity.ID

	data := NannyDashboardData{
		Profile:   st.Profile,
		CSRFToken: s.csrfToken(w, r),
	}

	if vacancies, err := s.backend.ListVacancies(r.Context(), authID); err != nil {
		log.LogWarnWithFields("server", "Vacancy listing failed", map[string]any{"error": err.Error()})
	} else {
		data.Vacancies = vacancies
	}
	if availability, err := s.backend.MyAvailability(r.Context(), authID); err != nil {
		log.LogWarnWithFields("server", "Availability lookup failed", map[string]any{"error": err.Error()})
	} else {
		data.Availability = availability
	}

	s.render(w, http.StatusOK, "dashboard_nanny.html", data)
}

func (s *Server) handlePostVacancy(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleFamily)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/dashboard/family", http.StatusFound)
		return
	}

	vacancy := backend.Vacancy{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Locality:    strings.TrimSpace(r.PostFormValue("locality")),
		Schedule:    strings.TrimSpace(r.PostFormValue("schedule")),
	}
	if vacancy.Title != "" {
		if _, err := s.backend.PostVacancy(r.Context(), st.Identity.ID, vacancy); err != nil {
			log.LogErrorWithFields("server", "Posting vacancy failed", map[string]any{"error": err.Error()})
		}
	}
	http.Redirect(w, r, "/dashboard/family", http.StatusFound)
}

func (s *Server) handleDeactivateVacancy(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleFamily)
	if !ok {
		return
	}
	if s.checkCSRF(r) {
		if err := s.backend.DeactivateVacancy(r.Context(), st.Identity.ID, r.PathValue("id")); err != nil {
			log.LogErrorWithFields("server", "Deactivating vacancy failed", map[string]any{"error": err.Error()})
		}
	}
	http.Redirect(w, r, "/dashboard/family", http.StatusFound)
}

func (s *Server) handlePublishAvailability(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleNanny)
	if !ok {
		return
	}
	if s.checkCSRF(r) {
		availability := backend.Availability{
			Schedule: strings.TrimSpace(r.PostFormValue("schedule")),
			Locality: strings.TrimSpace(r.PostFormValue("locality")),
			Notes:    strings.TrimSpace(r.PostFormValue("notes")),
		}
		if _, err := s.backend.PublishAvailability(r.Context(), st.Identity.ID, availability); err != nil {
			log.LogErrorWithFields("server", "Publishing availability failed", map[string]any{"error": err.Error()})
		}
	}
	http.Redirect(w, r, "/dashboard/nanny", http.StatusFound)
}

func (s *Server) handleWithdrawAvailability(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleNanny)
	if !ok {
		return
	}
	if s.checkCSRF(r) {
		if err := s.backend.WithdrawAvailability(r.Context(), st.Identity.ID, r.PathValue("id")); err != nil {
			log.LogErrorWithFields("server", "Withdrawing availability failed", map[string]any{"error": err.Error()})
		}
	}
	http.Redirect(w, r, "/dashboard/nanny", http.StatusFound)
}

// handleSubscribe creates a payment checkout and sends the browser to it
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	_, st, ok := s.requireRole(w, r, backend.RoleFamily)
	if !ok {
		return
	}
	if !s.checkCSRF(r) {
		http.Redirect(w, r, "/dashboard/family", http.StatusFound)
		return
	}

	checkout, err := s.backend.Subscribe(r.Context(), st.Identity.ID)
	if err != nil {
		log.LogErrorWithFields("server", "Creating checkout failed", map[string]any{"error": err.Error()})
		http.Redirect(w, r, "/payment/failure", http.StatusFound)
		return
	}
	http.Redirect(w, r, checkout.CheckoutURL, http.StatusFound)
}

// handlePaymentResult renders the page the payment provider redirects back to
func (s *Server) handlePaymentResult(w http.ResponseWriter, r *http.Request) {
	outcome := r.PathValue("outcome")
	switch outcome {
	case "success", "failure", "pending":
	default:
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, "payment_result.html", PaymentResultData{Outcome: outcome})
}
