package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrProfileNotFound is returned for 404s on the profile endpoint (the user
// authenticated but hasn't completed onboarding server-side yet)
var ErrProfileNotFound = errors.New("profile not found")

// Role is the marketplace side a profile belongs to
type Role string

const (
	RoleFamily Role = "family"
	RoleNanny  Role = "nanny"
)

// Profile is the internal application record for an authenticated user.
// An empty Role means onboarding is incomplete.
type Profile struct {
	AuthID   string `json:"auth_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Locality string `json:"locality,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// ProfileUpdate carries the onboarding form fields
type ProfileUpdate struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Locality string `json:"locality,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Role     Role   `json:"role,omitempty"`
}

// Subscription is the paid-subscription status gating contact details
type Subscription struct {
	IsSubscribed bool       `json:"is_subscribed"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Checkout is the payment-provider checkout created by Subscribe
type Checkout struct {
	CheckoutURL string `json:"checkout_url"`
}

// Nanny is a caregiver listing shown on the family dashboard. Contact fields
// are populated by the backend only for subscribed viewers.
type Nanny struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Locality     string `json:"locality,omitempty"`
	Bio          string `json:"bio,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Availability string `json:"availability,omitempty"`
}

// Vacancy is a family's long-term childcare vacancy
type Vacancy struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Locality    string `json:"locality,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	Active      bool   `json:"active"`
}

// Availability is a nanny's published long-term availability listing
type Availability struct {
	ID       string `json:"id"`
	Schedule string `json:"schedule,omitempty"`
	Locality string `json:"locality,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Active   bool   `json:"active"`
}

// Client talks to the marketplace REST backend. All calls carry the caller's
// context plus a hard request timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client for the given base URL
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetProfile fetches the profile for an identity. Returns ErrProfileNotFound
// when the backend has no record yet.
func (c *Client) GetProfile(ctx context.Context, authID, email string) (*Profile, error) {
	q := url.Values{}
	q.Set("auth_id", authID)
	q.Set("email", email)

	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/users/me?"+q.Encode(), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile writes onboarding fields for an identity
func (c *Client) UpdateProfile(ctx context.Context, authID string, update ProfileUpdate) (*Profile, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var profile Profile
	if err := c.do(ctx, http.MethodPut, "/users/me?"+q.Encode(), update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SubscriptionStatus checks whether an identity holds an active subscription
func (c *Client) SubscriptionStatus(ctx context.Context, authID string) (*Subscription, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var sub Subscription
	if err := c.do(ctx, http.MethodGet, "/long-term/subscription/status?"+q.Encode(), nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Subscribe creates a payment checkout for the identity
func (c *Client) Subscribe(ctx context.Context, authID string) (*Checkout, error) {
	body := map[string]string{"auth_id": authID}

	var checkout Checkout
	if err := c.do(ctx, http.MethodPost, "/long-term/subscribe", body, &checkout); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// ListNannies returns caregiver listings for the family dashboard
func (c *Client) ListNannies(ctx context.Context, authID string) ([]Nanny, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var nannies []Nanny
	if err := c.do(ctx, http.MethodGet, "/long-term/nannies?"+q.Encode(), nil, &nannies); err != nil {
		return nil, err
	}
	return nannies, nil
}

// ListVacancies returns open vacancies for the nanny dashboard
func (c *Client) ListVacancies(ctx context.Context, authID string) ([]Vacancy, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var vacancies []Vacancy
	if err := c.do(ctx, http.MethodGet, "/long-term/vacancies?"+q.Encode(), nil, &vacancies); err != nil {
		return nil, err
	}
	return vacancies, nil
}

// MyVacancies returns the family's own vacancies
func (c *Client) MyVacancies(ctx context.Context, authID string) ([]Vacancy, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var vacancies []Vacancy
	if err := c.do(ctx, http.MethodGet, "/long-term/vacancies/mine?"+q.Encode(), nil, &vacancies); err != nil {
		return nil, err
	}
	return vacancies, nil
}

// PostVacancy publishes a new vacancy for a family
func (c *Client) PostVacancy(ctx context.Context, authID string, vacancy Vacancy) (*Vacancy, error) {
	payload := struct {
		Vacancy
		AuthID string `json:"auth_id"`
	}{Vacancy: vacancy, AuthID: authID}

	var created Vacancy
	if err := c.do(ctx, http.MethodPost, "/long-term/vacancies", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeactivateVacancy withdraws a vacancy listing
func (c *Client) DeactivateVacancy(ctx context.Context, authID, vacancyID string) error {
	q := url.Values{}
	q.Set("auth_id", authID)

	path := fmt.Sprintf("/long-term/vacancies/%s/deactivate?%s", url.PathEscape(vacancyID), q.Encode())
	return c.do(ctx, http.MethodPatch, path, struct{}{}, nil)
}

// MyAvailability returns the nanny's own availability listing, if any
func (c *Client) MyAvailability(ctx context.Context, authID string) (*Availability, error) {
	q := url.Values{}
	q.Set("auth_id", authID)

	var availability Availability
	err := c.do(ctx, http.MethodGet, "/long-term/nanny-availability/mine?"+q.Encode(), nil, &availability)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &availability, nil
}

// PublishAvailability publishes a long-term availability listing
func (c *Client) PublishAvailability(ctx context.Context, authID string, availability Availability) (*Availability, error) {
	payload := struct {
		Availability
		AuthID string `json:"auth_id"`
	}{Availability: availability, AuthID: authID}

	var created Availability
	if err := c.do(ctx, http.MethodPost, "/long-term/nanny-availability", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// WithdrawAvailability deactivates the nanny's availability listing
func (c *Client) WithdrawAvailability(ctx context.Context, authID, availabilityID string) error {
	q := url.Values{}
	q.Set("auth_id", authID)

	path := fmt.Sprintf("/long-term/nanny-availability/%s/deactivate?%s", url.PathEscape(availabilityID), q.Encode())
	return c.do(ctx, http.MethodPatch, path, struct{}{}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrProfileNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
