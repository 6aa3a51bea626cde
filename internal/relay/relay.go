// Package relay implements the URL mechanics of the mobile OAuth relay: the
// two web pages that bridge a browser-based OAuth handshake back into the
// native app via a custom URL scheme.
package relay

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMissingParams is returned when the relay start page is invoked without
// the required parameters. Rendered inline; not recoverable without
// re-initiating the flow from the native app.
var ErrMissingParams = errors.New("missing relay parameters")

// ErrNoResult is returned when the relay callback finds neither a PKCE code
// nor an implicit-flow token pair in the incoming URL.
var ErrNoResult = errors.New("no authorization result in callback URL")

// StartParams are the two required inputs of the relay start page
type StartParams struct {
	// AppRedirect is the native deep-link target, e.g. ninaapp://auth/callback
	AppRedirect string
	// AuthURL is the fully formed provider authorization URL
	AuthURL string
}

// ParseStart validates the relay start query parameters
func ParseStart(query url.Values) (StartParams, error) {
	p := StartParams{
		AppRedirect: query.Get("app_redirect"),
		AuthURL:     query.Get("auth_url"),
	}
	if p.AppRedirect == "" || p.AuthURL == "" {
		return StartParams{}, ErrMissingParams
	}
	return p, nil
}

// Result is exactly one authorization outcome: a PKCE exchange code, or an
// implicit-flow token pair.
type Result struct {
	Code         string
	AccessToken  string
	RefreshToken string
}

// ParseResult extracts the authorization result from the callback URL. The
// PKCE code arrives as a query parameter; implicit-flow tokens arrive in the
// URL fragment. The code takes precedence when both are somehow present.
// Callers that already relayed the fragment into the query string pass the
// query values as the fragment too.
func ParseResult(query, fragment url.Values) (Result, error) {
	if code := query.Get("code"); code != "" {
		return Result{Code: code}, nil
	}
	if access := fragment.Get("access_token"); access != "" {
		return Result{
			AccessToken:  access,
			RefreshToken: fragment.Get("refresh_token"),
		}, nil
	}
	return Result{}, ErrNoResult
}

// NativeURL builds the deep-link URL the operating system hands to the native
// app: the target plus the authorization result as query parameters, joined
// with "?" or "&" depending on whether the target already has a query string.
//
// The target is not parsed with net/url on purpose: custom-scheme URLs like
// exp://192.168.0.5:8081/--/auth/callback round-trip badly through a full
// parse, and the only thing needed here is the separator choice.
func NativeURL(target string, result Result) string {
	params := url.Values{}
	if result.Code != "" {
		params.Set("code", result.Code)
	} else {
		params.Set("access_token", result.AccessToken)
		if result.RefreshToken != "" {
			params.Set("refresh_token", result.RefreshToken)
		}
	}

	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	return target + separator + params.Encode()
}
