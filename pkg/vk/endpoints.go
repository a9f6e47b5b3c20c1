package vk

import (
	"fmt"
	"net/url"
)

const (
	// OAuthBaseURL is the base URL for the token grant
	OAuthBaseURL = "https://oauth.vk.com"

	// APIBaseURL is the base URL for method calls
	APIBaseURL = "https://api.vk.com"

	// DefaultCatalogLimit is the single-page bound for audio.get. The
	// reference bound covers realistic catalog sizes without pagination.
	DefaultCatalogLimit = 6000
)

// TokenGrantURL constructs the direct-auth token grant URL
func TokenGrantURL(base string, appID int, apiVersion, login, password string) string {
	params := url.Values{}
	params.Set("grant_type", "password")
	params.Set("client_id", fmt.Sprintf("%d", appID))
	params.Set("username", login)
	params.Set("password", password)
	params.Set("scope", "all")
	params.Set("2fa_supported", "1")
	params.Set("v", apiVersion)

	return fmt.Sprintf("%s/token?%s", base, params.Encode())
}

// ManualAuthorizeURL is the browser URL shown during manual token entry
func ManualAuthorizeURL(appID int, apiVersion string) string {
	params := url.Values{}
	params.Set("client_id", fmt.Sprintf("%d", appID))
	params.Set("scope", "all")
	params.Set("response_type", "token")
	params.Set("display", "page")
	params.Set("v", apiVersion)

	return fmt.Sprintf("%s/authorize?%s", OAuthBaseURL, params.Encode())
}

// MethodURL constructs a method-call URL with the common parameters applied
func MethodURL(base, method, apiVersion string, token string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	params.Set("v", apiVersion)

	return fmt.Sprintf("%s/method/%s?%s", base, method, params.Encode())
}
