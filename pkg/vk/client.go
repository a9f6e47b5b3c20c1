package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
)

// scopesDeniedMessage is the VK wording for error 15 when a token lacks the
// audio scope. Matched in addition to the code because the OAuth surface
// reports the same condition without a numeric code.
const scopesDeniedMessage = "no access to call this method"

// AuthParams carries credentials and the interactive challenge callbacks for
// one authorize call. Either Login/Password or AccessToken/UserID must be set.
type AuthParams struct {
	Login    string
	Password string

	AccessToken string
	UserID      int64

	// TwoFactorCode supplies the one-time code when VK asks for it.
	// The request is re-issued with the code as part of the same call.
	TwoFactorCode func() (string, error)

	// CaptchaSolver answers a captcha challenge given the image URL
	CaptchaSolver func(imageURL string) (string, error)
}

// Client talks to the VK OAuth and method endpoints
type Client struct {
	httpClient   *http.Client
	headers      map[string]string
	oauthBaseURL string
	apiBaseURL   string
	appID        int
	apiVersion   string
	logger       logger.Logger
}

// NewClient creates a VK API client. The user agent must impersonate an
// official VK application or the audio endpoints refuse to serve URLs.
func NewClient(appID int, apiVersion, userAgent string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      userAgent,
			"Accept":          "application/json",
			"Accept-Language": "en-US,en;q=0.9",
		},
		oauthBaseURL: OAuthBaseURL,
		apiBaseURL:   APIBaseURL,
		appID:        appID,
		apiVersion:   apiVersion,
		logger:       log,
	}
}

// SetBaseURLs redirects the client at different endpoints (used by tests)
func (c *Client) SetBaseURLs(oauthBase, apiBase string) {
	c.oauthBaseURL = oauthBase
	c.apiBaseURL = apiBase
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.Redacted(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.Redacted(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.Redacted(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// getJSON fetches a URL and decodes the body into v. The OAuth endpoint
// reports challenges with non-2xx statuses but a well-formed JSON body, so
// the status code alone is not treated as a failure.
func (c *Client) getJSON(ctx context.Context, rawURL string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to build request", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to read response body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse response: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// Authorize establishes a session. Password grants may be interrupted by
// challenges; two-factor and captcha are resolved inside this call through
// the AuthParams callbacks, validation is returned to the caller as a typed
// *ValidationError.
func (c *Client) Authorize(ctx context.Context, p AuthParams) (*Session, error) {
	if p.AccessToken != "" {
		return c.authorizeWithToken(ctx, p)
	}
	if p.Login == "" || p.Password == "" {
		return nil, errs.New(errs.ErrorTypeConfiguration, "either login/password or token/user id must be provided")
	}
	return c.authorizeWithPassword(ctx, p)
}

// authorizeWithToken validates a bearer token by calling users.get with it
func (c *Client) authorizeWithToken(ctx context.Context, p AuthParams) (*Session, error) {
	sess := &Session{AccessToken: p.AccessToken, UserID: p.UserID}

	var env apiEnvelope[[]profileInfo]
	u := MethodURL(c.apiBaseURL, "users.get", c.apiVersion, sess.AccessToken, nil)
	if err := c.getJSON(ctx, u, &env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, c.mapAPIError(env.Error)
	}
	if len(env.Response) > 0 && sess.UserID == 0 {
		sess.UserID = env.Response[0].ID
	}

	c.logger.InfoWithFields("authorized with token", map[string]interface{}{
		"user_id": sess.UserID,
	})
	return sess, nil
}

// authorizeWithPassword performs the direct token grant, resolving two-factor
// and captcha challenges in-call
func (c *Client) authorizeWithPassword(ctx context.Context, p AuthParams) (*Session, error) {
	extra := url.Values{}
	captchaAttempted := false

	for {
		grant := TokenGrantURL(c.oauthBaseURL, c.appID, c.apiVersion, p.Login, p.Password)
		if len(extra) > 0 {
			grant = grant + "&" + extra.Encode()
		}

		var tok tokenResponse
		if err := c.getJSON(ctx, grant, &tok); err != nil {
			return nil, err
		}

		switch {
		case tok.AccessToken != "":
			c.logger.InfoWithFields("authorized with password", map[string]interface{}{
				"user_id": tok.UserID,
			})
			return &Session{AccessToken: tok.AccessToken, UserID: tok.UserID}, nil

		case tok.Error == "need_validation" && strings.HasPrefix(tok.ValidationType, "2fa"):
			if p.TwoFactorCode == nil {
				return nil, &AuthFailedError{Reason: tok.Error, Description: "two-factor code required but no provider configured"}
			}
			code, err := p.TwoFactorCode()
			if err != nil {
				return nil, errs.Wrap(errs.ErrorTypeAuth, "two-factor code entry failed", err)
			}
			extra.Set("code", code)

		case tok.Error == "need_validation":
			return nil, &ValidationError{RedirectURI: tok.RedirectURI, Description: tok.ErrorDescription}

		case tok.Error == "need_captcha":
			if captchaAttempted || p.CaptchaSolver == nil {
				if captchaAttempted {
					return nil, fmt.Errorf("%w: %s", ErrCaptchaFailed, tok.CaptchaImg)
				}
				return nil, &CaptchaError{SID: tok.CaptchaSID, ImageURL: tok.CaptchaImg}
			}
			answer, err := p.CaptchaSolver(tok.CaptchaImg)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCaptchaFailed, err)
			}
			extra.Set("captcha_sid", tok.CaptchaSID)
			extra.Set("captcha_key", answer)
			captchaAttempted = true

		case strings.Contains(tok.ErrorDescription, scopesDeniedMessage):
			return nil, fmt.Errorf("%s: %w", tok.ErrorDescription, ErrScopesDenied)

		default:
			return nil, &AuthFailedError{Reason: tok.Error, Description: tok.ErrorDescription}
		}
	}
}

// ListMedia fetches one page of the owner's audio catalog. No further
// pagination: the default bound covers realistic catalog sizes.
func (c *Client) ListMedia(ctx context.Context, sess *Session, ownerID int64, offset, count int) ([]MediaRecord, error) {
	if count <= 0 {
		count = DefaultCatalogLimit
	}

	params := url.Values{}
	params.Set("owner_id", fmt.Sprintf("%d", ownerID))
	params.Set("offset", fmt.Sprintf("%d", offset))
	params.Set("count", fmt.Sprintf("%d", count))

	var env apiEnvelope[audioGetResponse]
	u := MethodURL(c.apiBaseURL, "audio.get", c.apiVersion, sess.AccessToken, params)
	if err := c.getJSON(ctx, u, &env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, c.mapAPIError(env.Error)
	}

	records := make([]MediaRecord, 0, len(env.Response.Items))
	for _, item := range env.Response.Items {
		records = append(records, item.toMediaRecord())
	}

	c.logger.InfoWithFields("catalog fetched", map[string]interface{}{
		"owner_id": ownerID,
		"total":    env.Response.Count,
		"returned": len(records),
	})

	return records, nil
}

// ProfileScreenName returns the account's public identifier, used for the
// default download directory name
func (c *Client) ProfileScreenName(ctx context.Context, sess *Session) (string, error) {
	var env apiEnvelope[profileInfo]
	u := MethodURL(c.apiBaseURL, "account.getProfileInfo", c.apiVersion, sess.AccessToken, nil)
	if err := c.getJSON(ctx, u, &env); err != nil {
		return "", err
	}
	if env.Error != nil {
		return "", c.mapAPIError(env.Error)
	}

	if env.Response.ScreenName != "" {
		return env.Response.ScreenName, nil
	}
	return fmt.Sprintf("id%d", sess.UserID), nil
}

// mapAPIError converts the wire error object into the typed taxonomy
func (c *Client) mapAPIError(e *apiError) error {
	switch {
	case e.Code == 15 || strings.Contains(e.Message, scopesDeniedMessage):
		return fmt.Errorf("%s: %w", e.Message, ErrScopesDenied)
	case e.Code == 14:
		return &CaptchaError{SID: e.CaptchaSID, ImageURL: e.CaptchaImg}
	case e.Code == 17:
		return &ValidationError{RedirectURI: e.RedirectURI, Description: e.Message}
	case e.Code == 6:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: e.Message, Code: e.Code}
	case e.Code == 5:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: e.Message, Code: e.Code}
	default:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: e.Message, Code: e.Code}
	}
}
