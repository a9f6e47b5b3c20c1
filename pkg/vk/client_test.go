package vk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(5776857, "5.131", "com.vk.windows_app/20302", 5*time.Second, logger.NewTestLogger())
	client.SetBaseURLs(server.URL, server.URL)
	return client, server
}

func TestAuthorizePasswordSuccess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("grant_type") != "password" {
			t.Errorf("expected grant_type=password, got %q", q.Get("grant_type"))
		}
		if q.Get("2fa_supported") != "1" {
			t.Error("expected 2fa_supported=1")
		}
		if q.Get("username") != "user@example.com" || q.Get("password") != "hunter2" {
			t.Errorf("unexpected credentials in grant: %v", q)
		}
		if ua := r.Header.Get("User-Agent"); ua != "com.vk.windows_app/20302" {
			t.Errorf("unexpected user agent %q", ua)
		}
		fmt.Fprint(w, `{"access_token":"vk1.a.fresh","user_id":42,"expires_in":0}`)
	})

	sess, err := client.Authorize(context.Background(), AuthParams{Login: "user@example.com", Password: "hunter2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AccessToken != "vk1.a.fresh" || sess.UserID != 42 {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestAuthorizeTwoFactorFlow(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"need_validation","validation_type":"2fa_sms","phone_mask":"+7 *** *** ** 42"}`)
			return
		}
		if code := r.URL.Query().Get("code"); code != "123456" {
			t.Errorf("expected code=123456 on the retry, got %q", code)
		}
		fmt.Fprint(w, `{"access_token":"vk1.a.fresh","user_id":42}`)
	})

	sess, err := client.Authorize(context.Background(), AuthParams{
		Login:         "user@example.com",
		Password:      "hunter2",
		TwoFactorCode: func() (string, error) { return "123456", nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("expected user id 42, got %d", sess.UserID)
	}
	if requests != 2 {
		t.Errorf("expected 2 requests, got %d", requests)
	}
}

func TestAuthorizeLinkValidationReturnsTypedError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"need_validation","error_description":"please open redirect_uri","redirect_uri":"https://m.vk.com/login?act=security_check"}`)
	})

	_, err := client.Authorize(context.Background(), AuthParams{Login: "u", Password: "p"})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if vErr.RedirectURI != "https://m.vk.com/login?act=security_check" {
		t.Errorf("unexpected redirect uri %q", vErr.RedirectURI)
	}
}

func TestAuthorizeCaptchaSolvedOnce(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, `{"error":"need_captcha","captcha_sid":"sid-1","captcha_img":"https://vk.com/captcha?sid=1"}`)
			return
		}
		q := r.URL.Query()
		if q.Get("captcha_sid") != "sid-1" || q.Get("captcha_key") != "xw2ab" {
			t.Errorf("expected captcha answer on retry, got %v", q)
		}
		fmt.Fprint(w, `{"access_token":"vk1.a.fresh","user_id":42}`)
	})

	sess, err := client.Authorize(context.Background(), AuthParams{
		Login:    "u",
		Password: "p",
		CaptchaSolver: func(imageURL string) (string, error) {
			if imageURL != "https://vk.com/captcha?sid=1" {
				t.Errorf("unexpected captcha image %q", imageURL)
			}
			return "xw2ab", nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AccessToken != "vk1.a.fresh" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestAuthorizeCaptchaSingleAttempt(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"need_captcha","captcha_sid":"sid-1","captcha_img":"https://vk.com/captcha?sid=1"}`)
	})

	_, err := client.Authorize(context.Background(), AuthParams{
		Login:         "u",
		Password:      "p",
		CaptchaSolver: func(string) (string, error) { return "wrong", nil },
	})
	if !errors.Is(err, ErrCaptchaFailed) {
		t.Fatalf("expected ErrCaptchaFailed after one rejected answer, got %v", err)
	}
}

func TestAuthorizeCaptchaWithoutSolver(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"need_captcha","captcha_sid":"sid-1","captcha_img":"https://vk.com/captcha?sid=1"}`)
	})

	_, err := client.Authorize(context.Background(), AuthParams{Login: "u", Password: "p"})

	var cErr *CaptchaError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected *CaptchaError, got %v", err)
	}
	if cErr.SID != "sid-1" {
		t.Errorf("unexpected sid %q", cErr.SID)
	}
}

func TestAuthorizeScopesDenied(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"access_denied","error_description":"no access to call this method"}`)
	})

	_, err := client.Authorize(context.Background(), AuthParams{Login: "u", Password: "p"})
	if !IsScopesDenied(err) {
		t.Fatalf("expected scopes denial, got %v", err)
	}
}

func TestAuthorizeInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"invalid_client","error_description":"Username or password is incorrect"}`)
	})

	_, err := client.Authorize(context.Background(), AuthParams{Login: "u", Password: "p"})

	var aErr *AuthFailedError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected *AuthFailedError, got %v", err)
	}
	if aErr.Reason != "invalid_client" {
		t.Errorf("unexpected reason %q", aErr.Reason)
	}
}

func TestAuthorizeWithTokenValidates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/method/users.get" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if token := r.URL.Query().Get("access_token"); token != "vk1.a.cached" {
			t.Errorf("unexpected token %q", token)
		}
		fmt.Fprint(w, `{"response":[{"id":42,"first_name":"Test"}]}`)
	})

	sess, err := client.Authorize(context.Background(), AuthParams{AccessToken: "vk1.a.cached"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("expected user id backfilled from users.get, got %d", sess.UserID)
	}
}

func TestAuthorizeWithoutCredentials(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made")
	})

	_, err := client.Authorize(context.Background(), AuthParams{})
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestListMediaMapsRecords(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/method/audio.get" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("owner_id") != "42" {
			t.Errorf("expected owner_id=42, got %q", q.Get("owner_id"))
		}
		if q.Get("count") != "6000" {
			t.Errorf("expected default count 6000, got %q", q.Get("count"))
		}
		fmt.Fprint(w, `{"response":{"count":3,"items":[
			{"id":1,"owner_id":42,"artist":"Artist A","title":"Song One","duration":181,"url":"https://cs1.vk.me/audio1.mp3?extra=1","album":{"title":"Album","thumb":{"photo_300":"https://img/300.jpg","photo_600":"https://img/600.jpg"}}},
			{"id":2,"owner_id":42,"artist":"Artist B","title":"Song Two","duration":95,"url":"https://cs1.vk.me/index.m3u8?extra=2"},
			{"id":3,"owner_id":42,"artist":"Artist C","title":"Unavailable","duration":60,"url":""}
		]}}`)
	})

	records, err := client.ListMedia(context.Background(), &Session{AccessToken: "tok", UserID: 42}, 42, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	first := records[0]
	if first.Artist != "Artist A" || first.Title != "Song One" || first.DurationSeconds != 181 {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.Album != "Album" {
		t.Errorf("expected album title mapped, got %q", first.Album)
	}
	if first.AlbumArtURL != "https://img/600.jpg" {
		t.Errorf("expected the largest thumb, got %q", first.AlbumArtURL)
	}
	if records[2].URL != "" {
		t.Error("expected the unavailable record to keep its empty URL")
	}
}

func TestListMediaScopesDenied(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"error_code":15,"error_msg":"Access denied: no access to call this method"}}`)
	})

	_, err := client.ListMedia(context.Background(), &Session{AccessToken: "tok"}, 42, 0, 0)
	if !IsScopesDenied(err) {
		t.Fatalf("expected scopes denial, got %v", err)
	}
}

func TestListMediaRateLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"error_code":6,"error_msg":"Too many requests per second"}}`)
	})

	_, err := client.ListMedia(context.Background(), &Session{AccessToken: "tok"}, 42, 0, 0)
	var typed *errs.Error
	if !errors.As(err, &typed) || typed.Type != errs.ErrorTypeRateLimit {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestProfileScreenName(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/method/account.getProfileInfo" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"response":{"id":42,"screen_name":"durov"}}`)
	})

	name, err := client.ProfileScreenName(context.Background(), &Session{AccessToken: "tok", UserID: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "durov" {
		t.Errorf("expected durov, got %q", name)
	}
}

func TestProfileScreenNameFallsBackToNumericID(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"response":{"id":42}}`)
	})

	name, err := client.ProfileScreenName(context.Background(), &Session{AccessToken: "tok", UserID: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "id42" {
		t.Errorf("expected id42, got %q", name)
	}
}
