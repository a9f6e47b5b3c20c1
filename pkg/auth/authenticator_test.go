package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"vkmusic/pkg/logger"
	"vkmusic/pkg/vk"
)

// fakeAPI scripts Authorize responses and records every call
type fakeAPI struct {
	calls  []vk.AuthParams
	script []func(p vk.AuthParams) (*vk.Session, error)
}

func (f *fakeAPI) Authorize(ctx context.Context, p vk.AuthParams) (*vk.Session, error) {
	f.calls = append(f.calls, p)
	if len(f.script) == 0 {
		return nil, errors.New("unexpected Authorize call")
	}
	step := f.script[0]
	f.script = f.script[1:]
	return step(p)
}

func succeed(sess *vk.Session) func(vk.AuthParams) (*vk.Session, error) {
	return func(vk.AuthParams) (*vk.Session, error) { return sess, nil }
}

func fail(err error) func(vk.AuthParams) (*vk.Session, error) {
	return func(vk.AuthParams) (*vk.Session, error) { return nil, err }
}

// scriptedPrompter feeds canned answers to the flow
type scriptedPrompter struct {
	lines    []string
	secrets  []string
	confirms []bool
	acks     int
}

func (p *scriptedPrompter) ReadLine(prompt string) (string, error) {
	if len(p.lines) == 0 {
		return "", errors.New("no scripted line left")
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptedPrompter) ReadSecret(prompt string) (string, error) {
	if len(p.secrets) == 0 {
		return "", errors.New("no scripted secret left")
	}
	secret := p.secrets[0]
	p.secrets = p.secrets[1:]
	return secret, nil
}

func (p *scriptedPrompter) Confirm(prompt string) (bool, error) {
	if len(p.confirms) == 0 {
		return false, errors.New("no scripted confirm left")
	}
	answer := p.confirms[0]
	p.confirms = p.confirms[1:]
	return answer, nil
}

func (p *scriptedPrompter) AwaitAck(prompt string) error {
	p.acks++
	return nil
}

func newTestAuthenticator(t *testing.T, api *fakeAPI, prompter Prompter, cacheContent string) (*Authenticator, *FileStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".authorization")
	if cacheContent != "" {
		if err := os.WriteFile(path, []byte(cacheContent), 0600); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}
	}
	store := NewFileStore(path)
	if prompter == nil {
		prompter = &scriptedPrompter{}
	}
	return New(api, store, prompter, "https://oauth.vk.com/authorize?...", logger.NewTestLogger()), store
}

func TestLoginWithCacheTokenRecord(t *testing.T) {
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		succeed(&vk.Session{AccessToken: "vk1.a.token", UserID: 42}),
	}}
	authn, _ := newTestAuthenticator(t, api, nil, "user@example.com\nhunter2\nvk1.a.token\n42\n")

	sess, err := authn.LoginWithCache(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("expected user id 42, got %d", sess.UserID)
	}

	if len(api.calls) != 1 {
		t.Fatalf("expected 1 authorize call, got %d", len(api.calls))
	}
	call := api.calls[0]
	if call.AccessToken != "vk1.a.token" || call.UserID != 42 {
		t.Errorf("expected token authorization, got %+v", call)
	}
	if call.Login != "" || call.Password != "" {
		t.Error("token record must not fall back to password authorization")
	}
}

func TestLoginWithCacheTokenFailurePropagates(t *testing.T) {
	authErr := errors.New("token rejected")
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){fail(authErr)}}
	authn, _ := newTestAuthenticator(t, api, nil, "user@example.com\nhunter2\nvk1.a.token\n42\n")

	_, err := authn.LoginWithCache(context.Background())
	if !errors.Is(err, authErr) {
		t.Fatalf("expected token failure to propagate unchanged, got %v", err)
	}
	if len(api.calls) != 1 {
		t.Errorf("expected no fallback attempts, got %d calls", len(api.calls))
	}
}

func TestLoginWithCachePasswordRecordDelegates(t *testing.T) {
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		succeed(&vk.Session{AccessToken: "fresh", UserID: 7}),
	}}
	authn, _ := newTestAuthenticator(t, api, nil, "user@example.com\nhunter2\n")

	sess, err := authn.LoginWithCache(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 7 {
		t.Errorf("expected user id 7, got %d", sess.UserID)
	}

	call := api.calls[0]
	if call.Login != "user@example.com" || call.Password != "hunter2" {
		t.Errorf("expected password authorization, got %+v", call)
	}
}

func TestLoginWithCacheMalformedNeverCallsAPI(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"missing file", "", ErrCacheMissing},
		{"one field", "user@example.com\n", ErrCacheCorrupt},
		{"three fields", "user\npass\ntoken\n", ErrCacheCorrupt},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			api := &fakeAPI{}
			authn, _ := newTestAuthenticator(t, api, nil, test.content)

			_, err := authn.LoginWithCache(context.Background())
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if len(api.calls) != 0 {
				t.Errorf("expected no network activity, got %d calls", len(api.calls))
			}
		})
	}
}

func TestLoginWithPasswordPersistsPair(t *testing.T) {
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		succeed(&vk.Session{AccessToken: "fresh", UserID: 7}),
	}}
	authn, store := newTestAuthenticator(t, api, nil, "")

	_, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if string(data) != "user@example.com\nhunter2\n" {
		t.Errorf("unexpected cache content: %q", string(data))
	}
}

func TestLoginWithPasswordWiresTwoFactorCallback(t *testing.T) {
	prompter := &scriptedPrompter{lines: []string{"123456"}}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		func(p vk.AuthParams) (*vk.Session, error) {
			code, err := p.TwoFactorCode()
			if err != nil {
				return nil, err
			}
			if code != "123456" {
				return nil, errors.New("wrong code")
			}
			return &vk.Session{AccessToken: "fresh", UserID: 7}, nil
		},
	}}
	authn, _ := newTestAuthenticator(t, api, prompter, "")

	_, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationRetriesThenSucceeds(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	prompter := &scriptedPrompter{}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr),
		fail(vErr),
		succeed(&vk.Session{AccessToken: "fresh", UserID: 7}),
	}}
	authn, store := newTestAuthenticator(t, api, prompter, "")

	sess, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 7 {
		t.Errorf("expected user id 7, got %d", sess.UserID)
	}
	if prompter.acks != 2 {
		t.Errorf("expected 2 validation acknowledgements, got %d", prompter.acks)
	}

	data, _ := os.ReadFile(store.Path())
	if string(data) != "user@example.com\nhunter2\n" {
		t.Errorf("unexpected cache content: %q", string(data))
	}
}

func TestValidationExhaustionEscalatesToManualEntry(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	prompter := &scriptedPrompter{
		lines: []string{"access_token=vk1.a.manual&user_id=42"},
	}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr), // initial password attempt
		fail(vErr), // validation attempt 1
		fail(vErr), // validation attempt 2
		fail(vErr), // validation attempt 3
		succeed(&vk.Session{AccessToken: "vk1.a.manual", UserID: 42}),
	}}
	authn, store := newTestAuthenticator(t, api, prompter, "")

	sess, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("expected user id 42, got %d", sess.UserID)
	}

	// Manual success persists the full four-field record
	data, _ := os.ReadFile(store.Path())
	expected := "user@example.com\nhunter2\nvk1.a.manual\n42\n"
	if string(data) != expected {
		t.Errorf("expected cache %q, got %q", expected, string(data))
	}

	last := api.calls[len(api.calls)-1]
	if last.AccessToken != "vk1.a.manual" || last.UserID != 42 {
		t.Errorf("expected manual token authorization, got %+v", last)
	}
}

func TestManualEntryPromptsForMissingUserID(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	prompter := &scriptedPrompter{
		lines: []string{"vk1.a.manual", "42"},
	}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vErr),
		succeed(&vk.Session{AccessToken: "vk1.a.manual", UserID: 42}),
	}}
	authn, _ := newTestAuthenticator(t, api, prompter, "")

	sess, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("expected user id 42, got %d", sess.UserID)
	}
}

func TestManualEntryScopesDeniedAbort(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	prompter := &scriptedPrompter{
		lines:    []string{"access_token=vk1.a.partial&user_id=42"},
		confirms: []bool{false},
	}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vk.ErrScopesDenied),
	}}
	authn, store := newTestAuthenticator(t, api, prompter, "")

	_, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}
	if store.Exists() {
		t.Error("aborted flow must not create the cache file")
	}
}

func TestManualEntryScopesDeniedRestartResetsCounter(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	prompter := &scriptedPrompter{
		lines: []string{
			"access_token=vk1.a.partial&user_id=42",
			"access_token=vk1.a.full&user_id=42",
		},
		confirms: []bool{true},
	}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vk.ErrScopesDenied),
		succeed(&vk.Session{AccessToken: "vk1.a.full", UserID: 42}),
	}}
	authn, _ := newTestAuthenticator(t, api, prompter, "")

	sess, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AccessToken != "vk1.a.full" {
		t.Errorf("expected the second token to win, got %q", sess.AccessToken)
	}
}

func TestManualEntryExhaustsAttempts(t *testing.T) {
	vErr := &vk.ValidationError{RedirectURI: "https://vk.com/validate"}
	badToken := errors.New("invalid token")
	prompter := &scriptedPrompter{
		lines: []string{
			"access_token=bad1&user_id=42",
			"access_token=bad2&user_id=42",
			"access_token=bad3&user_id=42",
		},
	}
	api := &fakeAPI{script: []func(vk.AuthParams) (*vk.Session, error){
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(vErr),
		fail(badToken),
		fail(badToken),
		fail(badToken),
	}}
	authn, _ := newTestAuthenticator(t, api, prompter, "")

	_, err := authn.LoginWithPassword(context.Background(), "user@example.com", "hunter2")
	if !errors.Is(err, ErrManualAuthExhausted) {
		t.Fatalf("expected ErrManualAuthExhausted, got %v", err)
	}
}
