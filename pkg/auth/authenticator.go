package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
	"vkmusic/pkg/vk"
)

const (
	maxValidationAttempts = 3
	maxManualAttempts     = 3
)

// Terminal failure sentinels of the authentication flow
var (
	// ErrValidationExhausted marks three consecutive validation challenges;
	// the flow escalates to manual token entry before this surfaces
	ErrValidationExhausted = errors.New("validation challenge not cleared after repeated attempts")

	// ErrManualAuthExhausted marks a manual token entry that failed on
	// every allowed attempt
	ErrManualAuthExhausted = errors.New("manual authorization failed after all attempts")

	// ErrAborted marks an operator-chosen stop; the process exits cleanly
	ErrAborted = errors.New("authorization aborted by operator")
)

// Authorizer is the slice of the remote API the state machine needs
type Authorizer interface {
	Authorize(ctx context.Context, p vk.AuthParams) (*vk.Session, error)
}

// Authenticator drives the authorization state machine: cached or password
// login, bounded validation retries, and the manual token entry fallback.
// It owns the credential cache; nothing else writes it.
type Authenticator struct {
	api       Authorizer
	store     *FileStore
	prompter  Prompter
	logger    logger.Logger
	manualURL string
}

// New creates an Authenticator
func New(api Authorizer, store *FileStore, prompter Prompter, manualURL string, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Authenticator{
		api:       api,
		store:     store,
		prompter:  prompter,
		logger:    log,
		manualURL: manualURL,
	}
}

// Store returns the credential cache this authenticator owns
func (a *Authenticator) Store() *FileStore {
	return a.store
}

// LoginWithCache restores a session from the credential cache. A two-field
// cache delegates to the password flow; a four-field cache attempts direct
// token authorization and propagates any failure unchanged, on the assumption
// that a cached token is either valid or the user must re-run with a fresh
// login.
func (a *Authenticator) LoginWithCache(ctx context.Context) (*vk.Session, error) {
	a.logger.Info("reading credentials from authorization cache")

	creds, err := a.store.Read()
	if err != nil {
		return nil, err
	}

	if creds.HasToken() {
		sess, err := a.api.Authorize(ctx, vk.AuthParams{
			AccessToken: creds.Token,
			UserID:      creds.UserID,
		})
		if err != nil {
			return nil, err
		}
		a.logger.InfoWithFields("authorized from cached token", map[string]interface{}{
			"user_id": sess.UserID,
		})
		return sess, nil
	}

	return a.LoginWithPassword(ctx, creds.Login, creds.Password)
}

// LoginWithPassword authorizes with explicit credentials, working through
// any challenges the remote side raises. On success the credential pair is
// persisted for future runs.
func (a *Authenticator) LoginWithPassword(ctx context.Context, login, password string) (*vk.Session, error) {
	if login == "" || password == "" {
		return nil, errs.New(errs.ErrorTypeConfiguration, "login and password must both be set")
	}

	sess, err := a.api.Authorize(ctx, a.passwordParams(login, password))
	if err == nil {
		if werr := a.store.Write(&Credentials{Login: login, Password: password}); werr != nil {
			return nil, werr
		}
		a.logger.InfoWithFields("authorized with password", map[string]interface{}{
			"user_id": sess.UserID,
		})
		return sess, nil
	}

	var vErr *vk.ValidationError
	if errors.As(err, &vErr) {
		return a.resolveValidation(ctx, login, password, vErr)
	}

	return nil, a.classify(err)
}

// passwordParams wires the interactive challenge callbacks into the
// authorize call so two-factor and captcha are answered in-flight
func (a *Authenticator) passwordParams(login, password string) vk.AuthParams {
	return vk.AuthParams{
		Login:    login,
		Password: password,
		TwoFactorCode: func() (string, error) {
			return a.prompter.ReadLine("Enter 2FA code: ")
		},
		CaptchaSolver: func(imageURL string) (string, error) {
			a.logger.WarnWithFields("captcha required", map[string]interface{}{
				"image_url": imageURL,
			})
			return a.prompter.ReadLine(fmt.Sprintf("Please enter captcha from %s: ", imageURL))
		},
	}
}

// resolveValidation retries authorization after the operator confirms the
// login attempt in a browser, up to maxValidationAttempts times, then
// escalates to manual token entry.
func (a *Authenticator) resolveValidation(ctx context.Context, login, password string, vErr *vk.ValidationError) (*vk.Session, error) {
	for attempt := 1; attempt <= maxValidationAttempts; attempt++ {
		a.logger.WarnWithFields("validation required", map[string]interface{}{
			"attempt":      attempt,
			"redirect_uri": vErr.RedirectURI,
		})

		if vErr.RedirectURI == "" {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "validation required but no redirect link provided", vErr)
		}

		fmt.Printf("Open this link to confirm the login attempt:\n%s\n", vErr.RedirectURI)
		if err := a.prompter.AwaitAck("After passing validation press Enter..."); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "validation acknowledgement failed", err)
		}

		sess, err := a.api.Authorize(ctx, a.passwordParams(login, password))
		if err == nil {
			if werr := a.store.Write(&Credentials{Login: login, Password: password}); werr != nil {
				return nil, werr
			}
			a.logger.InfoWithFields("authorized after validation", map[string]interface{}{
				"user_id": sess.UserID,
			})
			return sess, nil
		}

		var next *vk.ValidationError
		if errors.As(err, &next) {
			vErr = next
			continue
		}
		return nil, a.classify(err)
	}

	a.logger.WithError(ErrValidationExhausted).Warn("escalating to manual token entry")
	return a.manualTokenEntry(ctx, login, password)
}

// manualTokenEntry is the fallback flow: the operator completes authorization
// in a browser and pastes back the redirect fragment. Bounded to
// maxManualAttempts, except that a scopes denial offers a full restart with
// the counter reset.
func (a *Authenticator) manualTokenEntry(ctx context.Context, login, password string) (*vk.Session, error) {
	attempts := 0
	for attempts < maxManualAttempts {
		fmt.Println("\nVK requires manual validation. Open the following link in a browser:")
		fmt.Println(a.manualURL)
		fmt.Println("\nAuthorize, then copy the address bar contents (after #access_token=...) and paste them here.")

		input, err := a.prompter.ReadLine("access_token: ")
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeAuth, "token entry failed", err)
		}
		if input == "" {
			a.logger.Error("no token entered, try again")
			attempts++
			continue
		}

		token := ExtractToken(input)
		userID := ExtractUserID(input)
		if userID == 0 {
			answer, err := a.prompter.ReadLine("user_id (from the same address): ")
			if err != nil {
				return nil, errs.Wrap(errs.ErrorTypeAuth, "user id entry failed", err)
			}
			userID, _ = strconv.ParseInt(answer, 10, 64)
		}
		if userID == 0 {
			a.logger.Error("user_id missing or invalid, try again")
			attempts++
			continue
		}

		sess, err := a.api.Authorize(ctx, vk.AuthParams{AccessToken: token, UserID: userID})
		if err == nil {
			// The original login/password ride along as reference fields;
			// authorization from this record uses only the token pair.
			if werr := a.store.Write(&Credentials{
				Login:    login,
				Password: password,
				Token:    token,
				UserID:   userID,
			}); werr != nil {
				return nil, werr
			}
			a.logger.InfoWithFields("authorized with manual token", map[string]interface{}{
				"user_id": userID,
			})
			return sess, nil
		}

		if vk.IsScopesDenied(err) {
			a.logger.WithError(err).Error("token does not grant the required scopes")
			restart, cerr := a.prompter.Confirm("Some permissions were not granted during authorization. Try authorizing again?")
			if cerr != nil {
				return nil, errs.Wrap(errs.ErrorTypeAuth, "restart prompt failed", cerr)
			}
			if restart {
				attempts = 0
				continue
			}
			return nil, ErrAborted
		}

		a.logger.WithError(err).Error("authorization with entered token failed")
		attempts++
	}

	return nil, errs.Wrap(errs.ErrorTypeAuth,
		fmt.Sprintf("manual authorization failed after %d attempts", maxManualAttempts),
		ErrManualAuthExhausted)
}

// classify maps remote challenge errors onto the local failure taxonomy
func (a *Authenticator) classify(err error) error {
	switch {
	case errors.Is(err, vk.ErrCaptchaFailed):
		return errs.Wrap(errs.ErrorTypeAuth, "captcha was not solved", err)
	case vk.IsScopesDenied(err):
		return err
	default:
		return err
	}
}
