// Package webauthnhandler signs users in with passkeys and resolves who owns the data a request touches.
package webauthnhandler

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/sqlite"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

var registerGob sync.Once //nolint:gochecknoglobals // gob registration must happen once per process.

// ErrCeremony is returned when a registration or login ceremony cannot be verified, for example because it was
// never started in this session or the authenticator response does not match the challenge.
var ErrCeremony = errors.New("passkey ceremony failed")

// Config configures the relying party.
type Config struct {
	// Addr is the listen address, used as the origin when FQDN is localhost.
	Addr string
	// FQDN is the relying party id. Origins are https://FQDN.
	FQDN        string
	DisplayName string
	// CeremonyTimeout bounds how long a started registration or login stays valid.
	CeremonyTimeout time.Duration
}

type WebAuthnHandler struct {
	logger         *slog.Logger
	webAuthn       *webauthn.WebAuthn
	sessionManager *scs.SessionManager
	database       *sqlite.Database
}

func New(
	cfg Config,
	logger *slog.Logger,
	sessionManager *scs.SessionManager,
	dbs *sqlite.Database,
) (*WebAuthnHandler, error) {
	// See https://github.com/alexedwards/scs?tab=readme-ov-file#working-with-session-data.
	registerGob.Do(func() {
		gob.Register(webauthn.SessionData{}) //nolint:exhaustruct // only need to register the struct.
	})

	webAuthn, err := webauthn.New(relyingParty(cfg))
	if err != nil {
		return nil, fmt.Errorf("new webauthn: %w", err)
	}

	return &WebAuthnHandler{
		logger:         logger,
		webAuthn:       webAuthn,
		sessionManager: sessionManager,
		database:       dbs,
	}, nil
}

// relyingParty only accepts discoverable platform passkeys without attestation.
func relyingParty(cfg Config) *webauthn.Config {
	origins := []string{"https://" + cfg.FQDN}
	if cfg.FQDN == "localhost" {
		//goland:noinspection HttpUrlsUsage // This is a local server.
		origins = []string{"http://" + cfg.Addr}
	}
	ceremony := webauthn.TimeoutConfig{
		Enforce:    true,
		Timeout:    cfg.CeremonyTimeout,
		TimeoutUVD: cfg.CeremonyTimeout,
	}
	return &webauthn.Config{
		RPID:                        cfg.FQDN,
		RPDisplayName:               cfg.DisplayName,
		RPOrigins:                   origins,
		RPTopOrigins:                nil,
		RPTopOriginVerificationMode: protocol.TopOriginIgnoreVerificationMode,
		AttestationPreference:       protocol.PreferNoAttestation,
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			AuthenticatorAttachment: protocol.Platform,
			RequireResidentKey:      ptr.Ref(true),
			ResidentKey:             protocol.ResidentKeyRequirementRequired,
			UserVerification:        protocol.VerificationDiscouraged,
		},
		Debug:                false,
		EncodeUserIDAsString: false,
		Timeouts:             webauthn.TimeoutsConfig{Login: ceremony, Registration: ceremony},
		MDS:                  nil,
	}
}

// BeginRegistration creates a user with a fresh handle and returns the JSON encoded credential creation options.
func (h *WebAuthnHandler) BeginRegistration(ctx context.Context) ([]byte, error) {
	u, err := newRandomUser()
	if err != nil {
		return nil, fmt.Errorf("new user: %w", err)
	}

	authSelect := protocol.AuthenticatorSelection{
		AuthenticatorAttachment: protocol.Platform,
		RequireResidentKey:      protocol.ResidentKeyNotRequired(),
		ResidentKey:             protocol.ResidentKeyRequirementRequired,
		UserVerification:        protocol.VerificationDiscouraged,
	}

	opts, session, err := h.webAuthn.BeginRegistration(
		u,
		webauthn.WithAuthenticatorSelection(authSelect),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired))
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)
	if err = h.upsertUser(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	var out []byte
	if out, err = json.Marshal(opts); err != nil {
		return nil, fmt.Errorf("JSON encode: %w", err)
	}
	return out, nil
}

// ceremony returns the ceremony started in this session. A ceremony can be finished only once.
func (h *WebAuthnHandler) ceremony(ctx context.Context) (webauthn.SessionData, error) {
	session, ok := h.sessionManager.Pop(ctx, string(webAuthnSessionKey)).(webauthn.SessionData)
	if !ok {
		return session, fmt.Errorf("%w: no ceremony in progress", ErrCeremony)
	}
	return session, nil
}

// FinishRegistration stores the new credential and signs the user in.
func (h *WebAuthnHandler) FinishRegistration(r *http.Request) error {
	var (
		err     error
		session webauthn.SessionData
		ctx     = r.Context()
	)

	if session, err = h.ceremony(ctx); err != nil {
		return err
	}

	var u *user
	if u, err = h.getUser(ctx, session.UserID); err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	var credential *webauthn.Credential
	if credential, err = h.webAuthn.FinishRegistration(u, session, r); err != nil {
		return fmt.Errorf("%w: finish registration: %w", ErrCeremony, err)
	}

	if err = h.upsertCredential(ctx, u.id, credential); err != nil {
		return fmt.Errorf("upsert webauthn credential: %w", err)
	}

	return h.signIn(ctx, u)
}

// BeginLogin returns the JSON encoded assertion options of a discoverable login.
func (h *WebAuthnHandler) BeginLogin(ctx context.Context) ([]byte, error) {
	options, session, err := h.webAuthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("begin discoverable webauthn login: %w", err)
	}

	h.sessionManager.Put(ctx, string(webAuthnSessionKey), *session)

	var out []byte
	if out, err = json.Marshal(options); err != nil {
		return nil, fmt.Errorf("json marshal webauthn options: %w", err)
	}
	return out, nil
}

func (h *WebAuthnHandler) findUserHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(_, userHandle []byte) (webauthn.User, error) {
		u, err := h.getUser(ctx, userHandle)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
}

// FinishLogin validates the passkey assertion and signs the user in.
func (h *WebAuthnHandler) FinishLogin(r *http.Request) error {
	var (
		session webauthn.SessionData
		err     error
		ctx     = r.Context()
	)
	if session, err = h.ceremony(ctx); err != nil {
		return err
	}

	parsedResponse, err := protocol.ParseCredentialRequestResponse(r)
	if err != nil {
		return fmt.Errorf("%w: parse credential request response: %w", ErrCeremony, err)
	}
	validated, credential, err := h.webAuthn.ValidatePasskeyLogin(h.findUserHandler(ctx), session, parsedResponse)
	if err != nil {
		return fmt.Errorf("%w: validate passkey login: %w", ErrCeremony, err)
	}
	u, ok := validated.(*user)
	if !ok {
		return errors.New("unexpected webauthn user type")
	}

	if err = h.upsertCredential(ctx, u.id, credential); err != nil {
		return fmt.Errorf("upsert webauthn credential: %w", err)
	}

	return h.signIn(ctx, u)
}

// signIn renews the session token and binds the user to it. The anonymous key survives the renewal so that
// sessions started before signing in stay reachable.
func (h *WebAuthnHandler) signIn(ctx context.Context, u *user) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	h.sessionManager.Put(ctx, string(userIDSessionKey), u.handle)
	h.logger.LogAttrs(ctx, slog.LevelInfo, "user signed in", slog.Int("user_id", u.id))
	return nil
}

// Logout forgets the signed-in user. The anonymous key stays.
func (h *WebAuthnHandler) Logout(ctx context.Context) error {
	if err := h.sessionManager.RenewToken(ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	h.sessionManager.Remove(ctx, string(userIDSessionKey))
	return nil
}
