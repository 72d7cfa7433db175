package webauthnhandler

import (
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

type sessionKey string

const (
	webAuthnSessionKey sessionKey = "webauthn_session"
	userIDSessionKey   sessionKey = "webauthn_user_id"
	anonKeySessionKey  sessionKey = "anon_key"
)

// user is a passkey holder. id is the integer primary key used for ownership, handle the opaque WebAuthn user
// handle stored on the authenticator.
type user struct {
	id          int
	handle      []byte
	displayName string
	credentials []webauthn.Credential
}

func (u *user) WebAuthnID() []byte {
	return u.handle
}

func (u *user) WebAuthnName() string {
	return u.displayName
}

func (u *user) WebAuthnDisplayName() string {
	return u.displayName
}

func (u *user) WebAuthnCredentials() []webauthn.Credential {
	return u.credentials
}

func newRandomUser() (*user, error) {
	handle, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("generate user handle: %w", err)
	}
	return &user{
		id:          0,
		handle:      handle[:],
		displayName: "Lifter " + handle.String()[:8],
		credentials: nil,
	}, nil
}
