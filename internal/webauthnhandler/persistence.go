package webauthnhandler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-webauthn/webauthn/webauthn"
)

// upsertUser stores the user and fills in its integer id.
func (h *WebAuthnHandler) upsertUser(ctx context.Context, u *user) error {
	stmt := `INSERT INTO users (webauthn_user_id, display_name)
VALUES (?, ?)
ON CONFLICT (webauthn_user_id) DO UPDATE SET display_name = excluded.display_name
RETURNING id`
	if err := h.database.ReadWrite.QueryRowContext(ctx, stmt, u.handle, u.displayName).Scan(&u.id); err != nil {
		return fmt.Errorf("db upsert user %s (handle: %s): %w", u.displayName, hex.EncodeToString(u.handle), err)
	}
	return nil
}

// getUser loads the user with the given WebAuthn handle and its credentials.
func (h *WebAuthnHandler) getUser(ctx context.Context, handle []byte) (_ *user, err error) {
	var u user
	stmt := `SELECT id, webauthn_user_id, display_name FROM users WHERE webauthn_user_id = ?`
	if err = h.database.ReadOnly.QueryRowContext(ctx, stmt, handle).Scan(&u.id, &u.handle,
		&u.displayName); err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}

	stmt = `SELECT id,
       public_key,
       attestation_type,
       transport,
       flag_user_present,
       flag_user_verified,
       flag_backup_eligible,
       flag_backup_state,
       authenticator_aaguid,
       authenticator_sign_count,
       authenticator_clone_warning,
       authenticator_attachment
FROM credentials
WHERE user_id = ?`
	rows, err := h.database.ReadOnly.QueryContext(ctx, stmt, u.id)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	for rows.Next() {
		var (
			credential webauthn.Credential
			transport  []byte
		)
		if err = rows.Scan(
			&credential.ID,
			&credential.PublicKey,
			&credential.AttestationType,
			&transport,
			&credential.Flags.UserPresent,
			&credential.Flags.UserVerified,
			&credential.Flags.BackupEligible,
			&credential.Flags.BackupState,
			&credential.Authenticator.AAGUID,
			&credential.Authenticator.SignCount,
			&credential.Authenticator.CloneWarning,
			&credential.Authenticator.Attachment,
		); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		if err = json.Unmarshal(transport, &credential.Transport); err != nil {
			return nil, fmt.Errorf("JSON decode transport: %w", err)
		}
		u.credentials = append(u.credentials, credential)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("check rows error: %w", err)
	}

	return &u, nil
}

func (h *WebAuthnHandler) upsertCredential(ctx context.Context, userID int, credential *webauthn.Credential) error {
	stmt := `INSERT INTO credentials (id,
                         user_id,
                         public_key,
                         attestation_type,
                         transport,
                         flag_user_present,
                         flag_user_verified,
                         flag_backup_eligible,
                         flag_backup_state,
                         authenticator_aaguid,
                         authenticator_sign_count,
                         authenticator_clone_warning,
                         authenticator_attachment)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET attestation_type            = EXCLUDED.attestation_type,
                               transport                   = EXCLUDED.transport,
                               flag_user_present           = EXCLUDED.flag_user_present,
                               flag_user_verified          = EXCLUDED.flag_user_verified,
                               flag_backup_eligible        = EXCLUDED.flag_backup_eligible,
                               flag_backup_state           = EXCLUDED.flag_backup_state,
                               authenticator_aaguid        = EXCLUDED.authenticator_aaguid,
                               authenticator_sign_count    = EXCLUDED.authenticator_sign_count,
                               authenticator_clone_warning = EXCLUDED.authenticator_clone_warning,
                               authenticator_attachment    = EXCLUDED.authenticator_attachment`
	encodedTransport, err := json.Marshal(credential.Transport)
	if err != nil {
		return fmt.Errorf("JSON encode transport: %w", err)
	}
	_, err = h.database.ReadWrite.ExecContext(
		ctx,
		stmt,
		credential.ID,
		userID,
		credential.PublicKey,
		credential.AttestationType,
		string(encodedTransport),
		credential.Flags.UserPresent,
		credential.Flags.UserVerified,
		credential.Flags.BackupEligible,
		credential.Flags.BackupState,
		credential.Authenticator.AAGUID,
		credential.Authenticator.SignCount,
		credential.Authenticator.CloneWarning,
		credential.Authenticator.Attachment,
	)
	if err != nil {
		return fmt.Errorf("db upsert credential (user_id: %d, credential_id: %s): %w",
			userID,
			hex.EncodeToString(credential.ID),
			err)
	}
	return nil
}

// userIDForHandle returns the integer id of the user. The error wraps sql.ErrNoRows if the user does not exist.
func (h *WebAuthnHandler) userIDForHandle(ctx context.Context, handle []byte) (int, error) {
	var id int
	stmt := `SELECT id FROM users WHERE webauthn_user_id = ?`
	if err := h.database.ReadOnly.QueryRowContext(ctx, stmt, handle).Scan(&id); err != nil {
		return 0, fmt.Errorf("query user id: %w", err)
	}
	return id, nil
}
