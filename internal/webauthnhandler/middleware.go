package webauthnhandler

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/camziny/z-fit-2.0/internal/contexthelpers"
	"github.com/camziny/z-fit-2.0/internal/logging"
	"github.com/google/uuid"
)

// AuthenticateMiddleware resolves the owner of the request. Signed-in users get their integer id in the context.
// Every visitor also gets an anonymous key, minted on the first request and kept in the cookie session.
//
// Must run inside sessionManager.LoadAndSave.
func (h *WebAuthnHandler) AuthenticateMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		anonKey := h.sessionManager.GetString(ctx, string(anonKeySessionKey))
		if anonKey == "" {
			anonKey = uuid.NewString()
			h.sessionManager.Put(ctx, string(anonKeySessionKey), anonKey)
		}
		r = contexthelpers.SetAnonKey(r, anonKey)

		ownerKind := "anonymous"
		userID := 0
		if handle := h.sessionManager.GetBytes(ctx, string(userIDSessionKey)); handle != nil {
			id, err := h.userIDForHandle(ctx, handle)
			switch {
			case errors.Is(err, sql.ErrNoRows): // Do not authenticate if user does not exist.
			case err != nil:
				h.logger.LogAttrs(ctx, slog.LevelError, "unable to fetch user", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			default:
				userID = id
				ownerKind = "user"
				r = contexthelpers.AuthenticateContext(r, userID)
			}
		}

		// Hash token with sha256 to avoid leaking it in logs.
		tokenHash := sha256.Sum256([]byte(h.sessionManager.Token(ctx)))
		ctx = logging.WithAttrs(r.Context(),
			slog.String("session_hash", hex.EncodeToString(tokenHash[:])),
			slog.String("owner_kind", ownerKind),
			slog.Int("user_id", userID),
		)
		r = r.WithContext(ctx)

		next.ServeHTTP(w, r)
	})
}
