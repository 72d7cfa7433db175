package main

import (
	"log/slog"
	"net/http"

	"github.com/camziny/z-fit-2.0/internal/errors"
	"github.com/camziny/z-fit-2.0/internal/webauthnhandler"
)

type statusResponse struct {
	Status string `json:"status"`
}

func (app *application) writeRawJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ceremonyError answers a failed passkey ceremony with 400 and anything else as a server error.
func (app *application) ceremonyError(w http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, webauthnhandler.ErrCeremony) {
		app.serverError(w, r, err)
		return
	}
	app.logger.LogAttrs(r.Context(), slog.LevelWarn, "passkey ceremony rejected", slog.Any("error", err))
	app.writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "passkey verification failed"})
}

func (app *application) beginRegistration(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginRegistration(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeRawJSON(w, out)
}

func (app *application) finishRegistration(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishRegistration(r); err != nil {
		app.ceremonyError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusResponse{Status: "registered"})
}

func (app *application) beginLogin(w http.ResponseWriter, r *http.Request) {
	out, err := app.webAuthnHandler.BeginLogin(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeRawJSON(w, out)
}

func (app *application) finishLogin(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.FinishLogin(r); err != nil {
		app.ceremonyError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusResponse{Status: "signed in"})
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.webAuthnHandler.Logout(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, statusResponse{Status: "signed out"})
}
