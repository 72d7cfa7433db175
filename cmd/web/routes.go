package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.logAndTraceRequest(app.requestMetrics(secureHeaders(app.crossOriginProtection(
				app.timeout(next)))))
		}
		noSession = func(next http.Handler) http.Handler {
			return app.recoverPanic(shared(next))
		}
		session = func(next http.Handler) http.Handler {
			return app.recoverPanic(shared(noCache(app.sessionManager.LoadAndSave(
				app.webAuthnHandler.AuthenticateMiddleware(next)))))
		}
	)

	mux.Handle("GET /api/healthy", noSession(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/test/timeout", noSession(http.HandlerFunc(app.testTimeout)))

	mux.Handle("GET /api/exercises", noSession(http.HandlerFunc(app.exercisesGET)))
	mux.Handle("GET /api/templates", noSession(http.HandlerFunc(app.templatesGET)))
	mux.Handle("GET /api/templates/{id}", noSession(http.HandlerFunc(app.templateGET)))
	mux.Handle("POST /api/templates/{id}/preview", session(http.HandlerFunc(app.templatePreviewPOST)))

	mux.Handle("POST /api/sessions", session(http.HandlerFunc(app.sessionsPOST)))
	mux.Handle("GET /api/sessions", session(http.HandlerFunc(app.sessionsGET)))
	mux.Handle("GET /api/sessions/{id}", session(http.HandlerFunc(app.sessionGET)))
	mux.Handle("POST /api/sessions/{id}/exercises/{exerciseIndex}/sets/{setIndex}/done",
		session(http.HandlerFunc(app.setDonePOST)))
	mux.Handle("POST /api/sessions/{id}/exercises/{exerciseIndex}/planned-weight",
		session(http.HandlerFunc(app.plannedWeightPOST)))
	mux.Handle("POST /api/sessions/{id}/exercises/{exerciseIndex}/rating", session(http.HandlerFunc(app.ratingPOST)))
	mux.Handle("POST /api/sessions/{id}/navigate/{direction}", session(http.HandlerFunc(app.navigatePOST)))
	mux.Handle("POST /api/sessions/{id}/complete", session(http.HandlerFunc(app.completePOST)))

	mux.Handle("POST /api/assessments", session(http.HandlerFunc(app.assessmentsPOST)))
	mux.Handle("GET /api/assessments/latest", session(http.HandlerFunc(app.latestAssessmentsGET)))
	mux.Handle("GET /api/progressions", session(http.HandlerFunc(app.progressionsGET)))
	mux.Handle("GET /api/completed-weights", session(http.HandlerFunc(app.completedWeightsGET)))

	mux.Handle("POST /api/registration/start", session(http.HandlerFunc(app.beginRegistration)))
	mux.Handle("POST /api/registration/finish", session(http.HandlerFunc(app.finishRegistration)))
	mux.Handle("POST /api/login/start", session(http.HandlerFunc(app.beginLogin)))
	mux.Handle("POST /api/login/finish", session(http.HandlerFunc(app.finishLogin)))
	mux.Handle("POST /api/logout", session(http.HandlerFunc(app.logout)))

	if app.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})) //nolint:exhaustruct // defaults.
	}

	mux.Handle("/", noSession(http.HandlerFunc(app.notFound)))

	return mux
}
