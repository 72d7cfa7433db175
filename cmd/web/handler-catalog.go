package main

import (
	"net/http"

	"github.com/camziny/z-fit-2.0/internal/workout"
)

func (app *application) exercisesGET(w http.ResponseWriter, r *http.Request) {
	exercises, err := app.workoutService.ListExercises(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, exercises)
}

func (app *application) templatesGET(w http.ResponseWriter, r *http.Request) {
	templates, err := app.workoutService.ListTemplates(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, templates)
}

func (app *application) templateGET(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIntParam(w, r, "id")
	if !ok {
		return
	}
	tmpl, err := app.workoutService.GetTemplate(r.Context(), id)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, tmpl)
}

type previewRequest struct {
	Assessments []workout.AssessmentInput `json:"assessments"`
}

// templatePreviewPOST shows what a session built from the template would plan, taking the assessments answered so
// far on the setup screen into account.
func (app *application) templatePreviewPOST(w http.ResponseWriter, r *http.Request) {
	id, ok := app.parseIntParam(w, r, "id")
	if !ok {
		return
	}
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	plan, err := app.workoutService.PreviewPlan(r.Context(), id, owner(r), req.Assessments)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, plan)
}
