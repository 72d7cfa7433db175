package main

import (
	"net/http"

	"github.com/camziny/z-fit-2.0/internal/workout"
)

func (app *application) assessmentsPOST(w http.ResponseWriter, r *http.Request) {
	var in workout.AssessmentInput
	if err := decodeJSON(r, &in); err != nil {
		app.handleError(w, r, err)
		return
	}
	assessment, err := app.workoutService.RecordAssessment(r.Context(), owner(r), in)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, assessment)
}

func (app *application) latestAssessmentsGET(w http.ResponseWriter, r *http.Request) {
	ids, ok := app.exerciseIDsQuery(w, r)
	if !ok {
		return
	}
	latest, err := app.workoutService.GetLatestAssessments(r.Context(), owner(r), ids)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, latest)
}

func (app *application) progressionsGET(w http.ResponseWriter, r *http.Request) {
	ids, ok := app.exerciseIDsQuery(w, r)
	if !ok {
		return
	}
	profiles, err := app.workoutService.GetProgressionsForExercises(r.Context(), owner(r), ids)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, profiles)
}

func (app *application) completedWeightsGET(w http.ResponseWriter, r *http.Request) {
	ids, ok := app.exerciseIDsQuery(w, r)
	if !ok {
		return
	}
	weightsKg, err := app.workoutService.GetLatestCompletedWeights(r.Context(), owner(r), ids)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, weightsKg)
}
