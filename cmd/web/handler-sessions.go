package main

import (
	"net/http"
	"strconv"

	"github.com/camziny/z-fit-2.0/internal/contexthelpers"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

type buildSessionRequest struct {
	TemplateID      int                       `json:"templateId"`
	WeightOverrides map[int]float64           `json:"weightOverrides"`
	Assessments     []workout.AssessmentInput `json:"assessments"`
	RestEnabled     bool                      `json:"restEnabled"`
}

type sessionResponse struct {
	Session workout.Session `json:"session"`
}

type eventResponse struct {
	Outcome workout.Outcome `json:"outcome"`
	Session workout.Session `json:"session"`
}

func (app *application) sessionsPOST(w http.ResponseWriter, r *http.Request) {
	var req buildSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	ctx := r.Context()
	id, err := app.workoutService.BuildSession(ctx, workout.BuildSessionRequest{
		TemplateID:      req.TemplateID,
		Owner:           owner(r),
		WeightOverrides: req.WeightOverrides,
		Assessments:     req.Assessments,
		RestEnabled:     req.RestEnabled,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	sess, err := app.workoutService.GetSession(ctx, id)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+id)
	app.writeJSON(w, r, http.StatusCreated, sessionResponse{Session: sess})
}

func (app *application) sessionsGET(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			app.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "limit must be an integer"})
			return
		}
	}
	sessions, err := app.workoutService.ListSessions(r.Context(), owner(r), limit)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, sessions)
}

// accessibleSession loads the session named in the path. Sessions of other owners are reported as not found.
func (app *application) accessibleSession(w http.ResponseWriter, r *http.Request) (workout.Session, bool) {
	sess, err := app.workoutService.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		app.handleError(w, r, err)
		return workout.Session{}, false
	}
	if !canAccess(r, sess.Owner) {
		app.notFound(w, r)
		return workout.Session{}, false
	}
	return sess, true
}

func (app *application) sessionGET(w http.ResponseWriter, r *http.Request) {
	sess, ok := app.accessibleSession(w, r)
	if !ok {
		return
	}
	app.writeJSON(w, r, http.StatusOK, sessionResponse{Session: sess})
}

// respondWithEvent answers an event endpoint with the outcome and the session as stored after the event.
func (app *application) respondWithEvent(w http.ResponseWriter, r *http.Request, out workout.Outcome, err error) {
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	sess, err := app.workoutService.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, eventResponse{Outcome: out, Session: sess})
}

type setDoneRequest struct {
	Reps     *int     `json:"reps"`
	WeightKg *float64 `json:"weightKg"`
}

func (app *application) setDonePOST(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.accessibleSession(w, r); !ok {
		return
	}
	exerciseIndex, ok := app.parseIntParam(w, r, "exerciseIndex")
	if !ok {
		return
	}
	setIndex, ok := app.parseIntParam(w, r, "setIndex")
	if !ok {
		return
	}
	var req setDoneRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	out, err := app.workoutService.MarkSetDone(r.Context(), r.PathValue("id"), workout.MarkSetDone{
		ExerciseIndex:     exerciseIndex,
		SetIndex:          setIndex,
		PerformedReps:     req.Reps,
		PerformedWeightKg: req.WeightKg,
	})
	app.respondWithEvent(w, r, out, err)
}

type plannedWeightRequest struct {
	FromSetIndex int     `json:"fromSetIndex"`
	WeightKg     float64 `json:"weightKg"`
}

func (app *application) plannedWeightPOST(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.accessibleSession(w, r); !ok {
		return
	}
	exerciseIndex, ok := app.parseIntParam(w, r, "exerciseIndex")
	if !ok {
		return
	}
	var req plannedWeightRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	out, err := app.workoutService.UpdatePlannedWeight(r.Context(), r.PathValue("id"), workout.UpdatePlannedWeight{
		ExerciseIndex: exerciseIndex,
		FromSetIndex:  req.FromSetIndex,
		WeightKg:      req.WeightKg,
	})
	app.respondWithEvent(w, r, out, err)
}

type ratingRequest struct {
	RIR *int `json:"rir"`
}

func (app *application) ratingPOST(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.accessibleSession(w, r); !ok {
		return
	}
	exerciseIndex, ok := app.parseIntParam(w, r, "exerciseIndex")
	if !ok {
		return
	}
	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	if req.RIR == nil {
		app.writeJSON(w, r, http.StatusUnprocessableEntity, errorResponse{Error: "rir is required"})
		return
	}
	var rater *workout.OwnerRef
	if userID := contexthelpers.AuthenticatedUserID(r.Context()); userID > 0 {
		user := workout.UserOwner(userID)
		rater = &user
	}
	out, err := app.workoutService.RecordEffortRating(r.Context(), r.PathValue("id"), exerciseIndex, *req.RIR, rater)
	app.respondWithEvent(w, r, out, err)
}

func (app *application) navigatePOST(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.accessibleSession(w, r); !ok {
		return
	}
	direction := workout.Direction(r.PathValue("direction"))
	if direction != workout.DirectionPrevious && direction != workout.DirectionNext {
		app.notFound(w, r)
		return
	}
	out, err := app.workoutService.Navigate(r.Context(), r.PathValue("id"), direction)
	app.respondWithEvent(w, r, out, err)
}

type completeRequest struct {
	Ratings map[int]int `json:"ratings"`
}

func (app *application) completePOST(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.accessibleSession(w, r); !ok {
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	out, err := app.workoutService.CompleteSession(r.Context(), r.PathValue("id"), req.Ratings)
	app.respondWithEvent(w, r, out, err)
}
