package main

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/camziny/z-fit-2.0/internal/ptr"
	"github.com/camziny/z-fit-2.0/internal/workout"
)

func Test_application_passkeys(t *testing.T) {
	ctx := t.Context()
	server := startServer(t)
	client := server.Client()

	// Started anonymously, rated after signing up.
	anonymous := buildSession(ctx, t, client, buildSessionRequest{
		TemplateID:      legsTemplate,
		WeightOverrides: map[int]float64{backSquat: 100},
		Assessments:     nil,
		RestEnabled:     false,
	})
	sessionURL := "/api/sessions/" + anonymous.ID
	progressionsURL := fmt.Sprintf("/api/progressions?exercise=%d", backSquat)

	t.Run("Anonymous visitors have no progression", func(t *testing.T) {
		if err := client.PostJSON(ctx, sessionURL+"/exercises/0/rating", ratingRequest{RIR: ptr.Ref(4)},
			nil); err != nil {
			t.Fatalf("rate: %v", err)
		}
		var profiles map[int]workout.ProgressionProfile
		if err := client.GetJSON(ctx, progressionsURL, &profiles); err != nil {
			t.Fatalf("get progressions: %v", err)
		}
		if len(profiles) != 0 {
			t.Errorf("got profiles %v for an anonymous visitor", profiles)
		}
		rows, err := server.CountRows(ctx, "progression_profiles", "1 = 1")
		if err != nil {
			t.Fatalf("count profiles: %v", err)
		}
		if rows != 0 {
			t.Errorf("stored %d profiles for an anonymous rating", rows)
		}
	})

	t.Run("Registration adopts the session on rating", func(t *testing.T) {
		if err := client.Register(ctx); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}

		var got eventResponse
		if err := client.PostJSON(ctx, sessionURL+"/exercises/0/rating", ratingRequest{RIR: ptr.Ref(2)},
			&got); err != nil {
			t.Fatalf("rate: %v", err)
		}
		if !got.Session.Owner.IsUser() {
			t.Errorf("session owner = %v, want the signed-in user", got.Session.Owner)
		}

		var profiles map[int]workout.ProgressionProfile
		if err := client.GetJSON(ctx, progressionsURL, &profiles); err != nil {
			t.Fatalf("get progressions: %v", err)
		}
		p, ok := profiles[backSquat]
		if !ok || p.LastRIR != 2 || p.NextPlannedWeightKg != 102.5 {
			t.Errorf("profile = %+v, want RIR 2 planning 102.5", p)
		}
		rows, err := server.CountRows(ctx, "progression_profiles", "exercise_id = ?", backSquat)
		if err != nil {
			t.Fatalf("count profiles: %v", err)
		}
		if rows != 1 {
			t.Errorf("stored %d squat profiles, want 1", rows)
		}
	})

	t.Run("Signed out visitors lose access", func(t *testing.T) {
		if err := client.Logout(ctx); err != nil {
			t.Fatalf("Failed to logout: %v", err)
		}
		status, err := client.DoJSON(ctx, http.MethodGet, sessionURL, nil, nil)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want %d", status, http.StatusNotFound)
		}
	})

	t.Run("Login restores access", func(t *testing.T) {
		if err := client.Login(ctx); err != nil {
			t.Fatalf("Failed to login: %v", err)
		}
		if err := client.GetJSON(ctx, sessionURL, nil); err != nil {
			t.Fatalf("get session: %v", err)
		}

		// The next session plans from the profile: 102.5 working is 136.7 1RM, 112.5 for the squat pyramid.
		next := buildSession(ctx, t, client, buildSessionRequest{
			TemplateID:      legsTemplate,
			WeightOverrides: nil,
			Assessments:     nil,
			RestEnabled:     true,
		})
		if w := next.Exercises[0].Sets[0].WeightKg; w == nil || *w != 112.5 {
			t.Errorf("next squat weight = %v, want 112.5", w)
		}
	})
}

func Test_application_finishWithoutCeremony(t *testing.T) {
	ctx := t.Context()
	client := startServer(t).Client()

	for _, path := range []string{"/api/registration/finish", "/api/login/finish"} {
		status, err := client.DoJSON(ctx, http.MethodPost, path, map[string]string{}, nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		if status != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want %d", path, status, http.StatusBadRequest)
		}
	}
}
