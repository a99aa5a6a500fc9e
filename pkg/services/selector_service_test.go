package services

import (
	"testing"

	"github.com/shift-health/pipeline/pkg/models"
)

func TestSelectCandidate(t *testing.T) {
	t.Run("no candidates", func(t *testing.T) {
		_, ok := selectCandidate(nil, nil)
		if ok {
			t.Error("expected no selection from an empty candidate set")
		}
	})

	t.Run("all candidates suppressed", func(t *testing.T) {
		candidates := []models.CatalogEntry{{InterventionKey: "a", Surface: "push"}}
		prefs := map[string]models.SurfacePreference{
			"push": {Surface: "push", ShownCount: 10, AnnoyanceRate: 0.99},
		}
		_, ok := selectCandidate(candidates, prefs)
		if ok {
			t.Error("expected no selection when every candidate's surface is suppressed")
		}
	})

	t.Run("unsuppressed surface with no preference row wins over nothing", func(t *testing.T) {
		candidates := []models.CatalogEntry{{InterventionKey: "a", Surface: "push"}}
		chosen, ok := selectCandidate(candidates, nil)
		if !ok || chosen.InterventionKey != "a" {
			t.Errorf("got (%v, %v), want (a, true)", chosen, ok)
		}
	})

	t.Run("highest preference score wins", func(t *testing.T) {
		candidates := []models.CatalogEntry{
			{InterventionKey: "low_score", Surface: "push"},
			{InterventionKey: "high_score", Surface: "email"},
		}
		prefs := map[string]models.SurfacePreference{
			"push":  {Surface: "push", PreferenceScore: 0.1},
			"email": {Surface: "email", PreferenceScore: 0.9},
		}
		chosen, ok := selectCandidate(candidates, prefs)
		if !ok || chosen.InterventionKey != "high_score" {
			t.Errorf("got (%v, %v), want (high_score, true)", chosen, ok)
		}
	})

	t.Run("tie breaks lexicographically on intervention key", func(t *testing.T) {
		candidates := []models.CatalogEntry{
			{InterventionKey: "zebra", Surface: "push"},
			{InterventionKey: "alpha", Surface: "email"},
		}
		prefs := map[string]models.SurfacePreference{
			"push":  {Surface: "push", PreferenceScore: 0.5},
			"email": {Surface: "email", PreferenceScore: 0.5},
		}
		chosen, ok := selectCandidate(candidates, prefs)
		if !ok || chosen.InterventionKey != "alpha" {
			t.Errorf("got (%v, %v), want (alpha, true)", chosen, ok)
		}
	})

	t.Run("suppressed surface excluded, remainder still considered", func(t *testing.T) {
		candidates := []models.CatalogEntry{
			{InterventionKey: "suppressed_one", Surface: "push"},
			{InterventionKey: "survivor", Surface: "email"},
		}
		prefs := map[string]models.SurfacePreference{
			"push":  {Surface: "push", ShownCount: 5, AnnoyanceRate: 0.8},
			"email": {Surface: "email", PreferenceScore: 0.0},
		}
		chosen, ok := selectCandidate(candidates, prefs)
		if !ok || chosen.InterventionKey != "survivor" {
			t.Errorf("got (%v, %v), want (survivor, true)", chosen, ok)
		}
	})
}
