package models

// SurfacePreference is a read-only per-(user, surface) view over
// interaction history (spec.md §3). Computed upstream by a warehouse
// view/job that is out of scope for this pipeline (spec.md §1,
// §9 "Preference score is taken as an input"); the selector only reads
// it.
type SurfacePreference struct {
	UserID          string  `db:"user_id"`
	Surface         string  `db:"surface"`
	ShownCount      int     `db:"shown_count"`
	EngagementRate  float64 `db:"engagement_rate"`
	IgnoreRate      float64 `db:"ignore_rate"`
	AnnoyanceRate   float64 `db:"annoyance_rate"`
	PreferenceScore float64 `db:"preference_score"`
}

// annoyanceCap is the ceiling applied to AnnoyanceRate before suppression
// and scoring math (spec.md §4.D step 5): "prevents permanent lockout."
const annoyanceCap = 0.9

// CappedAnnoyanceRate returns AnnoyanceRate clamped to annoyanceCap.
func (p SurfacePreference) CappedAnnoyanceRate() float64 {
	if p.AnnoyanceRate > annoyanceCap {
		return annoyanceCap
	}
	return p.AnnoyanceRate
}

// suppressShownCountThreshold and suppressAnnoyanceThreshold are the fixed
// suppression thresholds from spec.md §4.D step 5 / §8.
const (
	suppressShownCountThreshold = 5
	suppressAnnoyanceThreshold  = 0.7
)

// Suppressed reports whether this surface should be withheld from
// candidate selection: shown_count >= 5 AND capped(annoyance_rate) > 0.7.
func (p SurfacePreference) Suppressed() bool {
	return p.ShownCount >= suppressShownCountThreshold && p.CappedAnnoyanceRate() > suppressAnnoyanceThreshold
}

// FinalScore computes the candidate's ranking score (spec.md §4.D step 5):
// 1.0 + preference_score, preference_score defaulting to 0 when the
// surface has no preference row at all (handled by the caller passing a
// zero-value SurfacePreference).
func (p SurfacePreference) FinalScore() float64 {
	return 1.0 + p.PreferenceScore
}
