package domain

// MaxThemeLength bounds the stored theme key.
const MaxThemeLength = 120

// FeedbackRecord accumulates how often an image was accepted for a theme.
type FeedbackRecord struct {
	ImageHash        string `json:"image_hash"        db:"image_hash"`
	Theme            string `json:"theme"             db:"theme"`
	AcceptanceCount  int64  `json:"acceptance_count"  db:"acceptance_count"`
	TotalAssignments int64  `json:"total_assignments" db:"total_assignments"`
}

// AffinityWeight is AcceptanceCount/TotalAssignments, or 0 when nothing was assigned.
func (r FeedbackRecord) AffinityWeight() float64 {
	if r.TotalAssignments <= 0 {
		return 0
	}
	return float64(r.AcceptanceCount) / float64(r.TotalAssignments)
}

// FeedbackEvent is one accept/reject decision for an image within a theme.
type FeedbackEvent struct {
	ImageHash string `json:"image_hash"`
	Theme     string `json:"theme"`
	Accepted  bool   `json:"accepted"`
	AssetID   string `json:"asset_id,omitempty"`
}
