package model

type Review struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Text      string `json:"text"`
	Rating    int    `json:"rating"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`

	// LegacyUserID is sent by older backend builds instead of user_id.
	LegacyUserID *int64 `json:"UserID,omitempty"`
}

// Normalize copies LegacyUserID into UserID when the backend sent it.
func (r *Review) Normalize() {
	if r.LegacyUserID != nil && *r.LegacyUserID != 0 {
		r.UserID = *r.LegacyUserID
	}
	r.LegacyUserID = nil
}

// ReviewStatusChange is the body of the review status call.
type ReviewStatusChange struct {
	UserID   int64  `json:"user_id"`
	ReviewID int64  `json:"id"`
	Status   string `json:"status"`
}
