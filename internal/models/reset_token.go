package models

import "time"

// ResetTokenRecord is one password-reset token and its full lifecycle state.
// Records are never deleted; used ones stay behind as an audit trail.
type ResetTokenRecord struct {
	Token          string     `json:"token" bson:"token"`
	Email          string     `json:"email" bson:"email"`
	GeneratedAt    time.Time  `json:"generated_at" bson:"generated_on"`
	ExpiresAt      time.Time  `json:"expires_at" bson:"expiration"`
	Used           bool       `json:"used" bson:"used"`
	UsedAt         *time.Time `json:"used_at,omitempty" bson:"used_on,omitempty"`
	ExternalUserID string     `json:"external_user_id" bson:"external_user_id"`
}

// Expired reports whether the token is past its expiry at the given instant.
// Expiry and use are independent: an expired record may still be unused.
func (r *ResetTokenRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// TargetUser addresses password-change and notification calls. Not persisted.
type TargetUser struct {
	Email          string
	ExternalUserID string
	FirstName      string
	LastName       string
}

// ResetLink is the value handed to the notification dispatcher after a token
// has been durably persisted.
type ResetLink struct {
	URL   string
	Token string
	User  TargetUser
}
