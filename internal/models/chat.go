package models

import "time"

// Chat is a group conversation with a persistent participant set.
// Membership is append-only; the creator is always a participant.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatSummary is the API-facing view of a chat for one user.
type ChatSummary struct {
	ID               int       `db:"id" json:"id"`
	Name             *string   `db:"name" json:"name"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	ParticipantCount int       `db:"participant_count" json:"participant_count"`
}
