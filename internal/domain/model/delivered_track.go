package model

import "time"

// DeliveredTrack records a track message the bot sent into a user's chat,
// so it can be revoked after the post-expiry grace window.
type DeliveredTrack struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id"`
	TrackID   string    `json:"track_id"`
	CreatedAt time.Time `json:"created_at"`
}
