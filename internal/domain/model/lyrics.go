package model

import "time"

type Lyrics struct {
	ID        int64     `json:"id"`
	TrackID   string    `json:"track_id"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Text      string    `json:"lyrics_text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
