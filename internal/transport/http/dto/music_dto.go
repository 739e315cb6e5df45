package dto

import "github.com/tunngle1/newversionmusicbot/internal/domain/model"

type TracksResponse struct {
	Tracks []model.Track `json:"tracks"`
	Count  int           `json:"count"`
}

type RadioStationsResponse struct {
	Stations []model.RadioStation `json:"stations"`
}

type LyricsResponse struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Lyrics string `json:"lyrics"`
	Source string `json:"source,omitempty"`
}

type DownloadRequest struct {
	URL      string `json:"url"`
	TrackID  string `json:"track_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Duration int    `json:"duration"`
}

type DownloadResponse struct {
	OK        bool `json:"ok"`
	MessageID int  `json:"message_id"`
	Protected bool `json:"protected"`
}
