package models

import "time"

// ContentType identifies the kind of content item
type ContentType string

const (
	ContentVideo     ContentType = "video"
	ContentArticle   ContentType = "article"
	ContentPodcast   ContentType = "podcast"
	ContentYouTube   ContentType = "youtube"
	ContentMusic     ContentType = "music"
	ContentStory     ContentType = "story"
	ContentSRSReview ContentType = "srs_review"
)

// FeedContentTypes are the content types fetched from content sources.
// srs_review items are injected, never fetched.
var FeedContentTypes = []ContentType{
	ContentVideo, ContentArticle, ContentPodcast, ContentYouTube, ContentMusic, ContentStory,
}

// ParseContentType returns the content type for s and whether it is known
func ParseContentType(s string) (ContentType, bool) {
	ct := ContentType(s)
	if ct == ContentSRSReview {
		return ct, true
	}
	for _, t := range FeedContentTypes {
		if t == ct {
			return ct, true
		}
	}
	return "", false
}

// ContentItem is a piece of learning content produced by ingestion
type ContentItem struct {
	ID              string      `json:"id" db:"id"`
	Type            ContentType `json:"type" db:"type"`
	Title           string      `json:"title" db:"title"`
	Level           Level       `json:"level" db:"level"`
	Topics          []string    `json:"topics" db:"-"`
	Text            string      `json:"text,omitempty" db:"text"` // Transcript or body, optional
	DurationSeconds int         `json:"duration_seconds" db:"duration_seconds"`
	HasAudio        bool        `json:"has_audio" db:"has_audio"`
	Popularity      int         `json:"popularity" db:"popularity"` // Views/likes from ingestion
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}
