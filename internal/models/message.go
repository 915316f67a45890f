package models

import "time"

type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchImage   MatchType = "image"
)

// Match is one scored search result. Recomputed on every search call,
// never persisted outside the session context.
type Match struct {
	AdID       int64     `json:"ad_id"`
	Text       string    `json:"text"`
	Price      *float64  `json:"price,omitempty"`
	Location   string    `json:"location,omitempty"`
	Contact    string    `json:"contact,omitempty"`
	Link       string    `json:"link,omitempty"`
	Similarity float64   `json:"similarity"`
	MatchType  MatchType `json:"match_type"`
	CreatedAt  time.Time `json:"-"`
}

// Event is a platform-normalized inbound message. Adapters fill it in;
// the conversation machine never sees platform payloads.
type Event struct {
	Platform   string
	SenderID   string
	SenderName string
	Text       string
	Image      []byte
	ImageMIME  string
	ImageURL   string
	Timestamp  time.Time
}

// QuickReply is a suggested answer rendered as a button where the
// platform supports it.
type QuickReply struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// Response is the machine's output contract to the adapters: text plus
// optional quick replies. No platform formatting leaks in here.
type Response struct {
	Text         string       `json:"text"`
	QuickReplies []QuickReply `json:"quick_replies,omitempty"`
}
