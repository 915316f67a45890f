package models

import (
	"fmt"
	"time"
)

type ConversationState string

const (
	StateInitial               ConversationState = "initial"
	StateWaitingUserType       ConversationState = "waiting_user_type"
	StateAdvertiserWaitingAd   ConversationState = "advertiser_waiting_ad"
	StateAdvertiserWaitingImg  ConversationState = "advertiser_waiting_image"
	StateAdvertiserConfirming  ConversationState = "advertiser_confirming"
	StateAdvertiserSubmitted   ConversationState = "advertiser_submitted"
	StateBuyerWaitingQuery     ConversationState = "buyer_waiting_query"
	StateBuyerShowingResults   ConversationState = "buyer_showing_results"
	StateConversationCompleted ConversationState = "completed"
)

type UserType string

const (
	UserAdvertiser UserType = "advertiser" // معلن
	UserBuyer      UserType = "buyer"      // مشتري
)

// AdvertiserContext holds the draft accumulated during the advertiser flow.
type AdvertiserContext struct {
	OriginalText string `json:"original_text"`
	EnhancedText string `json:"enhanced_text"`
	ImageURL     string `json:"image_url,omitempty"`
	AdID         int64  `json:"ad_id,omitempty"`
}

// SearchRecord is one entry of the buyer's recent search history.
type SearchRecord struct {
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

// BuyerContext holds the buyer flow state: the last query, the results
// currently on screen and a short history of past searches.
type BuyerContext struct {
	LastQuery string         `json:"last_query"`
	Results   []Match        `json:"results"`
	History   []SearchRecord `json:"history,omitempty"`
}

// Session tracks one dialogue per (platform, platform user). Exactly one of
// Advertiser/Buyer is non-nil once a role has been chosen; both are nil
// before that and after a reset.
type Session struct {
	ID         string             `json:"id"`
	Platform   string             `json:"platform"`
	State      ConversationState  `json:"state"`
	UserType   UserType           `json:"user_type,omitempty"`
	Advertiser *AdvertiserContext `json:"advertiser,omitempty"`
	Buyer      *BuyerContext      `json:"buyer,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// SessionID builds the canonical session key for a platform user.
func SessionID(platform, platformUserID string) string {
	return fmt.Sprintf("%s:%s", platform, platformUserID)
}

// NewSession starts a fresh dialogue for a platform user.
func NewSession(platform, platformUserID string) *Session {
	return &Session{
		ID:        SessionID(platform, platformUserID),
		Platform:  platform,
		State:     StateInitial,
		CreatedAt: time.Now(),
	}
}

// Reset clears role and context and returns the session to the initial state.
func (s *Session) Reset() {
	s.State = StateInitial
	s.UserType = ""
	s.Advertiser = nil
	s.Buyer = nil
}

// Clone deep-copies the session so a handler can work on a scratch copy
// and commit it only after its side effects succeeded.
func (s *Session) Clone() *Session {
	copied := *s
	if s.Advertiser != nil {
		adv := *s.Advertiser
		copied.Advertiser = &adv
	}
	if s.Buyer != nil {
		buyer := *s.Buyer
		buyer.Results = append([]Match(nil), s.Buyer.Results...)
		buyer.History = append([]SearchRecord(nil), s.Buyer.History...)
		copied.Buyer = &buyer
	}
	return &copied
}
