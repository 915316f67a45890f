package platform

// Meta (Facebook/Instagram) webhook payload. Instagram shares the same
// shape with a different object name.
type metaWebhookPayload struct {
	Object string      `json:"object"`
	Entry  []metaEntry `json:"entry"`
}

type metaEntry struct {
	ID        string          `json:"id"`
	Time      int64           `json:"time"`
	Messaging []metaMessaging `json:"messaging,omitempty"`
	Changes   []waChange      `json:"changes,omitempty"`
}

type metaMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Timestamp int64 `json:"timestamp"`
	Message   *struct {
		MID        string `json:"mid"`
		Text       string `json:"text"`
		QuickReply *struct {
			Payload string `json:"payload"`
		} `json:"quick_reply,omitempty"`
		Attachments []struct {
			Type    string `json:"type"`
			Payload struct {
				URL string `json:"url"`
			} `json:"payload"`
		} `json:"attachments,omitempty"`
	} `json:"message,omitempty"`
	Postback *struct {
		Title   string `json:"title"`
		Payload string `json:"payload"`
	} `json:"postback,omitempty"`
}

// WhatsApp Cloud API change event, nested under entry[].changes[].
type waChange struct {
	Field string `json:"field"`
	Value struct {
		Contacts []struct {
			WaID    string `json:"wa_id"`
			Profile struct {
				Name string `json:"name"`
			} `json:"profile"`
		} `json:"contacts,omitempty"`
		Messages []waMessage `json:"messages,omitempty"`
	} `json:"value"`
}

type waMessage struct {
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// Web chat request/response bodies for the JSON endpoint.
type chatRequest struct {
	SenderID string `json:"sender_id"`
	Text     string `json:"text"`
}

type chatResponse struct {
	Text         string      `json:"text"`
	QuickReplies interface{} `json:"quick_replies,omitempty"`
}

type moderationRequest struct {
	Notes string `json:"notes"`
}
