package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/models"
)

const (
	graphAPIBase    = "https://graph.facebook.com/v19.0"
	whatsappAPIBase = "https://graph.facebook.com/v19.0"
	sendTimeout     = 15 * time.Second
)

// GraphSender delivers responses through the Messenger Send API. It
// serves both Facebook pages and Instagram professional accounts.
type GraphSender struct {
	accessToken string
	client      *http.Client
	logger      *zap.Logger
}

func NewGraphSender(accessToken string, logger *zap.Logger) *GraphSender {
	return &GraphSender{
		accessToken: accessToken,
		client:      &http.Client{Timeout: sendTimeout},
		logger:      logger,
	}
}

func (g *GraphSender) Send(ctx context.Context, recipientID string, resp *models.Response) error {
	message := map[string]interface{}{"text": resp.Text}
	if len(resp.QuickReplies) > 0 {
		var replies []map[string]string
		for _, qr := range resp.QuickReplies {
			replies = append(replies, map[string]string{
				"content_type": "text",
				"title":        qr.Title,
				"payload":      qr.Payload,
			})
		}
		message["quick_replies"] = replies
	}

	payload := map[string]interface{}{
		"recipient":      map[string]string{"id": recipientID},
		"messaging_type": "RESPONSE",
		"message":        message,
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", graphAPIBase, g.accessToken)
	return postJSON(ctx, g.client, url, payload)
}

// WhatsAppSender delivers responses through the WhatsApp Cloud API.
// Quick replies become interactive reply buttons, which the API caps
// at three per message.
type WhatsAppSender struct {
	accessToken   string
	phoneNumberID string
	client        *http.Client
	logger        *zap.Logger
}

func NewWhatsAppSender(accessToken, phoneNumberID string, logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: sendTimeout},
		logger:        logger,
	}
}

func (w *WhatsAppSender) Send(ctx context.Context, recipientID string, resp *models.Response) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                recipientID,
	}

	if len(resp.QuickReplies) > 0 {
		var buttons []map[string]interface{}
		for i, qr := range resp.QuickReplies {
			if i == 3 {
				break
			}
			buttons = append(buttons, map[string]interface{}{
				"type": "reply",
				"reply": map[string]string{
					"id":    qr.Payload,
					"title": truncateTitle(qr.Title),
				},
			})
		}
		payload["type"] = "interactive"
		payload["interactive"] = map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": resp.Text},
			"action": map[string]interface{}{"buttons": buttons},
		}
	} else {
		payload["type"] = "text"
		payload["text"] = map[string]string{"body": resp.Text}
	}

	url := fmt.Sprintf("%s/%s/messages", whatsappAPIBase, w.phoneNumberID)
	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	return doRequest(w.client, req)
}

// WhatsApp rejects button titles over 20 characters.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= 20 {
		return title
	}
	return string(runes[:20])
}

func newJSONRequest(ctx context.Context, url string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, payload interface{}) error {
	req, err := newJSONRequest(ctx, url, payload)
	if err != nil {
		return err
	}
	return doRequest(client, req)
}

func doRequest(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send API returned status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
