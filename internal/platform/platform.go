// Package platform adapts messaging platforms to the conversation
// machine: webhook parsing and message rendering live here, never in
// the core.
package platform

import (
	"context"

	"github.com/zakisalem/souq-bot/internal/models"
)

// Platform identifiers used in session keys and logs.
const (
	PlatformTelegram  = "telegram"
	PlatformFacebook  = "facebook"
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
	PlatformWeb       = "web"
)

// Processor is the core's message entry point; implemented by
// conversation.Machine.
type Processor interface {
	Process(ctx context.Context, ev models.Event) (*models.Response, error)
}

// Sender delivers a core response to a platform user, rendering quick
// replies into whatever the platform supports.
type Sender interface {
	Send(ctx context.Context, recipientID string, resp *models.Response) error
}
