package connectors

import (
	"context"

	"fleetreport/internal"
)

// MailConnector pulls unread scheduled-report emails from a mailbox.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
