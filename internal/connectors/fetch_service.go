package connectors

import (
	"context"
	"log/slog"

	"fleetreport/internal/logging"
)

type FetchService struct {
	connector MailConnector
	store     *MailStore
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(inboxDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStore(inboxDir),
		logger:    logger,
	}
}

func (s *FetchService) Store() *MailStore {
	return s.store
}

// FetchAndStore stages every fetched email. Duplicates are counted as
// fetched but not stored.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	stored := 0
	for _, msg := range messages {
		mail, isNew, err := s.store.Store(msg)
		if err != nil {
			return FetchResult{}, err
		}
		if !isNew {
			s.logger.Debug("mail already staged", "messageId", msg.MessageID, "hash", mail.Hash)
			continue
		}
		s.logger.Info("mail staged", "provider", msg.Provider, "messageId", msg.MessageID, "subject", msg.Subject, "path", mail.Path)
		stored++
	}

	return FetchResult{Fetched: len(messages), Stored: stored}, nil
}
