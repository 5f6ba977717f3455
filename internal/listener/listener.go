package listener

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fleetreport/internal"
	"fleetreport/internal/config"
	"fleetreport/internal/connectors"
	gmailconnector "fleetreport/internal/connectors/gmail"
	imapconnector "fleetreport/internal/connectors/imap"
	"fleetreport/internal/logging"
	"fleetreport/internal/pipeline"
)

// ConnectorFactory builds the mailbox connector for a provider name.
type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

type Service struct {
	cfg     config.Config
	reports *pipeline.Service
	report  internal.ReportKind
	connect ConnectorFactory
	logger  *slog.Logger
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Exported  []string
	Failed    int
}

func NewService(cfg config.Config, reports *pipeline.Service, logger *slog.Logger) (*Service, error) {
	return NewServiceWithConnector(cfg, reports, DefaultConnector(cfg), logger)
}

func NewServiceWithConnector(cfg config.Config, reports *pipeline.Service, connect ConnectorFactory, logger *slog.Logger) (*Service, error) {
	report, err := pipeline.ParseReportKind(cfg.MailListenerReport)
	if err != nil {
		return nil, fmt.Errorf("MAIL_LISTENER_REPORT: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{cfg: cfg, reports: reports, report: report, connect: connect, logger: logger.With("component", "listener")}, nil
}

// DefaultConnector picks Gmail or IMAP from configuration.
func DefaultConnector(cfg config.Config) ConnectorFactory {
	return func(ctx context.Context, provider string) (connectors.MailConnector, error) {
		switch provider {
		case "gmail":
			return gmailconnector.NewConnector(ctx, cfg)
		case "imap":
			return imapconnector.NewConnector(cfg)
		default:
			return nil, fmt.Errorf("unsupported listener provider: %s", provider)
		}
	}
}

// Run polls the mailbox until ctx is done. A failed cycle is logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	s.logger.Info("listener started", "provider", s.provider(), "label", s.cfg.MailListenerLabel, "report", s.report, "interval", interval)

	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches new mail, then processes every staged email that is not
// done yet.
func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	conn, err := s.connect(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.cfg.InboxDir, conn, s.logger)
	fetched, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}

	res, err := s.ProcessPending(ctx, fetchService.Store())
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored
	if err != nil {
		return res, err
	}

	s.logger.Info("listener cycle done", "provider", provider, "fetched", res.Fetched, "stored", res.Stored, "processed", res.Processed, "exported", len(res.Exported), "failed", res.Failed)
	return res, nil
}

// ProcessPending runs the configured report over the attachments of every
// pending email. An email is marked done only when all its attachments
// were exported; the others are retried next cycle.
func (s *Service) ProcessPending(ctx context.Context, store *connectors.MailStore) (CycleResult, error) {
	pending, err := store.Pending()
	if err != nil {
		return CycleResult{}, err
	}

	var res CycleResult
	for _, mail := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		exported, err := s.processMail(ctx, mail)
		res.Exported = append(res.Exported, exported...)
		if err != nil {
			res.Failed++
			s.logger.Warn("mail processing failed", "hash", mail.Hash, "error", err)
			continue
		}
		if err := store.MarkDone(mail.Hash); err != nil {
			return res, err
		}
		res.Processed++
	}
	return res, nil
}

func (s *Service) processMail(ctx context.Context, mail connectors.StoredMail) ([]string, error) {
	raw, err := os.ReadFile(mail.Path)
	if err != nil {
		return nil, err
	}
	attachments, subject, err := pipeline.ExtractAttachments(raw)
	if err != nil {
		return nil, fmt.Errorf("read mail: %w", err)
	}
	if len(attachments) == 0 {
		s.logger.Info("mail has no report attachments", "hash", mail.Hash, "subject", subject)
		return nil, nil
	}

	workers := s.cfg.MailListenerWorkers
	if workers <= 0 {
		workers = 1
	}
	prefix := mail.Hash
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	paths := make([]string, len(attachments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, att := range attachments {
		i, att := i, att
		g.Go(func() error {
			loaded, err := s.reports.Load(gctx, s.report, pipeline.Input{Name: att.Name, Kind: att.Kind, Data: att.Content})
			if err != nil {
				return fmt.Errorf("%s: %w", att.Name, err)
			}
			out := filepath.Join(s.cfg.OutputDir, "listener", prefix+"_"+pipeline.OutputName(s.report, att.Name))
			if err := s.reports.Export(loaded, out); err != nil {
				return err
			}
			paths[i] = out
			return nil
		})
	}
	err = g.Wait()

	exported := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			exported = append(exported, p)
		}
	}
	return exported, err
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}
