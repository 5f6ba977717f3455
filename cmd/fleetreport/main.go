package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"fleetreport/internal"
	"fleetreport/internal/config"
	"fleetreport/internal/connectors"
	"fleetreport/internal/listener"
	"fleetreport/internal/logging"
	"fleetreport/internal/pipeline"
	"fleetreport/internal/remote"
	"fleetreport/internal/server"
	"fleetreport/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logging.New(cfg)
	opts, err := pipeline.OptionsFromConfig(cfg)
	must(err)
	reports := pipeline.NewService(pipeline.NewWorkspace(), opts, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "gps", "wifi", "convert":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "auto", "auto|csv|xlsx|html|pdf")
		output := fs.String("output", "", "output xlsx path (default OUTPUT_DIR/<name>)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		in, err := pipeline.ReadInput(*inType, *input)
		must(err)
		runReport(ctx, reports, cfg, internal.ReportKind(cmd), in, *output)
	case "fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		rawURL := fs.String("url", "", "export download url")
		report := fs.String("report", "gps", "gps|wifi|convert")
		output := fs.String("output", "", "output xlsx path (default OUTPUT_DIR/<name>)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*rawURL) == "" {
			must(fmt.Errorf("--url is required"))
		}
		kind, err := pipeline.ParseReportKind(*report)
		must(err)

		dl, err := remote.NewClient(cfg, logger).Fetch(ctx, *rawURL)
		must(err)
		inKind, ok := pipeline.DetectKind(dl.Name, dl.Data)
		if !ok {
			inKind = internal.InputCSV
		}
		runReport(ctx, reports, cfg, kind, pipeline.Input{Name: dl.Name, Kind: inKind, Data: dl.Data}, *output)
	case "codes":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "file with one code per line (default stdin)")
		_ = fs.Parse(os.Args[2:])
		var blob []byte
		if strings.TrimSpace(*input) == "" {
			blob, err = io.ReadAll(os.Stdin)
		} else {
			blob, err = os.ReadFile(*input)
		}
		must(err)
		fmt.Println(util.JoinCodes(string(blob)))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", cfg.MailListenerFetchMax, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.DefaultConnector(cfg)(ctx, strings.ToLower(strings.TrimSpace(*provider)))
		must(err)
		fetch := connectors.NewFetchService(cfg.InboxDir, conn, logger)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d\n", *provider, result.Fetched, result.Stored)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		report := fs.String("report", cfg.MailListenerReport, "gps|wifi|convert")
		_ = fs.Parse(os.Args[2:])
		cfg.MailListenerReport = *report
		svc, err := listener.NewService(cfg, reports, logger)
		must(err)
		res, err := svc.ProcessPending(ctx, connectors.NewMailStore(cfg.InboxDir))
		must(err)
		fmt.Printf("processed pending emails=%d exported=%d failed=%d\n", res.Processed, len(res.Exported), res.Failed)
		for _, p := range res.Exported {
			fmt.Printf("  %s\n", p)
		}
	case "mail:listen":
		svc, err := listener.NewService(cfg, reports, logger)
		must(err)
		must(svc.Run(ctx))
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		addr := fs.String("addr", cfg.HTTPAddr, "listen address")
		_ = fs.Parse(os.Args[2:])
		cfg.HTTPAddr = *addr
		must(server.New(cfg, reports, logger).Start(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func runReport(ctx context.Context, reports *pipeline.Service, cfg config.Config, kind internal.ReportKind, in pipeline.Input, output string) {
	loaded, err := reports.Load(ctx, kind, in)
	must(err)

	if output == "" {
		output = filepath.Join(cfg.OutputDir, pipeline.OutputName(kind, in.Name))
	}

	if loaded.Summary != nil {
		printSummary(loaded)
	}
	must(reports.Export(loaded, output))
	fmt.Printf("%s done rows=%d output=%s\n", kind, len(loaded.Rows), output)
}

func printSummary(r *pipeline.LoadedReport) {
	s := r.Summary
	fmt.Printf("detected columns (header row %d):\n", r.HeaderRow+1)
	for _, rule := range pipeline.FieldRules {
		header, ok := r.Resolution.Key(rule.Field)
		if !ok {
			header = "-"
		}
		fmt.Printf("  %-18s %s\n", rule.Field, header)
	}

	fmt.Println("units by status:")
	for _, sc := range s.StatusCounts {
		fmt.Printf("  %-30s %d\n", sc.Status, sc.Count)
	}
	if s.MaxRow != nil {
		fmt.Printf("longest without communication: %s (%.2f days)\n", s.MaxVehicle, s.MaxDays)
	}
	fmt.Printf("mean days=%.2f median days=%.2f\n", s.MeanDays, s.MedianDays)
	fmt.Printf("disconnected units: %d\n", s.DisconnectedCount)
	for _, row := range s.Disconnected {
		fmt.Printf("  %-20s %-25s %8.2f\n", row.String(pipeline.ColVehicle), row.String(pipeline.ColStatus), row.Float(pipeline.ColDays))
	}
}

func usage() {
	fmt.Println("usage: fleetreport <command>")
	fmt.Println("commands:")
	fmt.Println("  gps --input=... [--type=auto|csv|xlsx|html|pdf] [--output=...xlsx]")
	fmt.Println("  wifi --input=... [--type=auto|csv|xlsx] [--output=...xlsx]")
	fmt.Println("  convert --input=... [--type=auto|csv|xlsx] [--output=...xlsx]")
	fmt.Println("  fetch --url=... [--report=gps|wifi|convert] [--output=...xlsx]")
	fmt.Println("  codes [--input=codes.txt]")
	fmt.Println("  mail:fetch [--provider=gmail|imap] [--label=INBOX] [--max=20]")
	fmt.Println("  mail:process [--report=gps|wifi|convert]")
	fmt.Println("  mail:listen")
	fmt.Println("  serve [--addr=:8080]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
