package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/receipt-auditor/internal/app"
	"github.com/dvloznov/receipt-auditor/internal/config"
	"github.com/dvloznov/receipt-auditor/internal/domain"
	"github.com/dvloznov/receipt-auditor/internal/extract"
	"github.com/dvloznov/receipt-auditor/internal/gcsuploader"
	infraBQ "github.com/dvloznov/receipt-auditor/internal/infra/bigquery"
	"github.com/dvloznov/receipt-auditor/internal/ledger"
	"github.com/dvloznov/receipt-auditor/internal/logger"
	"github.com/dvloznov/receipt-auditor/internal/pipeline"
	"github.com/dvloznov/receipt-auditor/internal/risk"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()
	log := logger.NewWithLevel(cfg.LogLevel)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		runExtract(log)
	case "audit":
		runAudit(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "setup":
		runSetup(cfg, log)
	case "seed":
		runSeed(cfg, log)
	case "ledger":
		runLedger(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Receipt Auditor CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Extract fields and assess risk for recognized receipt text")
	fmt.Println("  audit     Audit a receipt image stored in GCS")
	fmt.Println("  upload    Upload a receipt image to GCS")
	fmt.Println("  setup     Create the bucket, dataset and ledger table")
	fmt.Println("  seed      Insert mock ledger rows for demos")
	fmt.Println("  ledger    Print the audit ledger and its summary")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runExtract(log zerolog.Logger) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a text file with recognized receipt text (default: stdin)")
	fs.Parse(os.Args[2:])

	var (
		data []byte
		err  error
	)
	if *filePath == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*filePath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read receipt text")
	}

	record, assessment := pipeline.AuditText(string(data), extract.New(), risk.NewClassifier(log))

	printJSON(map[string]interface{}{
		"record":     record,
		"assessment": assessment,
	})
}

func runAudit(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the receipt image")
	fs.Parse(os.Args[2:])

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	state, err := pipeline.AuditReceiptFromGCS(ctx, *gcsURI, services.PipelineDeps())
	if err != nil {
		log.Fatal().Err(err).Msg("Audit failed")
	}

	printJSON(map[string]interface{}{
		"duplicate": state.Skipped,
		"receipt":   state.Receipt,
	})
}

func runUpload(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.Bucket, "GCS bucket name (or set GCS_BUCKET env)")
	objectName := fs.String("object", "", "GCS object name (defaults to receipts/<filename>)")
	filePath := fs.String("file", "", "Path to local receipt image")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		*objectName = "receipts/" + filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	storage, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer storage.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading receipt to GCS")

	if err := storage.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Println(gcsuploader.BuildGCSURI(*bucketName, *objectName))
}

func runSetup(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.Bucket, "GCS bucket to create (or set GCS_BUCKET env)")
	location := fs.String("location", cfg.BQLocation, "Location for the bucket and dataset (or set BQ_LOCATION env)")
	fs.Parse(os.Args[2:])

	if err := cfg.ValidateLedger(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *bucketName != "" {
		storage, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer storage.Close()

		if err := storage.CreateBucket(ctx, cfg.ProjectID, *bucketName, *location); err != nil {
			log.Fatal().Err(err).Msg("Failed to create bucket")
		}
		log.Info().Str("bucket", *bucketName).Msg("Bucket ready")
	} else {
		log.Warn().Msg("No bucket configured, skipping bucket creation")
	}

	repo, err := infraBQ.NewBigQueryAuditRepository(ctx, app.TableRef(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx, *location); err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger table")
	}
	log.Info().Str("table", app.TableRef(cfg).FullName()).Msg("Ledger table ready")
}

func runSeed(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	count := fs.Int("count", 20, "Number of mock receipts to insert")
	seed := fs.Int64("seed", time.Now().UnixNano(), "Random seed")
	fs.Parse(os.Args[2:])

	if err := cfg.ValidateLedger(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	repo, err := infraBQ.NewBigQueryAuditRepository(ctx, app.TableRef(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	receipts := ledger.MockReceipts(rand.New(rand.NewSource(*seed)), *count, time.Now().UTC(), risk.NewClassifier(log))
	for i := range receipts {
		if err := repo.InsertAudit(ctx, infraBQ.RowFromReceipt(&receipts[i])); err != nil {
			log.Fatal().Err(err).Msg("Failed to insert mock receipt")
		}
		log.Info().
			Str("merchant", receipts[i].Merchant).
			Str("total", receipts[i].Total).
			Str("risk_status", receipts[i].RiskStatus).
			Msg("Added mock receipt")
	}

	fmt.Printf("Inserted %d mock receipts.\n", len(receipts))
}

func runLedger(cfg config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	riskStatus := fs.String("risk-status", "", "Only show APPROVED or FLAGGED receipts")
	limit := fs.Int("limit", 50, "Maximum receipts to list")
	top := fs.Int("top", ledger.DefaultTopN, "Number of largest receipts in the summary")
	fs.Parse(os.Args[2:])

	if err := cfg.ValidateLedger(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	repo, err := infraBQ.NewBigQueryAuditRepository(ctx, app.TableRef(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger repository")
	}
	defer repo.Close()

	rows, err := repo.ListAudits(ctx, infraBQ.AuditFilter{RiskStatus: *riskStatus, Limit: *limit})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ledger")
	}

	receipts := make([]domain.AuditedReceipt, 0, len(rows))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMERCHANT\tTOTAL\tRISK\tFLAGS\tRECEIPT ID")
	for _, row := range rows {
		r := row.ToReceipt()
		receipts = append(receipts, *r)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n", r.Date, r.Merchant, r.Total, r.RiskStatus, r.RiskFlags, r.ReceiptID)
	}
	w.Flush()

	s := ledger.Summarize(receipts, *top)
	fmt.Println("\n=== Summary ===")
	fmt.Printf("Receipts:       %d\n", s.ReceiptCount)
	fmt.Printf("Flagged:        %d\n", s.FlaggedCount)
	fmt.Printf("Total spend:    %s\n", s.TotalSpend)
	fmt.Printf("Average ticket: %s\n", s.AverageTicket)
	fmt.Println("\nTop receipts:")
	for i, r := range s.Top {
		fmt.Printf("  %d. %s  %s  %s\n", i+1, r.Total, r.Merchant, r.Date)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}
