package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/kmazur/paragon/internal/extract"
	"github.com/kmazur/paragon/internal/prompt"
	"github.com/kmazur/paragon/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("paragon")
	var (
		input       = fs.StringLong("input", "", "Path to an OCR text file for one receipt")
		dbPath      = fs.StringLong("db", "paragon.db", "Database file path")
		storagePath = fs.StringLong("storage", "./receipts", "Raw-text storage directory")
		batch       = fs.BoolLong("batch", "Disable correction prompts, degrade to sentinels and flagged items")
		maxAttempts = fs.IntLong("max-attempts", 3, "Correction attempts before accepting a discrepancy")
		outPath     = fs.StringLong("out", "", "Write the record JSON to this file instead of stdout")
		list        = fs.BoolLong("list", "Print stored receipts and exit")
		history     = fs.StringLong("history", "", "Print the unit-price history for an item name and exit")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("PARAGON"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	var src prompt.Source
	if !*batch {
		src = prompt.NewTerminal(os.Stdin, os.Stdout)
	}

	extractor := extract.New(src, *maxAttempts)
	service := receipt.NewService(db, store, extractor, src, *maxAttempts)

	switch {
	case *list:
		if err := printRecords(service); err != nil {
			slog.Error("Failed to list records", "error", err)
			os.Exit(1)
		}
	case *history != "":
		if err := printHistory(service, *history); err != nil {
			slog.Error("Failed to print price history", "error", err)
			os.Exit(1)
		}
	case *input != "":
		if err := processReceipt(service, *input, *outPath); err != nil {
			slog.Error("Failed to process receipt", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: one of --input, --list or --history is required")
		os.Exit(1)
	}
}

func processReceipt(service *receipt.Service, inputPath, outPath string) error {
	raw, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	record, err := service.Process(filepath.Base(inputPath), raw)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	data = append(data, '\n')

	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	slog.Info("record written", "path", outPath, "status", record.Status)
	return nil
}

func printRecords(service *receipt.Service) error {
	records, err := service.ListRecords()
	if err != nil {
		return err
	}
	for _, record := range records {
		fmt.Printf("%s  %-10s  %-12s  %8s  %s\n",
			record.ID, record.ShoppingDate, record.ShopName, record.TotalSum, record.Status)
	}
	return nil
}

func printHistory(service *receipt.Service, name string) error {
	points, err := service.PriceHistory(name)
	if err != nil {
		return err
	}
	for _, point := range points {
		fmt.Printf("%-10s  %-12s  %8s\n", point.Date, point.ShopName, point.UnitPrice)
	}
	return nil
}
