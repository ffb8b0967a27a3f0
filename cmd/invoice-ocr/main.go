package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		out           = flag.String("out", "", "write the JSON document here instead of stdout")
		xlsx          = flag.String("xlsx", "", "also write an XLSX summary to this path")
		disableDeskew = flag.Bool("disable-deskew", false, "skip rotation correction")
		engine        = flag.String("engine", "", "OCR engine: tesseract-cli or gosseract (default from OCR_ENGINE)")
		schemaName    = flag.String("schema", "", "skip schema resolution: utility_bill, product_invoice, service_invoice or generic")
		verbose       = flag.Bool("v", false, "debug logging")
	)
	flag.Usage = func() {
		printError("usage: invoice-ocr [flags] <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := bootstrap.Logger(os.Stderr, false, level)
	slog.SetDefault(logger)

	if err := bootstrap.LoadDotEnv(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	if *disableDeskew {
		cfg.Preprocess.Deskew = false
	}
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	var opts []core.Option
	if *schemaName != "" {
		name, ok := constants.Canonicalize(*schemaName)
		if !ok {
			printError("Error: unknown schema %q\n", *schemaName)
			os.Exit(2)
		}
		opts = append(opts, core.WithSchema(name))
	}

	extractor, err := bootstrap.Extractor(cfg, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	doc, err := core.NewProcessor(logger, extractor, opts...).ProcessFile(ctx, path)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		printError("Error: encode document: %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Println(string(b))
	} else if err := os.WriteFile(*out, append(b, '\n'), 0o644); err != nil {
		printError("Error: write %s: %v\n", *out, err)
		os.Exit(1)
	}

	if *xlsx != "" {
		data, err := export.NewService(logger).DocumentsXLSX([]export.Entry{{SourcePath: path, Document: doc}})
		if err != nil {
			printError("Error: xlsx: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsx, data, 0o644); err != nil {
			printError("Error: write %s: %v\n", *xlsx, err)
			os.Exit(1)
		}
	}
}
