package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/finshare/ocr-service/internal/extract"
	"github.com/finshare/ocr-service/internal/ocr"
	"github.com/finshare/ocr-service/internal/receipt"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("ocr-service")
	var (
		port        = fs.IntLong("port", 8001, "HTTP server port")
		dbPath      = fs.StringLong("db", "ocr-service.db", "Scan history database file path")
		storagePath = fs.StringLong("storage", "./uploads", "Upload storage directory path")
		engineType  = fs.StringLong("engine", "tesseract", "OCR engine: 'tesseract' or 'ollama'")
		languages   = fs.StringLong("languages", "eng", "Comma-separated Tesseract language hints")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		maxAmount   = fs.Float64Long("max-item-amount", extract.DefaultPolicy().MaxItemAmount, "Exclusive upper bound for a plausible line-item price")
		minDescLen  = fs.IntLong("min-item-description", extract.DefaultPolicy().MinDescriptionLen, "Exclusive lower bound for a line-item description length")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("OCR_SERVICE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.Info("Initializing scan history database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var engine ocr.Engine
	switch *engineType {
	case "tesseract":
		langs := strings.Split(*languages, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		slog.Info("Initializing Tesseract engine...", "languages", langs)
		engine = ocr.NewTesseract(langs...)
	case "ollama":
		slog.Info("Initializing Ollama engine...", "url", *ollamaURL, "model", *ollamaModel)
		engine, err = ocr.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid engine type", "type", *engineType, "valid", "tesseract or ollama")
		os.Exit(1)
	}
	defer engine.Close()

	slog.Info("Initializing upload storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	policy := extract.Policy{
		MaxItemAmount:     *maxAmount,
		MinDescriptionLen: *minDescLen,
	}
	service := receipt.NewService(db, engine, store, policy)

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(service, basicAuth, version)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "engine", engine.Name())
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
