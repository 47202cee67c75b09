// ABOUTME: Entry point for the crucible tool server and chat client.
// ABOUTME: Subcommands: serve, health, chat, audit.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/crucible-tools/crucible/internal/bridge"
	"github.com/crucible-tools/crucible/internal/config"
	"github.com/crucible-tools/crucible/internal/dedupe"
	"github.com/crucible-tools/crucible/internal/mcp"
	"github.com/crucible-tools/crucible/internal/oracle"
	"github.com/crucible-tools/crucible/internal/resources"
	"github.com/crucible-tools/crucible/internal/sandbox"
	"github.com/crucible-tools/crucible/internal/store"
	"github.com/crucible-tools/crucible/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                       _ _     _
  ___ _ __ _   _  ___ (_) |__ | | ___
 / __| '__| | | |/ __|| | '_ \| |/ _ \
| (__| |  | |_| | (__ | | |_) | |  __/
 \___|_|   \__,_|\___||_|_.__/|_|\___|
`

// getConfigPath returns the path to the config file.
// Priority: CRUCIBLE_CONFIG env var > XDG_CONFIG_HOME/crucible/crucible.yaml > ~/.config/crucible/crucible.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CRUCIBLE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "crucible.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "crucible", "crucible.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: crucible <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the tool server")
		fmt.Println("  health         Check server health")
		fmt.Println("  chat <prompt>  Answer a prompt using the server's tools")
		fmt.Println("  audit          Show recent tool invocations")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "chat":
		err = runChat(ctx)
	case "audit":
		err = runAudit(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	resolver, err := sandbox.NewResolver(cfg.Sandbox.Root)
	if err != nil {
		return fmt.Errorf("preparing sandbox: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if err := registry.Register(tools.BasicPack(logger)...); err != nil {
		return fmt.Errorf("registering basic tools: %w", err)
	}
	if err := registry.Register(tools.FSPack(resolver)...); err != nil {
		return fmt.Errorf("registering file tools: %w", err)
	}

	serverCfg := mcp.Config{
		Registry: registry,
		Catalog:  resources.NewCatalog(resolver),
		Logger:   logger,
	}

	if cfg.Database.Path != "" {
		auditStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer func() { _ = auditStore.Close() }()
		serverCfg.Auditor = auditStore
	}

	cache := dedupe.New(cfg.Dedupe.TTL, cfg.Dedupe.MaxSize)
	defer cache.Close()
	serverCfg.Dedupe = cache

	srv, err := mcp.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	mux := http.NewServeMux()
	mcp.NewHTTPServer(srv, resolver.Root()).RegisterRoutes(mux)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Sandbox:  %s\n", resolver.Root())
	if cfg.Database.Path != "" {
		green.Print("    ▶ ")
		fmt.Printf("Audit:    %s\n", cfg.Database.Path)
	}
	fmt.Println()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	fmt.Print(string(body))
	return nil
}

func runChat(ctx context.Context) error {
	prompt := strings.TrimSpace(strings.Join(os.Args[2:], " "))
	if prompt == "" {
		return fmt.Errorf("usage: crucible chat <prompt>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	apiKey := os.Getenv(cfg.Oracle.APIKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("%s is not set", cfg.Oracle.APIKeyEnv)
	}

	provider := oracle.NewOpenAIProvider(oracle.OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
	})

	endpoint := fmt.Sprintf("http://%s/mcp", cfg.Server.HTTPAddr)
	loop, err := bridge.NewLoop(bridge.LoopConfig{
		Caller:    bridge.NewHTTPCaller(endpoint, nil),
		Provider:  provider,
		Logger:    logger,
		MaxRounds: cfg.Oracle.MaxRounds,
	})
	if err != nil {
		return fmt.Errorf("building loop: %w", err)
	}

	answer, err := loop.Run(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func runAudit(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not configured; auditing is disabled")
	}

	auditStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer func() { _ = auditStore.Close() }()

	stats, err := auditStore.StatsByTool(ctx)
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Per-tool totals:")
	for _, st := range stats {
		fmt.Printf("  %-14s calls=%-5d errors=%-4d total=%dms last=%s\n",
			st.Tool, st.Calls, st.Errors, st.TotalMs, st.LastCalled.Format(time.RFC3339))
	}

	invs, err := auditStore.RecentInvocations(ctx, 20)
	if err != nil {
		return fmt.Errorf("querying invocations: %w", err)
	}

	cyan.Println("\nRecent invocations:")
	for _, inv := range invs {
		status := "ok"
		if inv.IsError {
			status = "error"
		}
		fmt.Printf("  %s  %-14s %-6s %4dms  %s\n",
			inv.CreatedAt.Format("15:04:05"), inv.Tool, status,
			inv.Elapsed.Milliseconds(), inv.RequestID)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(&colorHandler{out: os.Stdout, level: level})
}

// colorHandler renders one log line per record: dim timestamp, colored
// level tag, message, then dim key= pairs. Writes are serialized.
type colorHandler struct {
	mu    sync.Mutex
	out   io.Writer
	level slog.Level
	attrs []slog.Attr
}

var levelTags = map[slog.Level]func() string{
	slog.LevelDebug: func() string { return color.MagentaString("DBG ") },
	slog.LevelInfo:  func() string { return color.CyanString("INF ") },
	slog.LevelWarn:  func() string { return color.YellowString("WRN ") },
	slog.LevelError: func() string { return color.New(color.FgRed, color.Bold).Sprint("ERR ") },
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))
	if tag, ok := levelTags[r.Level]; ok {
		buf.WriteString(tag())
	} else {
		buf.WriteString("??? ")
	}
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, a)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func writeAttr(buf *strings.Builder, a slog.Attr) {
	buf.WriteString(color.HiBlackString(" " + a.Key + "="))
	buf.WriteString(a.Value.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &colorHandler{out: h.out, level: h.level, attrs: merged}
}

// WithGroup is accepted but flattened; this handler prints attrs ungrouped.
func (h *colorHandler) WithGroup(string) slog.Handler {
	return h
}
