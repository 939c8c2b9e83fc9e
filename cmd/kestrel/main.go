// Command kestrel runs the tool-call orchestrator: it loads configuration,
// wires the confirmation bus to its approvers (terminal, WebSocket, NATS),
// registers built-in and MCP tools, and serves the HTTP control API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kestrel-sh/kestrel/internal/adapter/httpapi"
	"github.com/kestrel-sh/kestrel/internal/adapter/mcptool"
	knats "github.com/kestrel-sh/kestrel/internal/adapter/nats"
	kotel "github.com/kestrel-sh/kestrel/internal/adapter/otel"
	"github.com/kestrel-sh/kestrel/internal/adapter/postgres"
	"github.com/kestrel-sh/kestrel/internal/adapter/ristretto"
	"github.com/kestrel-sh/kestrel/internal/adapter/terminal"
	"github.com/kestrel-sh/kestrel/internal/adapter/ws"
	"github.com/kestrel-sh/kestrel/internal/auth"
	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/config"
	"github.com/kestrel-sh/kestrel/internal/domain/policy"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
	"github.com/kestrel-sh/kestrel/internal/logger"
	"github.com/kestrel-sh/kestrel/internal/port/messagequeue"
	"github.com/kestrel-sh/kestrel/internal/remote"
	"github.com/kestrel-sh/kestrel/internal/service"
	"github.com/kestrel-sh/kestrel/internal/tools"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	log.Info("config loaded",
		"port", cfg.Server.Port,
		"approval_mode", cfg.Approval.Mode,
		"postgres", cfg.Postgres.DSN != "",
		"nats", cfg.NATS.URL != "",
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownTelemetry, err := kotel.InitTelemetry(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	metrics, err := kotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Session and bus ---
	session, err := service.NewSession(policy.ApprovalMode(cfg.Approval.Mode), cfg.Approval.GrantsPath, log)
	if err != nil {
		return err
	}
	confirmBus := bus.NewInMemory()

	// --- Tool registry ---
	registry := tools.NewRegistry()

	remoteClient, err := buildRemoteClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	remoteClient.OnAuthRetry = func() {
		metrics.AuthRetries.Add(ctx, 1)
	}

	builtins := []tools.Tool{
		&tools.ReadFile{Root: cfg.Workspace.Root},
		&tools.WriteFile{Root: cfg.Workspace.Root},
		&tools.Shell{Dir: cfg.Workspace.Root},
		&tools.WebFetch{},
		&tools.AskUser{},
		&tools.ExitPlanMode{},
		&tools.RemoteAgent{Client: remoteClient},
	}
	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	for _, srv := range cfg.MCP.Servers {
		def := &mcptool.ServerDef{
			Name:      srv.Name,
			Transport: mcptool.Transport(srv.Transport),
			Command:   srv.Command,
			Args:      srv.Args,
			Env:       srv.Env,
			URL:       srv.URL,
			Headers:   srv.Headers,
		}
		closeMCP, err := mcptool.Connect(ctx, def, registry)
		if err != nil {
			// A broken MCP server should not take down the whole session.
			log.Warn("mcp server skipped", "server", srv.Name, "error", err)
			continue
		}
		defer func() { _ = closeMCP() }()
		log.Info("mcp server connected", "server", srv.Name, "transport", srv.Transport)
	}

	// --- Scheduler and approval surfaces ---
	scheduler := service.NewScheduler(registry, confirmBus, session, log)
	scheduler.Metrics = metrics
	scheduler.Concurrency = cfg.Approval.Concurrency

	hub := ws.NewHub(confirmBus)
	scheduler.OnPartial = func(callID, text string) {
		hub.BroadcastPartial(ctx, callID, text)
	}

	handlers := &httpapi.Handlers{
		Bus:       confirmBus,
		Session:   session,
		Registry:  registry,
		Scheduler: scheduler,
	}
	handlers.OnCompleted = func(ctx context.Context, done *toolcall.CompletedCall) {
		hub.BroadcastCompleted(ctx, done)
	}

	// --- Audit trail (optional) ---
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("postgres connected, migrations applied")

		audit := postgres.NewAuditStore(pool)
		scheduler.Audit = audit
		handlers.Audit = audit
	}

	// --- Out-of-process approvers ---
	if cfg.NATS.URL != "" {
		queue, err := knats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()

		bridge := knats.NewBridge(queue, confirmBus)
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer bridge.Stop()
		log.Info("nats bridge started", "url", cfg.NATS.URL)

		prevPartial := scheduler.OnPartial
		scheduler.OnPartial = func(callID, text string) {
			prevPartial(callID, text)
			payload := messagequeue.InvocationPartialPayload{CallID: callID, Text: text}
			if err := knats.PublishPartial(ctx, queue, payload); err != nil {
				log.Debug("nats partial publish failed", "call_id", callID, "error", err)
			}
		}

		prevCompleted := handlers.OnCompleted
		handlers.OnCompleted = func(ctx context.Context, done *toolcall.CompletedCall) {
			prevCompleted(ctx, done)
			payload := messagequeue.InvocationCompletedPayload{
				CallID:  done.Request.CallID,
				Tool:    done.Request.Name,
				Status:  string(done.Status),
				Display: done.Result.Display,
			}
			if done.Result.Error != nil {
				payload.ErrorKind = string(done.Result.Error.Kind)
				payload.Message = done.Result.Error.Message
			}
			if err := knats.PublishCompleted(ctx, queue, payload); err != nil {
				log.Debug("nats completed publish failed", "call_id", done.Request.CallID, "error", err)
			}
		}
	}

	if terminal.Interactive() {
		approver := terminal.NewApprover(confirmBus, nil, nil, log)
		approver.Start(ctx)
		defer approver.Stop()
		log.Info("terminal approver attached")
	}

	// --- HTTP ---
	router := httpapi.NewRouter(handlers, hub)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	<-done
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildRemoteClient wires the remote agent client from configuration: the
// agent card cache, per-agent credential providers, and the session store.
func buildRemoteClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*remote.Client, error) {
	cardCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	client := remote.NewClient(
		remote.NewSessionStore(),
		remote.NewCardCache(cardCache, cfg.Cache.CardTTL),
		nil,
	)

	for _, agent := range cfg.Remote.Agents {
		provider, err := buildAuthProvider(agent.Auth)
		if err != nil {
			return nil, fmt.Errorf("remote agent %q: %w", agent.Name, err)
		}
		if provider != nil {
			if err := provider.Init(ctx); err != nil {
				return nil, fmt.Errorf("remote agent %q: %w", agent.Name, err)
			}
		}
		client.LoadAgent(agent.Name, agent.Endpoint, provider)
		log.Info("remote agent loaded", "agent", agent.Name, "endpoint", agent.Endpoint, "auth", agent.Auth.Type)
	}
	return client, nil
}

// buildAuthProvider maps an auth config block to a credential provider. An
// empty type means the agent is reached without credentials.
func buildAuthProvider(a config.Auth) (auth.Provider, error) {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}

	switch a.Type {
	case "":
		return nil, nil
	case "static":
		if a.Token == "" {
			return nil, errors.New("auth: static credential requires a token")
		}
		return auth.NewStatic(header, a.Token), nil
	case "env":
		if a.Env == "" {
			return nil, errors.New("auth: env credential requires a variable name")
		}
		return auth.NewEnv(header, a.Env), nil
	case "command":
		fields := strings.Fields(a.Command)
		if len(fields) == 0 {
			return nil, errors.New("auth: command credential requires a command")
		}
		return auth.NewCommand(fields[0], fields[1:]...), nil
	case "ambient":
		if a.TokenURL == "" {
			return nil, errors.New("auth: ambient credential requires a token_url")
		}
		return auth.NewAmbient(metadataTokenSource(a.TokenURL)), nil
	default:
		return nil, fmt.Errorf("auth: unknown credential type %q", a.Type)
	}
}

// metadataTokenSource fetches a bearer token from an ambient-identity
// endpoint. The response body is the token, whitespace-trimmed.
func metadataTokenSource(url string) auth.TokenSource {
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("token endpoint %s: status %d", url, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", err
		}
		token := strings.TrimSpace(string(body))
		if token == "" {
			return "", fmt.Errorf("token endpoint %s: empty token", url)
		}
		return token, nil
	}
}
