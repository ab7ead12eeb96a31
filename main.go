// Command memorygame starts the memory game server.
//
// It supports three commands:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate-configs" – loads every config in the config directory and reports problems
//
// Settings come from MEMORY_GAME_* environment variables (a .env file is
// loaded first) and are overridden by flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/mcp-training/memorygame/api"
	"github.com/wricardo/mcp-training/memorygame/game/config"
	"github.com/wricardo/mcp-training/memorygame/game/dashboard"
	"github.com/wricardo/mcp-training/memorygame/game/engine"
	"github.com/wricardo/mcp-training/memorygame/game/scores"
	"github.com/wricardo/mcp-training/memorygame/game/service"
	"github.com/wricardo/mcp-training/memorygame/game/session"
	"github.com/wricardo/mcp-training/memorygame/internal/telemetry"
	"github.com/wricardo/mcp-training/memorygame/transport/mcp"
	"github.com/wricardo/mcp-training/memorygame/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"k8s.io/klog/v2"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Game Server"
)

// main loads .env, builds the command tree and runs it.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			klog.ErrorS(err, "Error loading .env file")
		}
	} else {
		klog.InfoS("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		klog.ErrorS(err, "Command failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

// newApp builds the root command. Flags are shared by every subcommand.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "memorygame",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (MEMORY_GAME_HOST)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (MEMORY_GAME_PORT)"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory containing game configurations (MEMORY_GAME_CONFIG_DIR)"},
			&cli.StringFlag{Name: "sessions-dir", Usage: "Directory for persisted sessions (MEMORY_GAME_SESSIONS_DIR)"},
			&cli.StringFlag{Name: "scores-backend", Usage: "Best score store: memory, file or sqlite (MEMORY_GAME_SCORES_BACKEND)"},
			&cli.StringFlag{Name: "scores-path", Usage: "Best score file or database path (MEMORY_GAME_SCORES_PATH)"},
			&cli.StringFlag{Name: "otel-endpoint", Usage: "OTLP/HTTP trace endpoint, empty disables tracing (MEMORY_GAME_OTEL_ENDPOINT)"},
			&cli.IntFlag{Name: "verbosity", Aliases: []string{"v"}, Usage: "klog verbosity level"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (or NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			setupLogging(cmd.Int("verbosity"))
			return ctx, nil
		},
		Action: runServerCommand,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServerCommand,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioCommand,
			},
			{
				Name:   "validate-configs",
				Usage:  "Load and validate every configuration in the config directory",
				Action: runValidateCommand,
			},
		},
	}
}

// setupLogging routes klog to stderr at the requested verbosity.
func setupLogging(verbosity int) {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	fs.Set("logtostderr", "true")
	fs.Set("v", strconv.Itoa(verbosity))
	klog.SetOutput(os.Stderr)
}

// loadSettings reads the environment and applies flag overrides.
func loadSettings(cmd *cli.Command) (config.ServerConfig, error) {
	cfg, err := config.ParseEnv()
	if err != nil {
		return config.ServerConfig{}, err
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = cmd.Int("port")
	}
	if cmd.IsSet("config-dir") {
		cfg.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("sessions-dir") {
		cfg.SessionsDir = cmd.String("sessions-dir")
	}
	if cmd.IsSet("scores-backend") {
		cfg.ScoresBackend = cmd.String("scores-backend")
	}
	if cmd.IsSet("scores-path") {
		cfg.ScoresPath = cmd.String("scores-path")
	} else if strings.EqualFold(cfg.ScoresBackend, scores.BackendSQLite) && filepath.Ext(cfg.ScoresPath) == ".json" {
		cfg.ScoresPath = strings.TrimSuffix(cfg.ScoresPath, ".json") + ".db"
	}
	if cmd.IsSet("otel-endpoint") {
		cfg.OTelEndpoint = cmd.String("otel-endpoint")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.NgrokAuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.NgrokDomain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return config.ServerConfig{}, err
	}
	return cfg, nil
}

// services bundles everything the commands run.
type services struct {
	game     service.GameService
	sessions *session.Manager
	persist  session.SessionPersistence
	scores   scores.Store
	hub      *websocket.Hub
}

// Close flushes sessions and releases the best score store.
func (s *services) Close() {
	if err := s.sessions.SaveAllSessions(); err != nil {
		klog.ErrorS(err, "Failed to save sessions on shutdown")
	}
	if err := s.scores.Close(); err != nil {
		klog.ErrorS(err, "Failed to close best score store")
	}
}

// initializeServices wires config, score, and session stores, the push hub,
// and the game service. The hub runs until ctx is cancelled.
func initializeServices(ctx context.Context, cfg config.ServerConfig) (*services, error) {
	configManager, err := config.NewManager(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	store, err := scores.Open(cfg.ScoresBackend, cfg.ScoresPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open best score store: %w", err)
	}

	persistence, err := session.NewFilePersistence(cfg.SessionsDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	sessionManager := session.NewManagerWithPersistence(persistence, configManager)
	sessionManager.SetEngineFactory(service.NewEngineFactory(store, hub))

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		klog.ErrorS(err, "Failed to load persisted sessions")
	}

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithScoreStore(store),
		service.WithNotifier(hub),
	)

	return &services{
		game:     gameService,
		sessions: sessionManager,
		persist:  persistence,
		scores:   store,
		hub:      hub,
	}, nil
}

// startBackgroundRoutines drives round timers, dashboards, cleanup and
// filesystem sync until ctx is cancelled.
func startBackgroundRoutines(ctx context.Context, cfg config.ServerConfig, svc *services) *sync.WaitGroup {
	var wg sync.WaitGroup
	routines := []func(context.Context){
		func(ctx context.Context) { timerRoutine(ctx, svc.game) },
		func(ctx context.Context) { dashboardRoutine(ctx, svc.game, dashboard.DefaultTuning().Tick()) },
		func(ctx context.Context) { sessionCleanupRoutine(ctx, svc.sessions, cfg.CleanupInterval, cfg.SessionMaxAge) },
		func(ctx context.Context) { filesystemSyncRoutine(ctx, svc.sessions, svc.persist, cfg.SyncInterval) },
	}
	for _, run := range routines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}
	return &wg
}

// timerRoutine advances running round timers once per second.
func timerRoutine(ctx context.Context, game service.GameService) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := game.TickAll(ctx); n > 0 {
				klog.V(3).InfoS("Timer tick", "rounds", n)
			}
		}
	}
}

// dashboardRoutine steps every dashboard by the wall time since the last step.
func dashboardRoutine(ctx context.Context, game service.GameService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			game.StepDashboards(ctx, now.Sub(last).Seconds())
			last = now
		}
	}
}

// sessionCleanupRoutine periodically evicts sessions that have not been
// accessed within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				klog.InfoS("Cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// filesystemSyncRoutine saves in-memory sessions and drops the ones whose
// files were deleted behind the server's back.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration) {
	if persistence == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncSessions(manager, persistence)
		}
	}
}

func syncSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			klog.InfoS("Pruned session from memory (file deleted)", "session", sess.ID)
		}
	}
	if err := manager.SaveAllSessions(); err != nil {
		klog.ErrorS(err, "Failed to sync sessions")
	}
	return pruned
}

// mcpHandler answers single JSON-RPC messages posted to /mcp.
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the REST API at root and the MCP proxy at /mcp.
func newRouter(svc *services, baseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(svc.game, svc.hub))
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(baseURL).GetMCPServer()))
	return mainRouter
}

func runServerCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	return runHTTPServer(ctx, cfg, cmd.Bool("ngrok"))
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an
// /mcp proxy endpoint. With ngrok enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg config.ServerConfig, ngrokEnabled bool) error {
	klog.InfoS("Starting server", "app", AppName, "version", Version)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "memorygame", Version)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			klog.ErrorS(err, "Tracing shutdown error")
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := initializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	routines := startBackgroundRoutines(ctx, cfg, svc)

	addr := cfg.Addr()
	mainRouter := newRouter(svc, fmt.Sprintf("http://%s", addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		klog.InfoS("HTTP server listening", "addr", addr)
		klog.InfoS("Endpoints",
			"api", fmt.Sprintf("http://%s/api", addr),
			"websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if ngrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, mainRouter)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		klog.InfoS("Shutting down")
	case runErr = <-serveErr:
		klog.ErrorS(runErr, "HTTP server failed")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		klog.ErrorS(err, "HTTP server shutdown error")
	}

	wg.Wait()
	routines.Wait()
	klog.InfoS("Server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
func runNgrok(ctx context.Context, cfg config.ServerConfig, handler http.Handler) {
	authToken := cfg.NgrokAuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if authToken == "" {
		klog.InfoS("WARNING: ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	klog.InfoS("Starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		klog.InfoS("Using custom ngrok domain", "domain", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		klog.ErrorS(err, "Failed to start ngrok tunnel")
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			klog.ErrorS(err, "Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	klog.InfoS("Ngrok tunnel established",
		"url", ngrokURL,
		"api", ngrokURL+"/api",
		"websocket", ngrokURL+"/ws?session=<session_id>",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		klog.ErrorS(err, "Ngrok server error")
	}
	klog.InfoS("Ngrok tunnel closed")
}

func runStdioCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	return runStdioMCP(ctx, cfg)
}

// externalAPIAvailable reports whether a server already answers at baseURL.
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runStdioMCP runs an MCP stdio server. It reuses an API already listening
// on the configured address; otherwise it starts an internal HTTP API on a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cfg config.ServerConfig) error {
	baseURL := fmt.Sprintf("http://%s", cfg.Addr())
	klog.InfoS("Checking for external API server", "url", baseURL)

	if externalAPIAvailable(baseURL) {
		klog.InfoS("External API server found, using it for MCP", "url", baseURL)
	} else {
		klog.InfoS("No external API server found, starting internal HTTP server")

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		svc, err := initializeServices(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()
		routines := startBackgroundRoutines(ctx, cfg, svc)
		defer routines.Wait()
		defer cancel()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		klog.InfoS("Starting internal HTTP server for MCP stdio", "addr", internalAddr)

		httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.ErrorS(err, "Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	mcpClient := mcp.NewClient(baseURL)
	klog.InfoS("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func runValidateCommand(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	invalid, err := validateConfigs(out, cfg.ConfigDir)
	if err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d configuration(s) have errors", invalid)
	}
	return nil
}

// validateConfigs loads every *.json file in dir and writes one line per
// file. It returns how many failed.
func validateConfigs(w io.Writer, dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no config files found in %s", dir)
	}

	invalid := 0
	for _, file := range files {
		cfg, err := engine.LoadGameConfig(file)
		if err != nil {
			invalid++
			fmt.Fprintf(w, "❌ %s: %v\n", filepath.Base(file), err)
			continue
		}
		fmt.Fprintf(w, "✅ %s: %s (%d symbols, %dms flip-back)\n",
			filepath.Base(file), cfg.Name, len(cfg.Alphabet), cfg.MismatchDelayMS)
	}
	return invalid, nil
}
