package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/ekazakov/lingoscene/internal/api"
	"github.com/ekazakov/lingoscene/internal/config"
	"github.com/ekazakov/lingoscene/internal/evaluate"
	"github.com/ekazakov/lingoscene/internal/imagegen"
	"github.com/ekazakov/lingoscene/internal/ratelimit"
	"github.com/ekazakov/lingoscene/internal/scene"
	"github.com/ekazakov/lingoscene/internal/speech"
	"github.com/ekazakov/lingoscene/internal/storage"
)

// maxConns caps concurrent HTTP connections at the listener.
const maxConns = 256

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lingoscene server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running lingoscene server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lingoscene system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "lingoscene.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "lingoscene version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("lingoscene is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("lingoscene is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	evaluator, err := evaluate.NewOpenAIEvaluator(cfg.OpenAI.APIKey, cfg.OpenAI.EvalModel, cfg.OpenAI.BaseURL)
	if err != nil {
		return fmt.Errorf("building evaluator: %w", err)
	}
	generator, err := imagegen.NewOpenAIGenerator(cfg.OpenAI.APIKey, cfg.OpenAI.ImageModel, cfg.OpenAI.BaseURL)
	if err != nil {
		return fmt.Errorf("building image generator: %w", err)
	}
	transcriber, err := speech.NewWhisperTranscriber(cfg.OpenAI.APIKey, cfg.OpenAI.TranscribeModel, cfg.OpenAI.BaseURL)
	if err != nil {
		return fmt.Errorf("building transcriber: %w", err)
	}
	synthesizer, err := speech.NewOpenAISynthesizer(cfg.OpenAI.APIKey, cfg.OpenAI.SpeechModel, cfg.OpenAI.BaseURL)
	if err != nil {
		return fmt.Errorf("building synthesizer: %w", err)
	}

	token := cfg.Server.InternalToken
	if token == "" {
		token, err = randomToken()
		if err != nil {
			return fmt.Errorf("generating internal token: %w", err)
		}
		slog.Info("generated ephemeral internal token for /generate-image")
	}

	deps := api.Deps{
		Store:       store,
		Evaluator:   evaluator,
		Generator:   generator,
		Transcriber: transcriber,
		Synthesizer: synthesizer,
		Limiter:     ratelimit.New(cfg.Limits.SubmitPerMinute, time.Minute),
		Token:       token,
	}
	handler := api.NewHandler(deps)

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	limited := netutil.LimitListener(ln, maxConns)

	worker := imagegen.NewWorker(store, generator, 500*time.Millisecond)

	scheduler := scene.NewScheduler(scene.Catalog, scene.NewFileSeenStore(cfg.Storage.DataDir))
	mcpSrv := api.NewMCPServer(api.MCPDeps{Deps: deps, Scheduler: scheduler})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "lingoscene listening on %s\n", addr)
		if err := srv.Serve(limited); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
		return nil
	})
	slog.Info("MCP server started (stdio transport)")

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("lingoscene is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop lingoscene (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to lingoscene (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Eval model", "%s", cfg.OpenAI.EvalModel)
	printStatus("Image model", "%s", cfg.OpenAI.ImageModel)
	printStatus("Scenes", "%d in catalog", len(scene.Catalog))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
