package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stephnangue/steward/authz"
	"github.com/stephnangue/steward/config"
	"github.com/stephnangue/steward/graph"
	stewardhttp "github.com/stephnangue/steward/http"
	"github.com/stephnangue/steward/listener"
	"github.com/stephnangue/steward/listener/api"
	log "github.com/stephnangue/steward/logger"
	"github.com/stephnangue/steward/provision"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	configPath string

	flagDev        bool
	flagDevAddress string

	ServerCmd = &cobra.Command{
		Use:   "server",
		Short: "This command starts a steward server that responds to API requests",
		Long: `
Usage: steward server [options]

  This command starts a steward server that responds to API requests.
  Start a server with a configuration file:

      $ steward server --config=/etc/steward/config.hcl

  Start a throwaway server against an in-memory directory:

      $ steward server -dev
  `,
		RunE: run,
	}

	wg sync.WaitGroup

	cleanupGuard sync.Once
)

func init() {
	ServerCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (e.g., path/to/steward.hcl)")
	ServerCmd.Flags().BoolVar(&flagDev, "dev", false, "Run against an in-memory directory with the default shared secret")
	ServerCmd.Flags().StringVar(&flagDevAddress, "dev-listen-address", "127.0.0.1:8000", "Listen address in dev mode")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}

	// construct the logger with gate closed during initialization
	logger := buildGatedLogger(cfg)
	defer logger.Close()

	infoKeys := make([]string, 0, 10)
	info := make(map[string]string)
	info["log level"] = cfg.LogLevel
	infoKeys = append(infoKeys, "log level")
	info["log format"] = cfg.LogFormat
	infoKeys = append(infoKeys, "log format")
	if cfg.LogFile != "" {
		info["log file"] = cfg.LogFile
		infoKeys = append(infoKeys, "log file")
	}

	directory, checker, err := buildDirectory(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to construct the directory client: %w", err)
	}

	if flagDev {
		info["directory"] = "in-memory (dev)"
	} else {
		info["directory"] = graphBaseURL(cfg)
		info["tenant id"] = cfg.Azure.TenantID
		infoKeys = append(infoKeys, "tenant id")
	}
	infoKeys = append(infoKeys, "directory")

	info["member-add gating"] = fmt.Sprintf("%t", cfg.API.GateMemberAdds)
	infoKeys = append(infoKeys, "member-add gating")

	gate := authz.NewGate(checker, logger.WithSubsystem("authz"))

	orchestrator, err := provision.NewOrchestrator(provision.Config{
		Directory:  directory,
		Authorizer: gate,
		MemberAdd: provision.MemberAddPolicy{
			Gate: cfg.API.GateMemberAdds,
			AUID: cfg.API.MemberAddAUID,
		},
		Logger: logger.WithSubsystem("provision"),
	})
	if err != nil {
		return fmt.Errorf("failed to construct the orchestrator: %w", err)
	}

	httpHandler := stewardhttp.Handler(&stewardhttp.HandlerProperties{
		Orchestrator: orchestrator,
		APIKey:       cfg.API.APIKey,
		Logger:       logger.WithSubsystem("http"),
	})

	lns, err := initListeners(httpHandler, cfg, logger, &infoKeys, info)
	if err != nil {
		return err
	}

	listenerCloseFunc := func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopping all listeners\n")
		for _, ln := range lns {
			if err := ln.Stop(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "failed to stop %s listener at %s: %v\n", ln.Type(), ln.Addr(), err)
			}
		}
	}

	// Stop listeners exactly once, whether via defer on early error or the
	// explicit call during shutdown.
	defer cleanupGuard.Do(listenerCloseFunc)

	sort.Strings(infoKeys)
	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Steward server configuration:\n\n")

	titleCaser := cases.Title(language.English, cases.NoLower)

	for _, k := range infoKeys {
		fmt.Fprintf(cmd.OutOrStdout(), "%24s: %s\n", titleCaser.String(k), info[k])
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, len(lns))
	totalListeners := len(lns)

	for _, ln := range lns {
		ln := ln
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ln.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	if flagDev {
		printDevBanner(cmd.OutOrStdout(), cfg.API.APIKey)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n==> Steward server started! Log data will stream in below:\n")
	logger.OpenGate()

	// Wait for shutdown. A single listener failure is tolerated as long as
	// another listener still serves; when all have failed, shut down.
	failedCount := 0
	shutdownTriggered := false

	for !shutdownTriggered {
		select {
		case err := <-errChan:
			failedCount++
			fmt.Fprintf(cmd.OutOrStdout(), "Listener error occurred: %v (failed=%d, total=%d)\n", err, failedCount, totalListeners)
			if failedCount >= totalListeners {
				shutdownTriggered = true
				cancel()
			}
		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "Steward shutdown triggered\n")
			shutdownTriggered = true
		}
	}

	cleanupGuard.Do(listenerCloseFunc)
	wg.Wait()

	return nil
}

// loadServerConfig resolves the effective configuration for this invocation.
func loadServerConfig() (*config.Config, error) {
	if flagDev {
		return devModeConfig(flagDevAddress), nil
	}

	if configPath == "" {
		return nil, fmt.Errorf("config file path is required. Use -c or --config flag (or -dev)")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildGatedLogger constructs the process logger with the gate closed so the
// startup banner prints before any buffered log output.
func buildGatedLogger(cfg *config.Config) *log.GatedLogger {
	logConfig := log.DefaultConfig()
	logConfig.Level = log.ParseLogLevel(cfg.LogLevel)
	logConfig.Format = log.ParseOutputFormat(cfg.LogFormat)
	if cfg.LogFile != "" {
		logConfig.Environment = "production"
		logConfig.FileConfig = &log.FileConfig{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogRotateMegabytes,
			MaxBackups: cfg.LogRotateMaxFiles,
		}
	}

	logger, _ := log.NewGatedLogger(logConfig, log.GatedWriterConfig{
		InitialState: log.GateClosed,
	})
	return logger
}

// buildDirectory constructs the directory implementation for this server:
// the live Graph client, or the in-memory directory in dev mode.
func buildDirectory(cfg *config.Config, logger *log.GatedLogger) (provision.Directory, authz.ScopedRoleChecker, error) {
	if flagDev {
		dir := graph.NewInmemDirectory()
		return dir, dir, nil
	}

	tokens, err := graph.NewClientCredentialsProvider(cfg.Azure.TenantID, cfg.Azure.ClientID, cfg.Azure.ClientSecret)
	if err != nil {
		return nil, nil, err
	}

	callTimeout, err := cfg.CallTimeout()
	if err != nil {
		return nil, nil, err
	}

	client, err := graph.NewClient(graph.ClientConfig{
		BaseURL:     cfg.Azure.BaseURL,
		Tokens:      tokens,
		CallTimeout: callTimeout,
		Logger:      logger.WithSubsystem("graph"),
	})
	if err != nil {
		return nil, nil, err
	}
	return client, client, nil
}

func graphBaseURL(cfg *config.Config) string {
	if cfg.Azure != nil && cfg.Azure.BaseURL != "" {
		return cfg.Azure.BaseURL
	}
	return graph.DefaultBaseURL
}

// initListeners builds one listener per configured block.
func initListeners(handler http.Handler, cfg *config.Config, logger *log.GatedLogger, infoKeys *[]string, info map[string]string) ([]listener.Listener, error) {
	lns := make([]listener.Listener, 0, len(cfg.Listeners))

	for _, block := range cfg.Listeners {
		if block.Protocol != "" && block.Protocol != "tcp" {
			return nil, fmt.Errorf("listener %q: unsupported protocol %q", block.Name, block.Protocol)
		}

		ln, err := api.NewApiListener(api.ApiListenerConfig{
			Logger:          logger.WithSubsystem("listener"),
			Address:         block.Address,
			TLSCertFile:     block.TLSCertFile,
			TLSKeyFile:      block.TLSKeyFile,
			TLSClientCAFile: block.TLSClientCAFile,
			TLSEnabled:      block.TLSEnabled,
		}, handler)
		if err != nil {
			return nil, fmt.Errorf("failed to create listener %q: %w", block.Name, err)
		}
		lns = append(lns, ln)

		key := fmt.Sprintf("listener %s", block.Name)
		scheme := "http"
		if block.TLSEnabled {
			scheme = "https"
		}
		info[key] = fmt.Sprintf("%s://%s", scheme, block.Address)
		*infoKeys = append(*infoKeys, key)
	}

	return lns, nil
}
