package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"mogzi/internal/config"
	"mogzi/internal/engine"
	"mogzi/internal/logging"
	"mogzi/internal/orchestrator"
	"mogzi/internal/provider"
	"mogzi/internal/scrollback"
	"mogzi/internal/sessionstore"
	"mogzi/internal/toolcache"
)

// Version is the semantic version reported by --version.
const Version = "0.1.0"

const cacheTTL = 24 * time.Hour

func main() {
	os.Exit(run())
}

func run() int {
	if err := logging.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logging: %v\n", err)
	}

	flagSession := flag.String("s", "", "load an existing session by id or name")
	flagList := flag.Bool("l", false, "list sessions")
	flagVersion := flag.Bool("version", false, "print version and exit")
	flagStatus := flag.Bool("status", false, "print status and exit")
	flagMode := flag.String("mode", "chat", "run mode: chat | oneshot")
	flagProfile := flag.String("profile", "", "provider profile to use")
	flagApprovals := flag.String("tool-approvals", "", "tool approvals: readonly | all")
	flag.StringVar(flagSession, "session", "", "load an existing session by id or name")
	flag.BoolVar(flagList, "list", false, "list sessions")
	flag.Parse()

	if *flagVersion {
		fmt.Printf("mogzi %s\n", Version)
		return 0
	}

	cfg := loadConfig()
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading credentials: %v\n", err)
		return 1
	}

	if *flagApprovals != "" {
		if *flagApprovals != "readonly" && *flagApprovals != "all" {
			fmt.Fprintf(os.Stderr, "Error: --tool-approvals must be readonly or all\n")
			return 1
		}
		cfg.Tools.Approvals = *flagApprovals
	}
	mode := orchestrator.Mode(*flagMode)
	if mode != orchestrator.ModeChat && mode != orchestrator.ModeOneshot {
		fmt.Fprintf(os.Stderr, "Error: --mode must be chat or oneshot\n")
		return 1
	}

	registry := buildRegistry(cfg, creds)
	profileName, providerCfg, err := resolveProvider(cfg, registry, *flagProfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *flagStatus {
		printStatus(profileName, providerCfg, cfg)
		return 0
	}

	prov, err := registry.Create(profileName, providerCfg.Model, provider.Options{
		Temperature: providerCfg.Temperature,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating provider: %v\n", err)
		return 1
	}
	defer prov.Close()

	chatsRoot, err := config.HomeChatsRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving home directory: %v\n", err)
		return 1
	}
	store, err := sessionstore.Open(chatsRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %v\n", err)
		return 1
	}

	if *flagList {
		listSessions(store, cfg.Session.ListLimitOrDefault())
		return 0
	}

	sess, err := resolveSession(store, *flagSession)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	cache := openToolCache()
	defer cache.Close()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve working directory: %v\n", err)
		return 1
	}

	width := 80
	if w, _, sizeErr := term.GetSize(os.Stdout.Fd()); sizeErr == nil && w > 0 {
		width = w
	}
	terminal := scrollback.New(os.Stdout, width)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch := orchestrator.New(ctx, prov, store, sess, cwd, cfg.Tools, cfg.Session, profileName, mode, terminal, cache)

	if mode == orchestrator.ModeOneshot {
		return runOneshot(ctx, orch, flag.Args())
	}

	if err := terminal.Initialize(int(os.Stdin.Fd())); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing terminal: %v\n", err)
		return 1
	}
	defer terminal.Shutdown()

	eng := engine.New(orch, terminal, profileName, providerCfg.Model)
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runOneshot submits the remaining CLI arguments as a single prompt and
// exits when the turn completes.
func runOneshot(ctx context.Context, orch *orchestrator.Orchestrator, args []string) int {
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "Error: oneshot mode needs a prompt argument")
		return 1
	}
	orch.SubmitInput(ctx, prompt)
	orch.History.Close()
	return 0
}

// loadConfig reads config.toml from the data directory, falling back to
// a built-in single-provider default when no file exists so a fresh
// install still starts.
func loadConfig() *config.Config {
	if dataDir, err := config.DataDir(); err == nil {
		path := filepath.Join(dataDir, "config.toml")
		if _, statErr := os.Stat(path); statErr == nil {
			cfg, err := config.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			return cfg
		}
	}
	return config.Default()
}

func buildRegistry(cfg *config.Config, creds *config.Credentials) *provider.Registry {
	registry := provider.NewRegistry()
	for name, pcfg := range cfg.Providers {
		apiKey := creds.GetAPIKey(name)
		switch pcfg.KindOrDefault() {
		case "opencode":
			registry.RegisterFactory(name, provider.NewOpenCodeFactory(name, pcfg.Endpoint, apiKey))
		case "vllm":
			registry.RegisterFactory(name, provider.NewVLLMFactory(name, pcfg.Endpoint, apiKey))
		default:
			registry.RegisterFactory(name, provider.NewOllamaFactory(name, pcfg.Endpoint))
		}
	}
	return registry
}

func resolveProvider(cfg *config.Config, registry *provider.Registry, profile string) (string, config.ProviderConfig, error) {
	name := profile
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		providers := registry.List()
		if len(providers) == 0 {
			return "", config.ProviderConfig{}, errors.New("no providers configured")
		}
		name = providers[0]
	}
	pcfg, ok := cfg.Providers[name]
	if !ok {
		return "", config.ProviderConfig{}, fmt.Errorf("provider profile %q not found", name)
	}
	return name, pcfg, nil
}

func printStatus(profileName string, pcfg config.ProviderConfig, cfg *config.Config) {
	approvals := cfg.Tools.Approvals
	if approvals == "" {
		approvals = "all"
	}
	fmt.Printf("profile: %s\n", profileName)
	fmt.Printf("provider: %s (%s)\n", pcfg.KindOrDefault(), pcfg.Endpoint)
	fmt.Printf("model: %s\n", pcfg.Model)
	fmt.Printf("tool_approvals: %s\n", approvals)
}

func openToolCache() *toolcache.Cache {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache dir failed: %v\n", err)
		return nil
	}
	cache, err := toolcache.Open(filepath.Join(dataDir, "cache.db"), cacheTTL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cache open failed: %v\n", err)
		return nil
	}
	return cache
}

func listSessions(store *sessionstore.Store, limit int) {
	summaries, err := store.List(limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
		return
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions found")
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s  %s  %s\n", s.ID, s.LastModifiedAt.Format("2006-01-02 15:04"), s.Name)
	}
}

func resolveSession(store *sessionstore.Store, idOrName string) (sessionstore.Session, error) {
	if idOrName != "" {
		return store.Load(idOrName)
	}
	return store.CreateNew()
}
