package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scipunch/newsbrief/agent"
	"github.com/scipunch/newsbrief/briefing"
	"github.com/scipunch/newsbrief/config"
	"github.com/scipunch/newsbrief/fetcher"
	"github.com/scipunch/newsbrief/session"
)

func main() {
	if os.Getenv("DEBUG") != "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var cfgPath string
	var sessionID string
	var cleanSessions bool
	flag.StringVar(&cfgPath, "config", config.DefaultPath(), "path to a TOML config")
	flag.StringVar(&sessionID, "session", "", "session ID to resume (default: start a fresh one)")
	flag.BoolVar(&cleanSessions, "clean", false, "remove all stored sessions")
	flag.Parse()

	// Read config and create if default is missing
	conf, err := config.Read(cfgPath)
	if errors.Is(err, os.ErrNotExist) && cfgPath == config.DefaultPath() {
		if err := config.Write(cfgPath, conf); err != nil {
			log.Fatalf("failed to write default config with %s", err)
		}
	} else if err != nil {
		log.Fatalf("failed to read config with %s", err)
	}
	if len(conf.Feeds) == 0 {
		log.Fatalf("no feeds configured in %s", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(conf)
	if err != nil {
		log.Fatalf("failed to initialize session store: %s", err)
	}
	defer store.Close()

	// Handle -clean flag
	if cleanSessions {
		if err := store.Clear(ctx); err != nil {
			log.Fatalf("failed to clear sessions: %s", err)
		}
		slog.Info("sessions cleared successfully")
		return
	}

	if stats, err := store.Stats(ctx); err != nil {
		slog.Warn("failed to get session stats", "error", err)
	} else if stats.Sessions > 0 {
		slog.Info("session store opened", "sessions", stats.Sessions, "oldest", stats.Oldest)
	}

	// Load credentials (file, environment, or interactive prompt)
	creds, err := config.LoadOrPromptGeminiCredentials(config.DefaultCredentialsPath())
	if err != nil {
		log.Fatalf("failed to load credentials: %s", err)
	}

	svc := briefing.NewService(
		fetcher.New(http.DefaultClient),
		conf.Feeds,
		conf.MaxItems,
		conf.FetchTimeout(),
	)
	manager := session.NewManager(store)

	assistant, err := agent.New(ctx, creds, svc, manager)
	if err != nil {
		log.Fatalf("failed to initialize agent: %s", err)
	}

	if sessionID == "" {
		sessionID = newSessionID()
	}
	slog.Info("chat ready", "session", sessionID, "model", creds.Model, "feeds", len(conf.Feeds))

	fmt.Println("News & Chat Assistant")
	fmt.Println("Ask for news (e.g. 'latest news', 'headlines for yesterday'), follow up, or just chat.")
	fmt.Println("Type 'exit' or press Ctrl-D to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			slog.Info("interrupted by user, exiting gracefully")
			return
		default:
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := assistant.Chat(ctx, sessionID, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println()
				slog.Info("interrupted by user, exiting gracefully")
				return
			}
			fmt.Printf("Something went wrong: %s\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", reply)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("failed to read input", "error", err)
	}
	fmt.Println("Bye!")
}

// newStore picks the session backend: SQLite when a database path is
// configured, otherwise process-lifetime memory.
func newStore(conf config.Config) (session.Store, error) {
	if conf.DatabasePath == "" {
		return session.NewMemoryStore(), nil
	}
	return session.NewSQLiteStore(conf.DatabasePath)
}

// newSessionID returns an ID like cli_1713600000_a1b2c3d4.
func newSessionID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("cli_%d", time.Now().Unix())
	}
	return fmt.Sprintf("cli_%d_%s", time.Now().Unix(), hex.EncodeToString(buf))
}
