package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pelusa-v/pelusa-chat-client.git/internal/api"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/chat"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/config"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/handlers"
	"github.com/pelusa-v/pelusa-chat-client.git/internal/state"
)

var (
	cfgFile    string
	serverURL  string
	listenAddr string
	statePath  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pelusa-chat-client",
	Short: "Local session core for pelusa chat",
	Long: "Keeps the chat roster, message logs and unread counters of one user\n" +
		"in sync with the server over HTTP pulls and a live websocket, and\n" +
		"serves that state to the local view surfaces.",
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "chat server base URL")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "local address for the view surfaces")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "path of the persisted client state database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}

	zcfg := zap.NewProductionConfig()
	if verbose || cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.ServerURL, logger)
	username := ""
	if u, cookie, ok, serr := store.Session(); serr == nil && ok {
		username = u
		client.SetSessionCookie(cookie)
		logger.Info("restored session", zap.String("user", u))
	}

	session := chat.NewSession(username, client, store, logger)
	workflow := chat.NewWorkflow(client, session, store, logger)
	relay := handlers.NewLiveRelay(session, logger)
	session.SetEventHook(relay.Notify)

	// Dialing and redialing live outside the session core.
	go maintainLiveChannel(session, client, logger)

	app := fiber.New()
	app.Static("/", "./public")
	handlers.New(session, workflow, client, store, relay, logger).Register(app)

	logger.Info("listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("server", cfg.ServerURL))
	return app.Listen(cfg.ListenAddr)
}

// maintainLiveChannel keeps one push connection attached to the session
// whenever a login is held, redialing after drops.
func maintainLiveChannel(session *chat.Session, client *api.Client, logger *zap.Logger) {
	const redialDelay = 3 * time.Second
	live := session.Live()
	for {
		if !client.Authenticated() {
			time.Sleep(redialDelay)
			continue
		}

		live.Connecting()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := client.DialLive(ctx)
		cancel()
		if err != nil {
			live.Detach()
			logger.Warn("live dial failed", zap.Error(err))
			time.Sleep(redialDelay)
			continue
		}

		live.Attach(conn)
		logger.Info("live channel connected")
		go live.WritePump()
		live.ReadPump() // blocks until the connection drops
		logger.Warn("live channel disconnected")
		time.Sleep(redialDelay)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
