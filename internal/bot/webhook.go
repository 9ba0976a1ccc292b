package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tg-exchange/internal/logger"
)

// WebhookServer represents a webhook HTTP server
type WebhookServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

// Start starts the webhook server
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		return ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	}

	logger.Infof("WARNING: Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return ws.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

type WebhookOptions struct {
	Endpoint    string
	ListenPort  string
	DebugPath   string
	MetricsPath string
	SecretToken string
	CertFile    string
	KeyFile     string
	Status      func() string
}

// updates the node needs: group messages, exchange and hide channel posts,
// and the bot's own membership changes
var allowedUpdates = []string{"message", "channel_post", "my_chat_member"}

// SetupWebhook registers the webhook and builds the HTTP server serving it
func SetupWebhook(ctx context.Context, bot *telego.Bot, opts WebhookOptions) (*th.BotHandler, *WebhookServer, error) {
	if opts.Endpoint == "" {
		return nil, nil, fmt.Errorf("webhook endpoint is required")
	}

	listenPort := opts.ListenPort
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	if (opts.CertFile == "" || opts.KeyFile == "") && !strings.HasPrefix(opts.Endpoint, "https://") {
		return nil, nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	parsedURL, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}
	webhookPath := parsedURL.Path
	if webhookPath == "" {
		webhookPath = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", webhookPath)
	}

	logger.Infof("Setting webhook to: %s", opts.Endpoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            opts.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    opts.SecretToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	if info, err := bot.GetWebhookInfo(ctx); err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, PendingUpdateCount=%d, AllowedUpdates=%v",
			info.URL, info.PendingUpdateCount, info.AllowedUpdates)
		if info.LastErrorDate > 0 {
			logger.Warningf("Webhook last error: [%d] %s", info.LastErrorDate, info.LastErrorMessage)
		}
	}

	mux := http.NewServeMux()
	if opts.MetricsPath != "" {
		mux.Handle(opts.MetricsPath, promhttp.Handler())
	}
	if opts.DebugPath != "" {
		mux.HandleFunc(opts.DebugPath, debugHandler(ctx, bot, opts))
	}

	server := &http.Server{
		Addr:              "0.0.0.0:" + listenPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	updates, err := bot.UpdatesViaWebhook(ctx,
		telego.WebhookHTTPServeMux(mux, webhookPath, opts.SecretToken),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get updates channel: %w", err)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	return bh, &WebhookServer{
		server:   server,
		certFile: opts.CertFile,
		keyFile:  opts.KeyFile,
	}, nil
}

func debugHandler(ctx context.Context, bot *telego.Bot, opts WebhookOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

		var b strings.Builder
		b.WriteString("Exchange node webhook server is running\n\n")
		if botUser, err := bot.GetMe(ctx); err == nil {
			fmt.Fprintf(&b, "Bot username: %s\n", botUser.Username)
		}
		fmt.Fprintf(&b, "Webhook path: %s\n", opts.Endpoint)

		info, err := bot.GetWebhookInfo(ctx)
		if err == nil {
			fmt.Fprintf(&b, "\nWebhook Info:\nURL: %s\nPending Updates: %d\n", info.URL, info.PendingUpdateCount)
			if info.LastErrorDate > 0 {
				fmt.Fprintf(&b, "Last Error: [%s] %s\n",
					time.Unix(int64(info.LastErrorDate), 0).Format("2006-01-02 15:04:05"), info.LastErrorMessage)
			}
		} else {
			fmt.Fprintf(&b, "\nError getting webhook info: %v\n", err)
		}
		if opts.Status != nil {
			b.WriteString(opts.Status())
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(b.String()))
	}
}
