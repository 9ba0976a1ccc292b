package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-exchange/internal/config"
	"tg-exchange/internal/logger"
	"tg-exchange/internal/models"
)

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
}

// Start starts the bot handler
func (b *BotService) Start() error {
	return b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() error {
	return b.Handler.Stop()
}

// Initialize creates the bot, registers its commands and sets up the webhook.
// status feeds the debug endpoint and may be nil.
func Initialize(ctx context.Context, cfg *config.Config, status func() string) (*BotService, *WebhookServer, error) {
	if cfg.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	var opts []telego.BotOption
	if logger.ParseLevel(cfg.Logger.Level) == logger.LevelDebug {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	bot, err := telego.NewBot(cfg.Bot.Token, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s (%s)", botUser.Username, cfg.Exchange.Sender)

	setLocalizedCommands(ctx, bot)

	err = bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	secretToken := "exchange_webhook_token_" + cfg.Bot.Token[len(cfg.Bot.Token)-6:]

	bh, server, err := SetupWebhook(ctx, bot, WebhookOptions{
		Endpoint:    cfg.Bot.Webhook.Endpoint,
		ListenPort:  cfg.Bot.Webhook.ListenPort,
		DebugPath:   cfg.Bot.Webhook.DebugPath,
		MetricsPath: cfg.Bot.Webhook.MetricsPath,
		SecretToken: secretToken,
		CertFile:    cfg.Bot.Webhook.CertFile,
		KeyFile:     cfg.Bot.Webhook.KeyFile,
		Status:      status,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &BotService{
		Bot:     bot,
		Handler: bh,
	}, server, nil
}

// group commands shown in the menu
var commandKeys = []struct {
	Command string
	DescKey string
}{
	{Command: "config", DescKey: "cmd_desc_config"},
	{Command: "config_user", DescKey: "cmd_desc_config_user"},
	{Command: "version", DescKey: "cmd_desc_version"},
}

func commandsFor(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(commandKeys))
	for _, cmd := range commandKeys {
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: models.GetTranslation(lang, cmd.DescKey),
		})
	}
	return commands
}

// setLocalizedCommands sets the group admin commands in every language
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	langCodes := map[string]string{
		models.LangEnglish:           "en",
		models.LangSimplifiedChinese: "zh",
	}
	scope := &telego.BotCommandScopeAllChatAdministrators{Type: telego.ScopeTypeAllChatAdministrators}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     commandsFor(lang),
			Scope:        scope,
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commandsFor(models.DefaultLanguage),
		Scope:    scope,
	})
	if err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}
