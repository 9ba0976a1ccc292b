package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Store    StoreConfig    `mapstructure:"store"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// Telegram bot configuration
type BotConfig struct {
	Token   string        `mapstructure:"token"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ListenPort  string `mapstructure:"listen_port"`
	DebugPath   string `mapstructure:"debug_path"`
	MetricsPath string `mapstructure:"metrics_path"`
	CertFile    string `mapstructure:"cert_file"`
	KeyFile     string `mapstructure:"key_file"`
}

// logging configuration
type LoggerConfig struct {
	Directory  string            `mapstructure:"directory"`
	Rotation   LogRotationConfig `mapstructure:"rotation"`
	Timezone   string            `mapstructure:"timezone"`
	TimeFormat string            `mapstructure:"time_format"`
	Level      string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// audit database; the exchange itself never depends on it
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"`
}

// ExchangeConfig describes this node and the channels it talks over.
type ExchangeConfig struct {
	Sender             string          `mapstructure:"sender"`
	ProjectName        string          `mapstructure:"project_name"`
	ProjectLink        string          `mapstructure:"project_link"`
	Lang               string          `mapstructure:"lang"`
	ExchangeChannelID  int64           `mapstructure:"exchange_channel_id"`
	HideChannelID      int64           `mapstructure:"hide_channel_id"`
	LoggingChannelID   int64           `mapstructure:"logging_channel_id"`
	DebugChannelID     int64           `mapstructure:"debug_channel_id"`
	TestGroupID        int64           `mapstructure:"test_group_id"`
	Password           string          `mapstructure:"password"`
	EncryptAttachments bool            `mapstructure:"encrypt_attachments"`
	BotIDs             []int64         `mapstructure:"bot_ids"`
	Receivers          ReceiversConfig `mapstructure:"receivers"`
}

// receiver lists used when publishing
type ReceiversConfig struct {
	Bad     []string `mapstructure:"bad"`
	Declare []string `mapstructure:"declare"`
	Ignore  []string `mapstructure:"ignore"`
	Preview []string `mapstructure:"preview"`
}

type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
	TmpDir  string `mapstructure:"tmp_dir"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Unit        time.Duration `mapstructure:"unit"`
}

type WorkersConfig struct {
	Count     int `mapstructure:"count"`
	QueueSize int `mapstructure:"queue_size"`
}

// periodic job schedule
type JobsConfig struct {
	AdminRefresh    time.Duration `mapstructure:"admin_refresh"`
	RecordedReset   time.Duration `mapstructure:"recorded_reset"`
	IgnoreList      time.Duration `mapstructure:"ignore_list"`
	MonthlyResetDay int           `mapstructure:"monthly_reset_day"`
	Backup          bool          `mapstructure:"backup"`
	BackupInterval  time.Duration `mapstructure:"backup_interval"`
}

type EngineConfig struct {
	ForgiveThreshold int           `mapstructure:"forgive_threshold"`
	ConfigLock       time.Duration `mapstructure:"config_lock"`
	ReportDelete     time.Duration `mapstructure:"report_delete"`
}

var cfg *Config

// BindFlags registers the command line flags that may override the config file.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "config.yaml", "path to the configuration file")
	fs.String("log-level", "", "override logger.level")
	fs.String("data-dir", "", "override store.data_dir")
}

func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if flags != nil {
		bindFlag(v, flags, "logger.level", "log-level")
		bindFlag(v, flags, "store.data_dir", "data-dir")
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	// Unmarshal configuration
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// only flags the user actually set override the file
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, name string) {
	f := flags.Lookup(name)
	if f == nil || !f.Changed {
		return
	}
	_ = v.BindPFlag(key, f)
}

func (c *Config) validate() error {
	if c.Exchange.Sender == "" {
		return fmt.Errorf("exchange.sender is required")
	}
	if c.Exchange.ExchangeChannelID == 0 {
		return fmt.Errorf("exchange.exchange_channel_id is required")
	}
	if c.Exchange.Password == "" && c.Exchange.EncryptAttachments {
		return fmt.Errorf("exchange.password is required when attachments are encrypted")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.webhook.listen_port", "8443")
	v.SetDefault("bot.webhook.debug_path", "/debug")
	v.SetDefault("bot.webhook.metrics_path", "/metrics")
	v.SetDefault("bot.webhook.cert_file", "")
	v.SetDefault("bot.webhook.key_file", "")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.timezone", "Local")
	v.SetDefault("logger.time_format", "2006/01/02 15:04:05")
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.path", "data/audit.db")

	v.SetDefault("exchange.sender", "USER")
	v.SetDefault("exchange.project_name", "SCP-079")
	v.SetDefault("exchange.lang", "zh_CN")
	v.SetDefault("exchange.encrypt_attachments", true)
	v.SetDefault("exchange.receivers.bad", []string{
		"ANALYZE", "AVATAR", "CAPTCHA", "CLEAN", "LANG", "LONG", "MANAGE",
		"NOFLOOD", "NOPORN", "NOSPAM", "RECHECK", "TIP", "USER", "WARN", "WATCH",
	})
	v.SetDefault("exchange.receivers.declare", []string{
		"ANALYZE", "AVATAR", "CAPTCHA", "CLEAN", "LANG", "LONG",
		"NOFLOOD", "NOPORN", "NOSPAM", "RECHECK", "TIP", "USER", "WARN", "WATCH",
	})
	v.SetDefault("exchange.receivers.ignore", []string{"CAPTCHA", "TIP"})
	v.SetDefault("exchange.receivers.preview", []string{"CLEAN", "LANG", "NOPORN", "NOSPAM", "RECHECK"})

	v.SetDefault("store.data_dir", "data")
	v.SetDefault("store.tmp_dir", "tmp")

	v.SetDefault("retry.max_attempts", 10)
	v.SetDefault("retry.unit", time.Second)

	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queue_size", 256)

	v.SetDefault("jobs.admin_refresh", 24*time.Hour)
	v.SetDefault("jobs.recorded_reset", 10*time.Minute)
	v.SetDefault("jobs.ignore_list", time.Hour)
	v.SetDefault("jobs.monthly_reset_day", 1)
	v.SetDefault("jobs.backup", true)
	v.SetDefault("jobs.backup_interval", 24*time.Hour)

	v.SetDefault("engine.forgive_threshold", 3)
	v.SetDefault("engine.config_lock", 310*time.Second)
	v.SetDefault("engine.report_delete", 180*time.Second)
}
