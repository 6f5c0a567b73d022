package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	TelegramToken    string        `mapstructure:"telegram_token"`
	BotHandleTimeout time.Duration `mapstructure:"bot_handle_timeout"`
	GreetingTimeout  time.Duration `mapstructure:"greeting_timeout"`
	SendRate         float64       `mapstructure:"send_rate"`

	GroupChatID    int64 `mapstructure:"group_chat_id"`
	AdminChatID    int64 `mapstructure:"admin_chat_id"`
	AnnounceChatID int64 `mapstructure:"announce_chat_id"`

	MaxEmailAttempts    int           `mapstructure:"max_email_attempts"`
	CodeSecret          string        `mapstructure:"code_secret"`
	CodeTTL             time.Duration `mapstructure:"code_ttl"`
	ExternalCallTimeout time.Duration `mapstructure:"external_call_timeout"`
	StudentEmailDomain  string        `mapstructure:"student_email_domain"`

	MailAPIURL  string `mapstructure:"mail_api_url"`
	MailDomain  string `mapstructure:"mail_domain"`
	MailAPIKey  string `mapstructure:"mail_api_key"`
	MailFrom    string `mapstructure:"mail_from"`
	MailSubject string `mapstructure:"mail_subject"`

	APIListenAddr string `mapstructure:"api_listen_addr"`
	APIToken      string `mapstructure:"api_token"`

	DatabaseDriver string `mapstructure:"database_driver"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`
	SQLitePath     string `mapstructure:"sqlite_path"`
}

func New() *Config {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		logrus.Fatalf("unmarshalling config: %v", err)
	}
	return cfg
}

func (c *Config) Validate() error {
	var err error
	if c.TelegramToken == "" {
		err = errors.Join(err, errors.New("telegram_token is required"))
	}
	if c.GroupChatID == 0 {
		err = errors.Join(err, errors.New("group_chat_id is required"))
	}
	if c.AdminChatID == 0 {
		err = errors.Join(err, errors.New("admin_chat_id is required"))
	}
	if c.MaxEmailAttempts <= 0 {
		err = errors.Join(err, fmt.Errorf("max_email_attempts must be positive, got %d", c.MaxEmailAttempts))
	}
	if c.CodeTTL < 0 {
		err = errors.Join(err, fmt.Errorf("code_ttl must not be negative, got %v", c.CodeTTL))
	}
	if c.APIListenAddr != "" && c.APIToken == "" {
		err = errors.Join(err, errors.New("api_token is required when api_listen_addr is set"))
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		err = errors.Join(err, fmt.Errorf("unknown database_driver %q", c.DatabaseDriver))
	}
	return err
}

// Redacted returns a copy safe for logging.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.TelegramToken, &cp.CodeSecret, &cp.MailAPIKey, &cp.APIToken, &cp.PostgresDSN} {
		if *s != "" {
			*s = "***"
		}
	}
	return cp
}

func SetupCommon() {
	viper.SetDefault("max_email_attempts", 3)
	viper.SetDefault("code_ttl", "30m")
	viper.SetDefault("external_call_timeout", "10s")
	viper.SetDefault("student_email_domain", "student.unsw.edu.au")
	viper.SetDefault("mail_api_url", "https://api.mailgun.net")
	viper.SetDefault("mail_subject", "Server verification")
	viper.SetDefault("database_driver", "postgres")
	viper.SetDefault("sqlite_path", "vouch.db")
	viper.SetEnvPrefix("VOUCH")

	viper.MustBindEnv("telegram_token")
	viper.MustBindEnv("group_chat_id")
	viper.MustBindEnv("admin_chat_id")
	viper.MustBindEnv("mail_domain")
	viper.MustBindEnv("mail_api_key")
	viper.MustBindEnv("mail_from")
	viper.AutomaticEnv()
}
