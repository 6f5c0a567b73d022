package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/C4T-BuT-S4D/vouch/internal/api"
	"github.com/C4T-BuT-S4D/vouch/internal/codes"
	"github.com/C4T-BuT-S4D/vouch/internal/config"
	"github.com/C4T-BuT-S4D/vouch/internal/logging"
	"github.com/C4T-BuT-S4D/vouch/internal/mailer"
	"github.com/C4T-BuT-S4D/vouch/internal/monitor"
	"github.com/C4T-BuT-S4D/vouch/internal/storage"
	"github.com/C4T-BuT-S4D/vouch/internal/verify"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/telebot.v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	setupConfig()
	logging.Init()

	cfg := config.New()
	logrus.Debugf("config: %+v", cfg.Redacted())

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid config: %v", err)
	}

	db, err := gorm.Open(dialector(cfg), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	store := storage.New(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	defer initCancel()

	if err := store.Migrate(initCtx); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	globalState, err := store.GetOrCreateGlobalState(initCtx)
	if err != nil {
		logrus.Fatalf("Failed to get or create global state: %v", err)
	}

	salt := []byte(cfg.CodeSecret)
	if len(salt) == 0 {
		if salt, err = store.GetOrCreateSecret(initCtx, "code_salt", 64); err != nil {
			logrus.Fatalf("Failed to get code salt: %v", err)
		}
	}

	// Engine calls give up after external_call_timeout; the client timeout
	// bounds the abandoned request and must outlast a long poll.
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Client: &http.Client{Timeout: pollTimeout + cfg.ExternalCallTimeout},
		Poller: &telebot.LongPoller{
			Timeout:        pollTimeout,
			LastUpdateID:   globalState.LastUpdateID,
			AllowedUpdates: []string{"message", "callback_query"},
		},
	})
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}

	granter := monitor.NewGranter(bot, cfg.GroupChatID)
	notifier := monitor.NewNotifier(cfg, bot)
	engine := verify.New(
		verify.Config{
			MaxEmailAttempts:    cfg.MaxEmailAttempts,
			ExternalCallTimeout: cfg.ExternalCallTimeout,
			StudentEmailDomain:  cfg.StudentEmailDomain,
			MailSubject:         cfg.MailSubject,
		},
		store,
		mailer.New(cfg),
		codes.New(salt, cfg.CodeTTL),
		granter,
		monitor.NewBoard(bot, store, cfg.AdminChatID),
	)

	mon := monitor.New(cfg, store, bot, engine, notifier, granter, bot.Me.Username)

	for _, updateType := range []string{
		telebot.OnText,
		telebot.OnPhoto,
		telebot.OnDocument,
		telebot.OnUserJoined,
		telebot.OnUserLeft,
		telebot.OnCallback,
	} {
		bot.Handle(updateType, mon.HandleAnyUpdate)
	}

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Start()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.RunCleaner(ctx)
	}()

	var e *echo.Echo
	if cfg.APIListenAddr != "" {
		e = echo.New()
		e.HideBanner = true
		api.NewService(cfg, engine, mon).Register(e)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.Start(cfg.APIListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("admin api failed: %v", err)
			}
		}()
	}

	<-ctx.Done()

	bot.Stop()

	if e != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("failed to shut down admin api: %v", err)
		}
	}

	logrus.Info("waiting for services to finish")
	wg.Wait()
}

const pollTimeout = 10 * time.Second

func dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DatabaseDriver == "sqlite" {
		return sqlite.Open(cfg.SQLitePath)
	}
	return postgres.Open(cfg.PostgresDSN)
}

func setupConfig() {
	viper.SetDefault("bot_handle_timeout", "10s")
	viper.SetDefault("greeting_timeout", "10m")
	viper.SetDefault("send_rate", 25)
	config.SetupCommon()
}
