package main

import (
	"context"
	"errors"
	"hash/fnv"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/config"
	"rx-reader/api/internal/engines"
	"rx-reader/api/internal/httpserver"
	"rx-reader/api/internal/logger"
	"rx-reader/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	flush := logger.InitSentry(cfg.SentryDSN, cfg.Env, "bot")
	defer flush()

	if cfg.TelegramBotToken == "" {
		logrus.Fatal("TELEGRAM_BOT_TOKEN is empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeEngines, err := engines.NewPipeline(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("engines")
	}
	defer closeEngines()

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logrus.WithError(err).Fatal("telegram")
	}
	bot.Debug = false
	logrus.WithField("bot", bot.Self.UserName).Info("telegram authorized")

	r := telegram.NewRouter(bot, p)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Health("ok"))

	addr := "0.0.0.0:" + cfg.Port

	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL != "" {
		if err := startWebhookMode(ctx, addr, mux, bot, r, webhookURL); err != nil {
			logrus.WithError(err).Fatal("webhook")
		}
		return
	}
	startPollingMode(ctx, addr, mux, bot, r)
}

// ---------------- Modes -----------------

func startWebhookMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router, baseURL string) error {
	// secret webhook path derived from the token
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return err
	}

	mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		upd, err := bot.HandleUpdate(req)
		if err != nil {
			logrus.WithError(err).Warn("bad webhook update")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// reply to Telegram right away; processing continues in background
		go r.HandleUpdate(*upd)
	})

	logrus.Infof("webhook listening on %s%s", addr, path)
	return httpserver.Run(ctx, addr, mux)
}

func startPollingMode(ctx context.Context, addr string, mux *http.ServeMux, bot *tgbotapi.BotAPI, r *telegram.Router) {
	go func() {
		if err := httpserver.Run(ctx, addr, mux); err != nil {
			logrus.WithError(err).Error("health server")
		}
	}()

	runPolling(ctx, bot, r.HandleUpdate)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func runPolling(ctx context.Context, bot *tgbotapi.BotAPI, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			logrus.Info("polling: context cancelled")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			logrus.WithError(err).Warnf("polling error; retry in %v", d)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			time.Sleep(200 * time.Millisecond)
		}
	}
}

func shortHash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return strconv.FormatUint(h.Sum64(), 16)
}
