package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/prescription"
	"rx-reader/api/internal/util"
)

// Bot is the part of *tgbotapi.BotAPI the router needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Processor interface {
	Process(ctx context.Context, data []byte) ([]prescription.Medicine, error)
}

type Router struct {
	Bot     Bot
	Proc    Processor
	Timeout time.Duration
	// Debounce is how long to wait for more pages of the same album.
	Debounce time.Duration

	rc      *resty.Client
	batches sync.Map // key -> *photoBatch
}

func NewRouter(bot Bot, proc Processor) *Router {
	return &Router{
		Bot:      bot,
		Proc:     proc,
		Timeout:  180 * time.Second,
		Debounce: debounce,
		rc:       resty.New().SetTimeout(60 * time.Second),
	}
}

func (r *Router) HandleCommand(upd tgbotapi.Update) {
	cid := upd.Message.Chat.ID
	switch upd.Message.Command() {
	case "start", "help":
		r.send(cid, "Send a photo of a prescription and I will list the medicines, dosages and how often to take them.\nSeveral photos sent as one album are read as one prescription.\nCommands: /health")
	case "health":
		r.send(cid, "✅ OK")
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.IsCommand() {
		r.HandleCommand(upd)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		r.acceptPhoto(*msg, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptPhoto(*msg, msg.Document.FileID)
	case msg.Text != "":
		r.send(msg.Chat.ID, "Please send the prescription as a photo or an image file.")
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("telegram send failed")
	}
}

func (r *Router) SendResult(chatID int64, items []prescription.Medicine) {
	r.send(chatID, util.Truncate(FormatItems(items), maxMessageBytes))
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("Could not read the prescription: %v", err))
}

// FormatItems renders medicine records as a numbered list.
func FormatItems(items []prescription.Medicine) string {
	if len(items) == 0 {
		return "No medicines found. Try a sharper photo with the whole prescription in frame."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "💊 Medicines found: %d\n", len(items))
	for i, it := range items {
		name := strings.TrimSpace(it.Medicine)
		if name == "" {
			name = "?"
		}
		b.WriteString("\n" + strconv.Itoa(i+1) + ". " + name)
		var details []string
		if d := strings.TrimSpace(it.Dosage); d != "" {
			details = append(details, d)
		}
		if f := strings.TrimSpace(it.TimesPerDay); f != "" {
			details = append(details, f)
		}
		if len(details) > 0 {
			b.WriteString(" (" + strings.Join(details, ", ") + ")")
		}
	}
	return b.String()
}
