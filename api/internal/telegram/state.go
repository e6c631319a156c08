package telegram

import (
	"strconv"
	"sync"
	"time"
)

const (
	debounce  = 1200 * time.Millisecond
	maxPixels = 18_000_000

	// Telegram caps messages at 4096 characters
	maxMessageBytes = 3900
)

type photoBatch struct {
	ChatID       int64
	Key          string // "grp:<mediaGroupID>" | "chat:<chatID>"
	MediaGroupID string

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
}

func batchKey(chatID int64, mediaGroupID string) string {
	if mediaGroupID != "" {
		return "grp:" + mediaGroupID
	}
	return "chat:" + strconv.FormatInt(chatID, 10)
}
