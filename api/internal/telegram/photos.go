package telegram

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"rx-reader/api/internal/pipeline"
	"rx-reader/api/internal/util"
)

func (r *Router) acceptPhoto(msg tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}
	imgBytes, err := r.download(url)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := batchKey(cid, msg.MediaGroupID)
	bi, _ := r.batches.LoadOrStore(key, &photoBatch{
		ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID, images: make([][]byte, 0, 4),
	})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.images = append(b.images, imgBytes)
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(r.Debounce, func() { r.processBatch(key) })
	b.mu.Unlock()

	if first {
		r.send(cid, "Photo received, reading the prescription…")
	}
}

func (r *Router) processBatch(key string) {
	bi, ok := r.batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	chatID := b.ChatID
	b.mu.Unlock()

	if len(images) == 0 {
		return
	}

	data := images[0]
	if len(images) > 1 {
		merged, err := combineAsOne(images)
		if err != nil {
			r.SendError(chatID, fmt.Errorf("merge pages: %w", err))
			return
		}
		data = merged
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	ctx = pipeline.WithRequestID(ctx, fmt.Sprintf("tg-%d-%d", chatID, time.Now().UnixNano()))

	items, err := r.Proc.Process(ctx, data)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "pages": len(images)}).Error("telegram: prescription failed")
		r.SendError(chatID, err)
		return
	}
	r.SendResult(chatID, items)
}

// combineAsOne stacks pages vertically, centred on a white canvas, and
// downscales the result to at most maxPixels.
func combineAsOne(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	maxW, sumH := 0, 0
	for _, b := range images {
		img, err := pipeline.DecodeRGB(b)
		if err != nil {
			return nil, err
		}
		decoded = append(decoded, img)
		if w := img.Bounds().Dx(); w > maxW {
			maxW = w
		}
		sumH += img.Bounds().Dy()
	}
	if maxW == 0 || sumH == 0 {
		return nil, fmt.Errorf("empty images")
	}

	dst := imaging.New(maxW, sumH, color.White)
	y := 0
	for _, img := range decoded {
		x := (maxW - img.Bounds().Dx()) / 2
		dst = imaging.Paste(dst, img, image.Pt(x, y))
		y += img.Bounds().Dy()
	}

	final := dst
	if totalPx := maxW * sumH; totalPx > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(totalPx))
		newW := max(int(float64(maxW)*scale+0.5), 1)
		final = imaging.Resize(dst, newW, 0, imaging.Lanczos)
	}

	return util.EncodeImage(final, imaging.JPEG)
}

func (r *Router) download(url string) ([]byte, error) {
	resp, err := r.rc.R().Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode(), util.Truncate(resp.String(), 200))
	}
	return resp.Body(), nil
}
