package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/loungeremote/internal/gateway"
)

const maxTelegramMessage = 4096

const helpText = `Commands:
/play /pause /next /previous /skip
/mute /unmute /volume N /seek S
/cast VIDEO [LIST] /queue VIDEO /autoplay on|off
/status /screens /use SCREEN
Sending a YouTube link casts it.`

// sender is the part of tgbotapi.BotAPI the adapter replies through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges Telegram chats to the gateway.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	out     sender
	gateway *gateway.Gateway
	allowed map[int64]bool

	mu       sync.Mutex
	selected map[int64]string
}

// New creates a Telegram adapter. An empty allowedChats accepts every chat.
func New(token string, gw *gateway.Gateway, allowedChats []int64) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := newAdapter(bot, gw, allowedChats)
	a.bot = bot
	return a, nil
}

func newAdapter(out sender, gw *gateway.Gateway, allowedChats []int64) *Adapter {
	a := &Adapter{
		out:      out,
		gateway:  gw,
		selected: make(map[int64]string),
	}
	if len(allowedChats) > 0 {
		a.allowed = make(map[int64]bool, len(allowedChats))
		for _, id := range allowedChats {
			a.allowed[id] = true
		}
	}
	return a
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)
	slog.Info("telegram bot started", "username", a.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if a.allowed != nil && !a.allowed[chatID] {
		slog.Warn("telegram message from unknown chat", "chat_id", chatID)
		return
	}

	if msg.IsCommand() {
		a.handleCommand(ctx, chatID, msg.Command(), strings.Fields(msg.CommandArguments()))
		return
	}

	// Bare links cast.
	text := strings.TrimSpace(msg.Text)
	if _, _, err := gateway.ParseVideo(text); err == nil && strings.Contains(text, "youtu") {
		a.handleCommand(ctx, chatID, "cast", []string{text})
		return
	}
	a.sendResponse(chatID, helpText)
}

func (a *Adapter) handleCommand(ctx context.Context, chatID int64, name string, args []string) {
	switch name {
	case "start", "help":
		a.sendResponse(chatID, helpText)
		return

	case "screens":
		var b strings.Builder
		for _, r := range a.gateway.Remotes() {
			st := r.Status()
			fmt.Fprintf(&b, "%s (%s): %s\n", st.ScreenName, st.ScreenID, st.State)
		}
		if b.Len() == 0 {
			b.WriteString("No screens connected.")
		}
		a.sendResponse(chatID, b.String())
		return

	case "use":
		if len(args) != 1 {
			a.sendResponse(chatID, "Usage: /use SCREEN")
			return
		}
		r, err := a.gateway.Remote(args[0])
		if err != nil {
			a.sendResponse(chatID, err.Error())
			return
		}
		a.mu.Lock()
		a.selected[chatID] = r.ScreenID()
		a.mu.Unlock()
		a.sendResponse(chatID, "Using "+r.Name()+".")
		return

	case "status":
		r, err := a.gateway.Remote(a.screen(chatID))
		if err != nil {
			a.sendResponse(chatID, err.Error())
			return
		}
		a.sendResponse(chatID, formatStatus(r.Status()))
		return
	}

	cmd, err := gateway.ParseCommand(name, args)
	if err != nil {
		a.sendResponse(chatID, err.Error())
		return
	}
	_, err = a.gateway.Dispatch(a.screen(chatID), cmd, "telegram", gateway.WithOnComplete(func(err error) {
		if err != nil {
			a.sendResponse(chatID, "Failed: "+err.Error())
			return
		}
		a.sendResponse(chatID, "Done: "+cmd.Name())
	}))
	if err != nil {
		slog.Error("telegram dispatch failed", "chat_id", chatID, "command", name, "error", err)
		a.sendResponse(chatID, err.Error())
	}
}

// SendTo delivers message to a "telegram:<chat id>" target.
func (a *Adapter) SendTo(target, message string) error {
	raw, ok := strings.CutPrefix(target, "telegram:")
	if !ok {
		return fmt.Errorf("not a telegram target: %s", target)
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", raw, err)
	}
	a.sendResponse(chatID, message)
	return nil
}

func (a *Adapter) screen(chatID int64) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected[chatID]
}

func formatStatus(st gateway.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", st.ScreenName, st.State)
	if pb := st.Playback; pb != nil {
		state := pb.State
		if ps, err := pb.PlayerState(); err == nil {
			state = ps.String()
		}
		fmt.Fprintf(&b, "%s %s / %s (%s)\n", pb.VideoID, clock(pb.CurrentTime), clock(pb.Duration), state)
		fmt.Fprintf(&b, "https://youtu.be/%s\n", pb.VideoID)
	} else {
		b.WriteString("Nothing playing\n")
	}
	if st.Volume != nil {
		muted := ""
		if st.Muted {
			muted = " (muted)"
		}
		fmt.Fprintf(&b, "Volume %d%s\n", *st.Volume, muted)
	}
	if st.Autoplay != "" {
		fmt.Fprintf(&b, "Autoplay %s\n", strings.ToLower(st.Autoplay))
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", st.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}

func clock(secs float64) string {
	s := int(secs)
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if _, err := a.out.Send(msg); err != nil {
			slog.Error("send telegram message", "chat_id", chatID, "error", err)
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
