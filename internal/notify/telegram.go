// File: internal/notify/telegram.go
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/keepalive-cli/internal/config"
	"github.com/xkilldash9x/keepalive-cli/internal/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TelegramMaxMessage is the Bot API limit for one message text, in characters.
const TelegramMaxMessage = 4096

// telegramChunk leaves headroom under the API limit.
const telegramChunk = 4000

// TelegramNotifier posts to a chat through the Bot API sendMessage method.
type TelegramNotifier struct {
	client  *network.Client
	apiBase string
	token   string
	chatID  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// NewTelegramNotifier creates a notifier for cfg. cfg.Rate is messages per
// second; zero disables pacing.
func NewTelegramNotifier(cfg config.TelegramConfig, client *network.Client, logger *zap.Logger) *TelegramNotifier {
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	apiBase := strings.TrimRight(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		client:  client,
		apiBase: apiBase,
		token:   cfg.Token,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("telegram"),
	}
}

// Send delivers n, split into as many messages as the length limit requires.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	text := n.Message
	if n.Title != "" {
		text = n.Title + "\n" + n.Message
	}

	chunks := SplitMessage(text, telegramChunk)
	for i, chunk := range chunks {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		if err := t.sendChunk(ctx, chunk); err != nil {
			return fmt.Errorf("telegram: part %d/%d: %w", i+1, len(chunks), err)
		}
	}
	t.logger.Debug("Telegram message delivered", zap.Int("parts", len(chunks)))
	return nil
}

// sendChunk posts one message as Markdown. If Telegram cannot parse the
// markup it is resent as plain text.
func (t *TelegramNotifier) sendChunk(ctx context.Context, text string) error {
	err := t.post(ctx, telegramMessage{ChatID: t.chatID, Text: text, ParseMode: "Markdown", DisableWebPagePreview: true})
	var apiErr *TelegramAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities") {
		t.logger.Warn("Telegram rejected Markdown, resending as plain text", zap.String("description", apiErr.Description))
		return t.post(ctx, telegramMessage{ChatID: t.chatID, Text: text, DisableWebPagePreview: true})
	}
	return err
}

// TelegramAPIError is a non-OK answer from the Bot API.
type TelegramAPIError struct {
	StatusCode  int
	Description string
}

func (e *TelegramAPIError) Error() string {
	return fmt.Sprintf("sendMessage failed with status %d: %s", e.StatusCode, e.Description)
}

func (t *TelegramNotifier) post(ctx context.Context, msg telegramMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	endpoint := t.apiBase + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", t.redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return t.redact(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var decoded telegramResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		decoded.Description = strings.TrimSpace(string(body))
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return &TelegramAPIError{StatusCode: resp.StatusCode, Description: decoded.Description}
	}
	return nil
}

// redact strips the bot token from transport errors, which embed the URL.
func (t *TelegramNotifier) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		uerr.URL = strings.ReplaceAll(uerr.URL, t.token, "<redacted>")
		return uerr
	}
	if t.token != "" && strings.Contains(err.Error(), t.token) {
		return errors.New(strings.ReplaceAll(err.Error(), t.token, "<redacted>"))
	}
	return err
}

// BlockSeparator is the line that closes one entry of a multi-entry
// message. SplitMessage cuts after it before cutting anywhere else.
const BlockSeparator = "────────────────────"

// SplitMessage breaks text into pieces of at most limit characters. It cuts
// after a BlockSeparator line where possible, then at line boundaries. A
// single line longer than limit is cut on rune boundaries, and a code span
// crossing such a cut is closed and reopened so each piece stays valid
// Markdown.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	c := &chunker{limit: limit}
	for _, block := range splitBlocks(text) {
		if c.fits(block) {
			c.add(block)
			continue
		}
		c.flush()
		if c.fits(block) {
			c.add(block)
			continue
		}
		for _, line := range strings.SplitAfter(block, "\n") {
			if c.fits(line) {
				c.add(line)
				continue
			}
			c.flush()
			pieces := cutLine(line, limit)
			for _, piece := range pieces[:len(pieces)-1] {
				c.add(piece)
				c.flush()
			}
			c.add(pieces[len(pieces)-1])
		}
	}
	c.flush()
	return c.chunks
}

// splitBlocks cuts text after every BlockSeparator line.
func splitBlocks(text string) []string {
	var (
		blocks []string
		cur    strings.Builder
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		cur.WriteString(line)
		if strings.TrimRight(line, "\n") == BlockSeparator {
			blocks = append(blocks, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

// cutLine splits an oversize line into pieces of at most limit runes.
func cutLine(line string, limit int) []string {
	runes := []rune(line)
	if !strings.Contains(line, "`") || limit <= 2 {
		var pieces []string
		for len(runes) > limit {
			pieces = append(pieces, string(runes[:limit]))
			runes = runes[limit:]
		}
		return append(pieces, string(runes))
	}
	// The newline stays outside any closing backtick.
	if strings.HasSuffix(line, "\n") {
		pieces := cutLine(strings.TrimSuffix(line, "\n"), limit)
		pieces[len(pieces)-1] += "\n"
		return pieces
	}

	// Two runes per piece are kept for a reopening and a closing backtick.
	size := limit - 2
	var (
		pieces []string
		open   bool
	)
	for len(runes) > 0 {
		n := min(size, len(runes))
		piece := string(runes[:n])
		runes = runes[n:]
		if open {
			piece = "`" + piece
		}
		open = strings.Count(piece, "`")%2 == 1
		if open {
			piece += "`"
		}
		pieces = append(pieces, piece)
	}
	return pieces
}

type chunker struct {
	limit  int
	chunks []string
	cur    strings.Builder
	n      int
}

func (c *chunker) fits(s string) bool {
	return c.n+utf8.RuneCountInString(s) <= c.limit
}

func (c *chunker) add(s string) {
	c.cur.WriteString(s)
	c.n += utf8.RuneCountInString(s)
}

func (c *chunker) flush() {
	if c.n == 0 {
		return
	}
	if chunk := strings.Trim(c.cur.String(), "\n"); chunk != "" {
		c.chunks = append(c.chunks, chunk)
	}
	c.cur.Reset()
	c.n = 0
}
