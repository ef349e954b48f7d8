package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"showshelf/internal/models"
	"showshelf/internal/timeutil"
)

// ReportWindow is how far ahead the upcoming report looks.
const ReportWindow = 24 * time.Hour

// UpcomingSource lists shows with an episode airing soon.
type UpcomingSource interface {
	Upcoming(ctx context.Context, window time.Duration) ([]models.Show, error)
}

// TelegramNotifier handles Telegram notifications
type TelegramNotifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
	baseURL    string
	source     UpcomingSource
	location   *time.Location
}

// NewTelegramNotifier creates a new TelegramNotifier. Air times in reports
// are rendered in loc (UTC when nil).
func NewTelegramNotifier(botToken, chatID string, source UpcomingSource, loc *time.Location) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:  "https://api.telegram.org",
		source:   source,
		location: loc,
	}
}

// SetBaseURL allows overriding the Bot API URL (useful for testing)
func (n *TelegramNotifier) SetBaseURL(baseURL string) {
	n.baseURL = baseURL
}

// Configured reports whether a bot token and chat are set.
func (n *TelegramNotifier) Configured() bool {
	return n.botToken != "" && n.chatID != ""
}

// MaxMessageLength is the Bot API limit on a message's text, in characters.
const MaxMessageLength = 4096

// APIError is a failed Bot API call.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("telegram %s failed (code %d): %s", e.Method, e.Code, e.Description)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	return msg
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call POSTs payload as JSON to a Bot API method.
func (n *TelegramNotifier) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	endpoint := n.baseURL + "/bot" + n.botToken + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var out botResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &APIError{Method: method, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{
			Method:      method,
			Code:        code,
			Description: out.Description,
			RetryAfter:  time.Duration(out.Parameters.RetryAfter) * time.Second,
		}
	}
	return nil
}

// SendMessage sends an HTML-formatted message to the configured chat
func (n *TelegramNotifier) SendMessage(ctx context.Context, text string) error {
	if !n.Configured() {
		return errors.New("telegram notifier not configured: missing bot token or chat ID")
	}
	return n.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	})
}

// SendUpcomingReport sends the list of shows airing within ReportWindow,
// split over several messages when it is too long for one.
func (n *TelegramNotifier) SendUpcomingReport(ctx context.Context) error {
	shows, err := n.source.Upcoming(ctx, ReportWindow)
	if err != nil {
		return fmt.Errorf("failed to load upcoming shows: %w", err)
	}
	for _, part := range SplitMessage(FormatUpcomingReport(shows, timeutil.Now().In(n.location)), MaxMessageLength) {
		if err := n.SendMessage(ctx, part); err != nil {
			return err
		}
	}
	return nil
}

// FormatUpcomingReport renders shows (already ordered by air time) as an
// HTML Telegram message. Entries are separated by a blank line.
func FormatUpcomingReport(shows []models.Show, now time.Time) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📺 <b>Airing next</b> (%s)\n\n", now.Format("2006-01-02"))

	if len(shows) == 0 {
		sb.WriteString("Nothing airing in the next 24 hours 🎬")
		return sb.String()
	}

	entries := make([]string, len(shows))
	for i, show := range shows {
		var e strings.Builder
		fmt.Fprintf(&e, "%d. <b>%s</b>", i+1, html.EscapeString(show.Title))
		if show.Favorite {
			e.WriteString(" ⭐")
		}
		if show.NextText != "" {
			fmt.Fprintf(&e, "\n   📍 %s", html.EscapeString(show.NextText))
		}
		if show.NextAirdateMs != nil {
			airs := timeutil.FromMillis(*show.NextAirdateMs, now.Location())
			fmt.Fprintf(&e, "\n   ⏰ %s", airs.Format("Mon 15:04"))
			if show.Network != "" {
				e.WriteString(" on " + html.EscapeString(show.Network))
			}
		}
		entries[i] = e.String()
	}
	sb.WriteString(strings.Join(entries, "\n\n"))
	return sb.String()
}

// SplitMessage cuts text into parts of at most limit characters, breaking
// at blank lines so report entries stay whole. A single paragraph longer
// than limit is cut by safeCut.
func SplitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur []string
	curLen := 0
	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.Join(cur, "\n\n"))
			cur, curLen = nil, 0
		}
	}
	for _, para := range strings.Split(text, "\n\n") {
		n := utf8.RuneCountInString(para)
		oversized := n > limit
		for n > limit {
			flush()
			r := []rune(para)
			cut := safeCut(r, limit)
			parts = append(parts, string(r[:cut]))
			para = strings.TrimLeft(string(r[cut:]), " \n")
			n = utf8.RuneCountInString(para)
		}
		if oversized && para == "" {
			continue
		}
		if len(cur) > 0 && curLen+2+n > limit {
			flush()
		}
		if len(cur) > 0 {
			curLen += 2
		}
		cur = append(cur, para)
		curLen += n
	}
	flush()
	return parts
}

// safeCut returns where r[:limit] may end without splitting an HTML tag,
// an entity or an open element, preferring a line break, then a space.
// With no such position it returns limit.
func safeCut(r []rune, limit int) int {
	lastLine, lastSpace, lastSafe := 0, 0, 0
	inTag, inEntity, depth := false, false, 0
	for i := 0; i <= limit; i++ {
		if i > 0 && !inTag && !inEntity && depth == 0 {
			lastSafe = i
			switch r[i] {
			case '\n':
				lastLine = i
			case ' ':
				lastSpace = i
			}
		}
		if i == limit {
			break
		}

		switch c := r[i]; {
		case inTag:
			if c == '>' {
				inTag = false
			}
		case inEntity:
			if c == ';' {
				inEntity = false
			}
		case c == '<':
			inTag = true
			if i+1 < len(r) && r[i+1] == '/' {
				depth--
			} else {
				depth++
			}
		case c == '&':
			inEntity = true
		}
	}

	for _, cut := range []int{lastLine, lastSpace, lastSafe} {
		if cut > 0 {
			return cut
		}
	}
	return limit
}
