// Package fcm sends push notifications through the Firebase Cloud Messaging
// HTTP v1 API.
//
// One request is made per message. Requests are paced with a token bucket so
// large runs stay under the project's send quota.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
	"github.com/lawdesk/lawdesk-reminders/internal/textutil"
)

// DefaultBaseURL is the production FCM endpoint.
const DefaultBaseURL = "https://fcm.googleapis.com"

// Sender posts messages to FCM for a single Firebase project.
type Sender struct {
	httpClient *http.Client
	baseURL    string
	projectID  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSender creates an FCM sender. An empty baseURL uses DefaultBaseURL.
// requestsPerMinute <= 0 disables pacing.
func NewSender(projectID, baseURL string, requestsPerMinute int, httpClient *http.Client, logger *slog.Logger) *Sender {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &Sender{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		projectID:  projectID,
		limiter:    limiter,
		logger:     logger,
	}
}

// --------------------------------------------------------------------------
// Wire types
// --------------------------------------------------------------------------

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data"`
}

type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Error is a non-success response from FCM.
type Error struct {
	StatusCode int
	Status     string // FCM error status, e.g. UNREGISTERED
	Message    string
	Body       string
}

func (e *Error) Error() string {
	if e.Status != "" || e.Message != "" {
		return fmt.Sprintf("fcm returned %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("fcm returned %d: %s", e.StatusCode, e.Body)
}

// --------------------------------------------------------------------------
// Send
// --------------------------------------------------------------------------

// Send implements reminder.Sender. The payload carries eventId, eventDate
// and notificationType so the app can route the tap. Each message is posted
// exactly once; failures are returned, never retried.
func (s *Sender) Send(ctx context.Context, bearer string, msg reminder.Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(sendRequest{Message: message{
		Token:        msg.Token,
		Notification: notification{Title: msg.Title, Body: msg.Body},
		Data: map[string]string{
			"eventId":          msg.EventID,
			"eventDate":        msg.EventDate.UTC().Format(time.RFC3339),
			"notificationType": msg.Window.Kind(),
		},
	}})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	u := fmt.Sprintf("%s/v1/projects/%s/messages:send", s.baseURL, s.projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fcm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read fcm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fcmErr := &Error{StatusCode: resp.StatusCode, Body: textutil.Truncate(body, 300)}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil {
			fcmErr.Status = er.Error.Status
			fcmErr.Message = er.Error.Message
		}
		return fcmErr
	}

	s.logger.Debug("FCM message accepted", "event_id", msg.EventID, "response", textutil.Truncate(body, 120))
	return nil
}
