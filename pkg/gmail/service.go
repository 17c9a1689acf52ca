package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/pkg/htmltext"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// Service reads the mailbox of the account behind a stored refresh token
type Service struct {
	clientID       string
	clientSecret   string
	refreshToken   string
	onTokenRefresh TokenUpdateFunc

	mu  sync.Mutex
	srv *gmail.Service
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && (s.current == nil || s.current.AccessToken != t.AccessToken) {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// NewService creates a Gmail mail source. onTokenRefresh may be nil.
func NewService(clientID, clientSecret, refreshToken string, onTokenRefresh TokenUpdateFunc) *Service {
	return &Service{
		clientID:       clientID,
		clientSecret:   clientSecret,
		refreshToken:   refreshToken,
		onTokenRefresh: onTokenRefresh,
	}
}

// TokenSource returns a token source that refreshes the access token from
// the stored refresh token
func (s *Service) TokenSource(ctx context.Context) oauth2.TokenSource {
	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	token := &oauth2.Token{
		RefreshToken: s.refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(), // force a refresh on first use
	}

	return &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
	}
}

func (s *Service) gmailService(ctx context.Context) (*gmail.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return s.srv, nil
	}
	if s.refreshToken == "" {
		return nil, fmt.Errorf("gmail refresh token is not configured")
	}

	// The client outlives the request context
	client := oauth2.NewClient(context.Background(), s.TokenSource(context.Background()))
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	s.srv = srv
	return srv, nil
}

// BuildQuery turns the phrases into a Gmail search: each phrase quoted and
// joined with OR, limited to mail after query.Since when set
func BuildQuery(query domain.MailQuery) string {
	var parts []string
	for _, phrase := range query.Phrases {
		phrase = strings.TrimSpace(strings.ReplaceAll(phrase, `"`, ""))
		if phrase != "" {
			parts = append(parts, `"`+phrase+`"`)
		}
	}

	q := strings.Join(parts, " OR ")
	if len(parts) > 1 {
		q = "(" + q + ")"
	}
	if !query.Since.IsZero() {
		q = strings.TrimSpace(fmt.Sprintf("%s after:%d", q, query.Since.Unix()))
	}
	return q
}

// Search returns up to max message ids matching query, newest first
func (s *Service) Search(ctx context.Context, query domain.MailQuery, max int) ([]string, error) {
	srv, err := s.gmailService(ctx)
	if err != nil {
		return nil, err
	}

	q := BuildQuery(query)
	resp, err := srv.Users.Messages.List("me").Q(q).MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to search messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	log.Printf("[Gmail] Query %q matched %d message(s)", q, len(ids))
	return ids, nil
}

// Fetch returns the message with its body reduced to plain text
func (s *Service) Fetch(ctx context.Context, id string) (*domain.RawEmail, error) {
	srv, err := s.gmailService(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get message %s: %w", id, err)
	}
	return convertMessage(msg), nil
}

// Watch sets up push notifications for the mailbox on the given Pub/Sub topic
func (s *Service) Watch(ctx context.Context, topicName string) (uint64, error) {
	srv, err := s.gmailService(ctx)
	if err != nil {
		return 0, err
	}

	// Clear any existing watch; only one push client is allowed per mailbox
	_ = srv.Users.Stop("me").Context(ctx).Do()

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return resp.HistoryId, nil
}

// StopWatch stops push notifications for the mailbox
func (s *Service) StopWatch(ctx context.Context) error {
	srv, err := s.gmailService(ctx)
	if err != nil {
		return err
	}
	if err := srv.Users.Stop("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}

func convertMessage(msg *gmail.Message) *domain.RawEmail {
	email := &domain.RawEmail{
		ID:         msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		email.Body = msg.Snippet
		return email
	}

	email.Subject = getHeader(msg.Payload.Headers, "Subject")
	email.Sender = getHeader(msg.Payload.Headers, "From")

	body, isHTML := getEmailBody(msg.Payload)
	if isHTML {
		text, err := htmltext.ToText(body)
		if err != nil {
			log.Printf("[Gmail] Failed to convert HTML body of %s: %v", msg.Id, err)
		} else {
			body = text
		}
	}
	if strings.TrimSpace(body) == "" {
		body = msg.Snippet
	}
	email.Body = body
	return email
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func decodeBody(data string) (string, bool) {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded), true
	}
	return "", false
}

// getEmailBody prefers the plain-text part and falls back to HTML
func getEmailBody(payload *gmail.MessagePart) (string, bool) {
	if len(payload.Parts) == 0 && payload.Body != nil && payload.Body.Data != "" {
		if data, ok := decodeBody(payload.Body.Data); ok {
			return data, payload.MimeType == "text/html"
		}
	}

	var htmlBody, plainBody string

	var findBody func(parts []*gmail.MessagePart)
	findBody = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			if part.Body != nil && part.Body.Data != "" && part.Filename == "" {
				switch part.MimeType {
				case "text/html":
					if htmlBody == "" {
						htmlBody, _ = decodeBody(part.Body.Data)
					}
				case "text/plain":
					if plainBody == "" {
						plainBody, _ = decodeBody(part.Body.Data)
					}
				}
			}
			if len(part.Parts) > 0 {
				findBody(part.Parts)
			}
		}
	}
	findBody(payload.Parts)

	if strings.TrimSpace(plainBody) != "" {
		return plainBody, false
	}
	return htmlBody, htmlBody != ""
}
