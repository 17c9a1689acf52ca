package notification

import (
	"context"
	"log"
	"time"

	"billwatch-backend/pkg/fcm"

	"github.com/gin-gonic/gin"
)

// Notifier shows a user-facing notification. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// LogNotifier writes notifications to the log
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, title, message string) {
	log.Printf("[Notify] %s: %s", title, message)
}

// PushSender sends push notifications to devices
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

// TokenStore holds the device tokens to notify
type TokenStore interface {
	ListTokens(ctx context.Context) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

// FCMNotifier pushes notifications to registered devices. Tokens rejected by
// FCM are deleted from the store.
type FCMNotifier struct {
	sender PushSender
	store  TokenStore
}

// NewFCMNotifier creates a new FCM notifier
func NewFCMNotifier(sender PushSender, store TokenStore) *FCMNotifier {
	return &FCMNotifier{
		sender: sender,
		store:  store,
	}
}

func (n *FCMNotifier) Notify(ctx context.Context, title, message string) {
	tokens, err := n.store.ListTokens(ctx)
	if err != nil {
		log.Printf("[FCM] Error loading device tokens: %v", err)
		return
	}
	if len(tokens) == 0 {
		log.Printf("[FCM] No device tokens, skipping push notification")
		return
	}

	failed, err := n.sender.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: title,
		Body:  message,
		Data: map[string]string{
			"type":      "billwatch",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		log.Printf("[FCM] Error sending notifications: %v", err)
		return
	}
	if len(failed) > 0 {
		log.Printf("[FCM] Cleaning up %d failed tokens", len(failed))
		if err := n.store.DeleteTokens(ctx, failed); err != nil {
			log.Printf("[FCM] Error deleting failed tokens: %v", err)
		}
	}
}

// Broadcaster sends an event to every connected SSE client
type Broadcaster interface {
	Broadcast(eventType string, data interface{}) int
}

// SSENotifier forwards notifications to connected foreground clients
type SSENotifier struct {
	broadcaster Broadcaster
}

// NewSSENotifier creates a new SSE notifier
func NewSSENotifier(broadcaster Broadcaster) *SSENotifier {
	return &SSENotifier{broadcaster: broadcaster}
}

func (n *SSENotifier) Notify(ctx context.Context, title, message string) {
	n.broadcaster.Broadcast("notification", gin.H{
		"title":     title,
		"message":   message,
		"timestamp": time.Now(),
	})
}

// MultiNotifier fans a notification out to several notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, title, message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, title, message)
		}
	}
}
