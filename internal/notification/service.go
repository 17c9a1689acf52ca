package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"billwatch-backend/internal/statement/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Scanner runs the inbox scans a push notification triggers
type Scanner interface {
	ScanDueEmails(ctx context.Context) (*usecase.RunReport, error)
	ScanSuccessEmails(ctx context.Context) (*usecase.RunReport, error)
}

// Service listens for Gmail push notifications on Pub/Sub and scans the
// inbox when new mail arrives
type Service struct {
	pubsubClient *pubsub.Client
	scanner      Scanner
	topicName    string
	subName      string

	mu sync.Mutex
	// Deduplication: track last historyId per mailbox to avoid duplicate scans
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, scanner Scanner) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(scanner, topicName)
	s.pubsubClient = client
	return s, nil
}

func newService(scanner Scanner, topicName string) *Service {
	return &Service{
		scanner:       scanner,
		topicName:     topicName,
		subName:       topicName + "-sub", // Convention: topic-sub
		lastHistoryID: make(map[string]uint64),
	}
}

// Start receives push messages until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	// Ensure subscription exists
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		log.Printf("[PubSub] Error checking subscription existence: %v", err)
		return
	}

	if !exists {
		topic := s.pubsubClient.Topic(s.topicName)
		topicExists, err := topic.Exists(ctx)
		if err != nil {
			log.Printf("[PubSub] Error checking topic existence: %v", err)
			return
		}
		if !topicExists {
			log.Printf("[PubSub] Topic does not exist, cannot create subscription")
			return
		}

		sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: 10 * time.Second,
		})
		if err != nil {
			log.Printf("[PubSub] Failed to create subscription: %v", err)
			return
		}
		log.Printf("[PubSub] Created subscription: %s", s.subName)
	}

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		msg.Ack()
		s.handleMessage(ctx, msg.Data)
	})
	if err != nil {
		log.Printf("[PubSub] Error receiving messages: %v", err)
	}
}

// Close releases the Pub/Sub client
func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

// handleMessage scans both flows for a notification with a new history id.
// It reports whether scans were started.
func (s *Service) handleMessage(ctx context.Context, data []byte) bool {
	var notification GmailNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		log.Printf("[PubSub] Failed to unmarshal notification: %v", err)
		return false
	}

	log.Printf("[PubSub] Received notification for: %s (historyId: %d)", notification.EmailAddress, notification.HistoryID)

	if !s.advanceHistory(notification.EmailAddress, notification.HistoryID) {
		log.Printf("[PubSub] Skipping duplicate notification for %s (historyId %d)", notification.EmailAddress, notification.HistoryID)
		return false
	}

	if report, err := s.scanner.ScanDueEmails(ctx); err != nil {
		log.Printf("[PubSub] Due scan failed: %v", err)
	} else if report != nil {
		log.Printf("[PubSub] Due scan run %s finished in state %s", report.ID, report.State)
	}

	if report, err := s.scanner.ScanSuccessEmails(ctx); err != nil {
		log.Printf("[PubSub] Success scan failed: %v", err)
	} else if report != nil {
		log.Printf("[PubSub] Success scan run %s finished in state %s", report.ID, report.State)
	}
	return true
}

func (s *Service) advanceHistory(mailbox string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, exists := s.lastHistoryID[mailbox]
	if exists && historyID <= last {
		return false
	}
	s.lastHistoryID[mailbox] = historyID
	return true
}
