package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubMessage is the envelope published for workflow events (order created,
// assigned, revision requested, ...). Subscribers (push gateways, analytics)
// receive it as JSON.
type PubSubMessage struct {
	EventId       string          `json:"event_id"`
	PartnerId     string          `json:"partner_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationId string          `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	pubsubClientMu sync.Mutex
)

const pubsubInitAttempts = 3

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// NotificationsTopic returns the topic name; empty disables publishing.
func NotificationsTopic() string {
	return strings.TrimSpace(os.Getenv("NOTIFICATIONS_TOPIC"))
}

// PubSubEnabled reports whether events should be published at all.
func PubSubEnabled() bool {
	return NotificationsTopic() != "" && getPubSubProjectID() != ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var lastErr error
	for attempt := 1; attempt <= pubsubInitAttempts; attempt++ {
		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			// Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClient = c
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}
		lastErr = err
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v", projectID, attempt, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1<<attempt)):
		}
	}
	return nil, lastErr
}

// PublishEvent publishes to NOTIFICATIONS_TOPIC and returns the server-assigned message ID.
func PublishEvent(ctx context.Context, msg PubSubMessage) (string, error) {
	topicName := NotificationsTopic()
	if topicName == "" {
		return "", errors.New("NOTIFICATIONS_TOPIC is required")
	}
	client, err := getPubSubClient(ctx)
	if err != nil {
		return "", err
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := client.Topic(topicName).Publish(ctx, &pubsub.Message{
		Data: msgJSON,
		Attributes: map[string]string{
			"partner_id": msg.PartnerId,
			"event_type": msg.EventType,
		},
	})
	return result.Get(ctx)
}

// ClosePubSub releases the shared client on shutdown.
func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}
