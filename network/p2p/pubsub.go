package p2p

import (
	"context"
	"errors"
	"fmt"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/SAMAD101/chain-gossip/core/transaction"
)

var (
	// ErrOversizedPayload reports a publish larger than the configured limit.
	ErrOversizedPayload = errors.New("payload exceeds maximum message size")
	// ErrRateLimited reports a publish rejected by the local rate limiter.
	ErrRateLimited = errors.New("publish rate limit exceeded")
)

// getOrJoinTopic returns an existing topic handle or joins a new one.
func (m *Manager) getOrJoinTopic(topicName string) (*pubsub.Topic, error) {
	m.topicsMu.RLock()
	if topic, exists := m.joinedTopics[topicName]; exists {
		m.topicsMu.RUnlock()
		return topic, nil
	}
	m.topicsMu.RUnlock()

	m.topicsMu.Lock()
	defer m.topicsMu.Unlock()

	// Double-check in case another goroutine joined while we waited for lock
	if topic, exists := m.joinedTopics[topicName]; exists {
		return topic, nil
	}

	topic, err := m.PubSub.Join(topicName)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", topicName, err)
	}

	m.joinedTopics[topicName] = topic
	log.Infof("Joined PubSub topic: %s", topicName)
	return topic, nil
}

// subscribeTopic joins a topic, installs the frame validator, and starts the
// delivery read loop.
func (m *Manager) subscribeTopic(topicName string) error {
	if err := m.PubSub.RegisterTopicValidator(topicName, m.validateFrame); err != nil {
		return fmt.Errorf("failed to register validator for %s: %w", topicName, err)
	}

	topic, err := m.getOrJoinTopic(topicName)
	if err != nil {
		return err
	}

	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topicName, err)
	}

	go m.readPubSubMessages(topicName, sub)
	log.Infof("Subscribed to PubSub topic: %s", topicName)
	return nil
}

// validateFrame rejects obviously malformed frames before the router
// considers delivering or forwarding them. Signature presence and validity is
// enforced separately by strict signature verification.
func (m *Manager) validateFrame(ctx context.Context, from peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
	if len(msg.Data) == 0 {
		return pubsub.ValidationReject
	}
	if len(msg.Data) > m.cfg.Gossip.MaxMessageSize {
		return pubsub.ValidationReject
	}
	return pubsub.ValidationAccept
}

// readPubSubMessages reads messages from a subscription and forwards each
// delivery as an event. The router has already deduplicated by content id, so
// each distinct id arrives here at most once.
func (m *Manager) readPubSubMessages(topicName string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(m.Ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Infof("PubSub subscription for %s canceled", topicName)
			} else {
				log.Warnf("Error reading from PubSub subscription %s: %v", topicName, err)
			}
			return
		}

		if msg.ReceivedFrom == m.Host.ID() {
			continue // Ignore messages from self
		}

		m.metrics.IncrementMessagesReceived()
		m.emit(Event{
			Type:  MessageDelivered,
			Topic: topicName,
			ID:    msg.ID,
			Peer:  msg.ReceivedFrom,
			Data:  msg.Data,
		})
	}
}

// Publish broadcasts bytes on a topic and returns the content-derived message
// identifier. Publishing with zero connected peers is not an error; the
// message simply reaches nobody until peers join the mesh.
func (m *Manager) Publish(topicName string, data []byte) (string, error) {
	if len(data) > m.cfg.Gossip.MaxMessageSize {
		return "", fmt.Errorf("%w: %d bytes", ErrOversizedPayload, len(data))
	}
	if !m.rateLimiter.Allow() {
		return "", fmt.Errorf("%w: topic %s", ErrRateLimited, topicName)
	}

	topic, err := m.getOrJoinTopic(topicName)
	if err != nil {
		return "", err
	}

	if err := topic.Publish(m.Ctx, data); err != nil {
		return "", fmt.Errorf("failed to publish to topic %s: %w", topicName, err)
	}

	m.metrics.IncrementMessagesPublished()
	return transaction.ContentID(data), nil
}
