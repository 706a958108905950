// Package notify publishes out-of-band delivery requests (one-time codes,
// deal invitations) to Kafka, where downstream mail/SMS workers pick them
// up. Delivery is decoupled from the request path on purpose: a slow or
// dead broker must never fail an API call that already committed state.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/CapTomas/Proofo-sub002/internal/domain"
)

const (
	messageKindCode   = "verification_code"
	messageKindInvite = "deal_invite"

	publishTimeout = 5 * time.Second
)

type KafkaConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
	// From is stamped on outgoing email messages for the mail worker.
	From string
	// InviteBaseURL is the public page prefix invite links point at.
	InviteBaseURL string
}

type KafkaNotifier struct {
	writer *kafka.Writer
	cfg    KafkaConfig
	log    *zap.Logger
}

func NewKafkaNotifier(cfg KafkaConfig, log *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	if cfg.Username != "" {
		writer.Transport = &kafka.Transport{
			SASL: plain.Mechanism{Username: cfg.Username, Password: cfg.Password},
			TLS:  &tls.Config{},
		}
	}
	return &KafkaNotifier{writer: writer, cfg: cfg, log: log}
}

type codeMessage struct {
	Kind    string `json:"kind"`
	Channel string `json:"channel"`
	Target  string `json:"target"`
	Code    string `json:"code"`
	From    string `json:"from,omitempty"`
}

type inviteMessage struct {
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Link  string `json:"link"`
	From  string `json:"from,omitempty"`
}

func (n *KafkaNotifier) SendCode(ctx context.Context, channel domain.VerificationType, target, code string) error {
	return n.publish(ctx, target, codeMessage{
		Kind:    messageKindCode,
		Channel: string(channel),
		Target:  target,
		Code:    code,
		From:    n.cfg.From,
	})
}

func (n *KafkaNotifier) SendDealInvite(ctx context.Context, email, publicID, token string) error {
	return n.publish(ctx, email, inviteMessage{
		Kind:  messageKindInvite,
		Email: email,
		Link:  fmt.Sprintf("%s/%s?t=%s", n.cfg.InviteBaseURL, publicID, token),
		From:  n.cfg.From,
	})
}

func (n *KafkaNotifier) publish(ctx context.Context, key string, payload any) error {
	if n == nil || n.writer == nil {
		return nil
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		if n.log != nil {
			n.log.Warn("kafka publish failed", zap.String("topic", n.cfg.Topic), zap.Error(err))
		}
		return err
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	if n == nil || n.writer == nil {
		return nil
	}
	return n.writer.Close()
}

// NopNotifier drops all messages. It stands in when no broker is
// configured, mostly in local development.
type NopNotifier struct {
	Log *zap.Logger
}

func (n NopNotifier) SendCode(_ context.Context, channel domain.VerificationType, target, _ string) error {
	if n.Log != nil {
		n.Log.Info("notifier disabled, dropping code", zap.String("channel", string(channel)))
	}
	return nil
}

func (n NopNotifier) SendDealInvite(_ context.Context, _, publicID, _ string) error {
	if n.Log != nil {
		n.Log.Info("notifier disabled, dropping invite", zap.String("public_id", publicID))
	}
	return nil
}
