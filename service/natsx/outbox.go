package natsx

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"PulseIM/logger"
)

// Subjects consumed by external push workers (mobile push, mail digests).
const (
	SubjectNotification = "im.push.notification"
	SubjectMessage      = "im.push.message"
)

type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Outbox publishes delivery events for consumers outside this process. It is
// fire-and-forget: the live websocket path never depends on it, and a nil
// *Outbox is a no-op so the gateway runs fine without a broker.
type Outbox struct {
	nc *nats.Conn
}

func NewOutbox(cfg Config) (*Outbox, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Outbox{nc: nc}, nil
}

// Publish marshals v and publishes it; failures are logged, never surfaced.
func (o *Outbox) Publish(subject string, v any) {
	if o == nil || o.nc == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		logger.Errorf("[natsx] marshal subject=%s err=%v", subject, err)
		return
	}
	msg := nats.NewMsg(subject)
	msg.Data = data
	if err := o.nc.PublishMsg(msg); err != nil {
		logger.Warn("[natsx] publish failed: " + err.Error())
	}
}

func (o *Outbox) Close() {
	if o == nil || o.nc == nil {
		return
	}
	_ = o.nc.Drain()
}
