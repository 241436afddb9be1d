package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"sen66-server/internal/modules/airquality/types"
)

// LampPublisher is the slice of the MQTT client the lamp feed needs.
type LampPublisher interface {
	Publish(topic string, payload []byte) error
}

// LampMessage is the retained state the lamp renders.
type LampMessage struct {
	IAQ   *int       `json:"iaq"`
	Label string     `json:"label"`
	LEDs  int        `json:"leds"`
	Stale bool       `json:"stale"`
	Time  *time.Time `json:"time"`
}

func NewLampMessage(l types.Latest) LampMessage {
	msg := LampMessage{Label: l.IAQ.Label, LEDs: l.LEDs, Stale: l.Stale}
	if l.IAQ.Score != nil {
		n := int(math.Round(*l.IAQ.Score))
		msg.IAQ = &n
	}
	if l.Reading != nil && !l.Reading.Time.IsZero() {
		t := l.Reading.Time
		msg.Time = &t
	}
	return msg
}

// RunLampFeed publishes the latest IAQ to topic once at start and then every
// interval until ctx ends. Reads go through the cache, so the lamp never
// drives remote queries faster than the latest lane TTL. Publish failures
// are logged and reported to observe, never returned.
func (s *Service) RunLampFeed(ctx context.Context, pub LampPublisher, topic string, interval time.Duration, observe func(error)) {
	if observe == nil {
		observe = func(error) {}
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.publishLamp(ctx, pub, topic, observe)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) publishLamp(ctx context.Context, pub LampPublisher, topic string, observe func(error)) {
	msg := NewLampMessage(s.Latest(ctx))
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encode lamp message", "error", err)
		return
	}
	err = pub.Publish(topic, payload)
	observe(err)
	if err != nil {
		s.logger.Warn("lamp publish failed", "topic", topic, "error", err)
		return
	}
	s.logger.Debug("lamp published", "topic", topic, "label", msg.Label, "leds", msg.LEDs)
}
