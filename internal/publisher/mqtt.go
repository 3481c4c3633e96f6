// internal/publisher/mqtt.go
package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"meal-diary/internal/config"
	"meal-diary/internal/diary"
	"meal-diary/internal/events"
	"meal-diary/internal/models"
)

const publishTimeout = 5 * time.Second

// Publisher pushes day views to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	log         zerolog.Logger
}

// TotalsPayload is the compact message published next to the full view
type TotalsPayload struct {
	Date   string                       `json:"date"`
	Totals models.MacroSnapshot         `json:"totals"`
	Target models.DailyTarget           `json:"target"`
	Bands  map[models.Macro]models.Band `json:"bands"`
	Source string                       `json:"source"`
}

// New connects to the broker. It returns a nil Publisher when MQTT is disabled.
func New(cfg config.MQTTConfig, topicPrefix string, log zerolog.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required when enabled")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", cfg.Broker))
	opts.SetClientID("meal-diary")
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}

	return newWithClient(client, topicPrefix, log), nil
}

func newWithClient(client mqtt.Client, topicPrefix string, log zerolog.Logger) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		log:         log.With().Str("component", "publisher").Logger(),
	}
}

func (p *Publisher) ViewTopic(date string) string {
	return fmt.Sprintf("%s/%s/view", p.topicPrefix, date)
}

func (p *Publisher) TotalsTopic(date string) string {
	return fmt.Sprintf("%s/%s/totals", p.topicPrefix, date)
}

// Attach publishes every day.updated event. The returned func detaches.
func (p *Publisher) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		v, ok := e.Data.(diary.View)
		if !ok {
			return
		}
		if err := p.PublishView(v); err != nil {
			p.log.Warn().Err(err).Str("date", v.Date).Msg("Failed to publish day view")
		}
	}, events.DayUpdated)
}

// PublishView sends the full view (retained) and the daily totals.
func (p *Publisher) PublishView(v diary.View) error {
	view, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding view: %w", err)
	}
	if err := p.publish(p.ViewTopic(v.Date), true, view); err != nil {
		return err
	}

	totals, err := json.Marshal(TotalsPayload{
		Date:   v.Date,
		Totals: v.Totals,
		Target: v.Target,
		Bands:  v.Bands,
		Source: string(v.Source),
	})
	if err != nil {
		return fmt.Errorf("encoding totals: %w", err)
	}
	if err := p.publish(p.TotalsTopic(v.Date), false, totals); err != nil {
		return err
	}

	p.log.Debug().Str("date", v.Date).Float64("kcal", v.Totals.Kcal).Msg("Published day view")
	return nil
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
