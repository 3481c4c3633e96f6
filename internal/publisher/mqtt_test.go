// internal/publisher/mqtt_test.go
package publisher

import (
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"meal-diary/internal/config"
	"meal-diary/internal/diary"
	"meal-diary/internal/events"
	"meal-diary/internal/models"
	"meal-diary/internal/nutrition"
)

type doneToken struct {
	mqtt.Token
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// fakeClient records publishes; only the methods the publisher uses are implemented.
type fakeClient struct {
	mqtt.Client
	mu   sync.Mutex
	sent []message
	err  error
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, message{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func (c *fakeClient) IsConnected() bool { return true }
func (c *fakeClient) Disconnect(uint)   {}

func testView() diary.View {
	return diary.View{
		Date:   "2024-05-01",
		Totals: models.MacroSnapshot{Kcal: 580, Protein: 23, Carbs: 80, Fats: 12},
		Target: models.DailyTarget{Kcal: 2000, Protein: 110, Carbs: 250, Fats: 70},
		Source: nutrition.SourceRemote,
		Bands:  map[models.Macro]models.Band{models.MacroKcal: models.BandRed},
	}
}

func TestPublishView(t *testing.T) {
	client := &fakeClient{}
	p := newWithClient(client, "meal_diary", zerolog.Nop())

	require.NoError(t, p.PublishView(testView()))

	require.Len(t, client.sent, 2)
	assert.Equal(t, "meal_diary/2024-05-01/view", client.sent[0].topic)
	assert.True(t, client.sent[0].retained)
	assert.Equal(t, "2024-05-01", gjson.GetBytes(client.sent[0].payload, "date").String())

	assert.Equal(t, "meal_diary/2024-05-01/totals", client.sent[1].topic)
	assert.False(t, client.sent[1].retained)
	assert.Equal(t, 580.0, gjson.GetBytes(client.sent[1].payload, "totals.kcal").Float())
	assert.Equal(t, "red", gjson.GetBytes(client.sent[1].payload, "bands.kcal").String())
	assert.Equal(t, "remote", gjson.GetBytes(client.sent[1].payload, "source").String())
}

func TestPublishError(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := newWithClient(client, "meal_diary", zerolog.Nop())

	err := p.PublishView(testView())
	assert.ErrorContains(t, err, "meal_diary/2024-05-01/view")
	assert.Len(t, client.sent, 1)
}

func TestAttachPublishesDayUpdates(t *testing.T) {
	client := &fakeClient{}
	p := newWithClient(client, "diary", zerolog.Nop())
	bus := events.NewBus(zerolog.Nop())

	detach := p.Attach(bus)
	bus.Emit(events.Event{Type: events.EntryConfirmed, EntryID: "e1"})
	bus.Emit(events.Event{Type: events.DayUpdated, Data: testView()})
	assert.Len(t, client.sent, 2)

	detach()
	bus.Emit(events.Event{Type: events.DayUpdated, Data: testView()})
	assert.Len(t, client.sent, 2)
}

func TestNewDisabled(t *testing.T) {
	p, err := New(config.MQTTConfig{}, "diary", zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = New(config.MQTTConfig{Enabled: true}, "diary", zerolog.Nop())
	assert.Error(t, err)
}
