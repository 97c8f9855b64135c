package notify

import (
	"context"
	"encoding/json"
	"time"

	"ipmonitor/internal/types"

	"github.com/google/uuid"
)

// Event types carried in Event.EventType
const (
	EventFirstRun = "ip.first_run"
	EventChanged  = "ip.changed"
	EventStartup  = "monitor.startup"
	EventDNSError = "dns.error"
)

// Event is the JSON envelope published to webhook and broker channels
type Event struct {
	EventType string    `json:"event_type"`
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ChangeData is the payload of a change event
type ChangeData struct {
	Kind       types.ChangeKind `json:"kind"`
	PreviousIP string           `json:"previous_ip,omitempty"`
	CurrentIP  string           `json:"current_ip"`
	Records    []string         `json:"records,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
}

// StartupData is the payload of a startup event
type StartupData struct {
	IP            string   `json:"ip"`
	CheckInterval string   `json:"check_interval"`
	TestMode      bool     `json:"test_mode"`
	Records       []string `json:"records,omitempty"`
}

// DNSErrorData is the payload of a dns error event
type DNSErrorData struct {
	IP            string              `json:"ip"`
	Provider      string              `json:"provider"`
	Record        string              `json:"record"`
	StatusCode    int                 `json:"status_code,omitempty"`
	Message       string              `json:"message"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	FieldErrors   map[string][]string `json:"field_errors,omitempty"`
}

func newEvent(eventType string, ts time.Time, data any) Event {
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: ts.UTC(),
		Data:      data,
	}
}

func changeEvent(c *Change) Event {
	data := ChangeData{
		Kind:       c.Kind,
		CurrentIP:  c.Current.String(),
		Records:    c.Records,
		ObservedAt: c.ObservedAt,
	}
	if c.HasPrevious() {
		data.PreviousIP = c.Previous.String()
	}
	eventType := EventChanged
	if c.Kind == types.FirstRun {
		eventType = EventFirstRun
	}
	return newEvent(eventType, c.ObservedAt, data)
}

func startupEvent(s *Startup) Event {
	return newEvent(EventStartup, s.StartedAt, StartupData{
		IP:            s.IP.String(),
		CheckInterval: s.CheckInterval.String(),
		TestMode:      s.TestMode,
		Records:       s.Records,
	})
}

func dnsErrorEvent(f *DNSFailure) Event {
	data := DNSErrorData{IP: f.IP.String()}
	if e := f.Error; e != nil {
		data.Provider = e.Provider
		data.Record = e.Record
		data.StatusCode = e.StatusCode
		data.Message = e.Message
		data.CorrelationID = e.CorrelationID
		data.FieldErrors = e.FieldErrors
	}
	return newEvent(EventDNSError, f.ObservedAt, data)
}

// publisher delivers an encoded Event
type publisher interface {
	publish(ctx context.Context, event Event, body []byte) error
	Close() error
}

// eventNotifier adapts a publisher to Notifier
type eventNotifier struct {
	channel ChannelType
	pub     publisher
}

func (n *eventNotifier) Type() ChannelType { return n.channel }

func (n *eventNotifier) NotifyChange(ctx context.Context, change *Change) error {
	return n.send(ctx, changeEvent(change))
}

func (n *eventNotifier) NotifyStartup(ctx context.Context, startup *Startup) error {
	return n.send(ctx, startupEvent(startup))
}

func (n *eventNotifier) NotifyDNSError(ctx context.Context, failure *DNSFailure) error {
	return n.send(ctx, dnsErrorEvent(failure))
}

func (n *eventNotifier) Close() error { return n.pub.Close() }

func (n *eventNotifier) send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.pub.publish(ctx, event, body)
}
