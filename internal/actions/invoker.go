// Package actions issues acknowledged action calls to the device bridge.
//
// Each call publishes a command message and blocks until the bridge
// confirms on a per-command ack topic, the call times out, or the
// context is cancelled. Commands are correlated by UUID.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/climate-sync-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Invoker.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client is the narrow MQTT capability the invoker needs.
// *mqtt.Client satisfies this interface.
type Client interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Command is the wire format published to the bridge.
type Command struct {
	ID       string         `json:"id"`
	EntityID string         `json:"entity_id"`
	Action   string         `json:"action"`
	Payload  map[string]any `json:"payload,omitempty"`
	Source   string         `json:"source"`
}

// ack is the wire format of a bridge acknowledgement.
type ack struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "ok" or "error"
	Error  string `json:"error,omitempty"`
}

// Invoker issues acknowledged action calls over MQTT.
//
// Thread Safety: safe for concurrent use; each call manages its own
// ack subscription.
type Invoker struct {
	client  Client
	qos     byte
	timeout time.Duration
	source  string
	logger  Logger
}

// New creates an action invoker.
//
// Parameters:
//   - client: MQTT client for publish and ack subscription
//   - qos: QoS level for command and ack traffic
//   - timeout: How long to wait for the bridge acknowledgement
func New(client Client, qos byte, timeout time.Duration) *Invoker {
	return &Invoker{
		client:  client,
		qos:     qos,
		timeout: timeout,
		source:  "climatesync",
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the invoker.
func (inv *Invoker) SetLogger(logger Logger) {
	inv.logger = logger
}

// SelectOption switches a mode selector to the given option.
//
// Parameters:
//   - ctx: Context for cancellation
//   - entityID: The select entity (e.g. "select.trv_living_temperature_sensor_select")
//   - option: The option to activate
func (inv *Invoker) SelectOption(ctx context.Context, entityID, option string) error {
	return inv.Call(ctx, entityID, "select_option", map[string]any{"option": option})
}

// SetValue writes a numeric value to a number entity.
//
// Parameters:
//   - ctx: Context for cancellation
//   - entityID: The number entity (e.g. "number.trv_living_external_temperature_input")
//   - value: The value to write
func (inv *Invoker) SetValue(ctx context.Context, entityID string, value float64) error {
	return inv.Call(ctx, entityID, "set_value", map[string]any{"value": value})
}

// Call issues one acknowledged action call.
//
// It publishes the command to climatesync/command/{domain}/{entity_id}
// (the domain is the entity ID's prefix) and waits for the bridge to
// confirm on climatesync/ack/{command_id}.
//
// Returns:
//   - nil: The bridge confirmed the action
//   - ErrRejected (wrapped): The bridge reported a failure
//   - ErrAckTimeout: No acknowledgement arrived in time
//   - ctx.Err() (wrapped): The context was cancelled while waiting
func (inv *Invoker) Call(ctx context.Context, entityID, action string, payload map[string]any) error {
	domain := entityDomain(entityID)
	if domain == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, entityID)
	}

	cmd := Command{
		ID:       uuid.NewString(),
		EntityID: entityID,
		Action:   action,
		Payload:  payload,
		Source:   inv.source,
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topics := mqtt.Topics{}
	ackTopic := topics.Ack(cmd.ID)
	done := make(chan ack, 1)

	// Subscribe for the ack before publishing so a fast bridge can't
	// respond into the void.
	err = inv.client.Subscribe(ackTopic, inv.qos, func(_ string, payload []byte) error {
		var a ack
		if err := json.Unmarshal(payload, &a); err != nil {
			return fmt.Errorf("decoding ack: %w", err)
		}
		if a.ID != cmd.ID {
			return nil // Not ours; stale retained message
		}
		select {
		case done <- a:
		default:
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing for ack: %w", err)
	}
	defer func() {
		if err := inv.client.Unsubscribe(ackTopic); err != nil {
			inv.logger.Warn("failed to unsubscribe ack topic", "topic", ackTopic, "error", err)
		}
	}()

	cmdTopic := topics.Command(domain, entityID)
	if err := inv.client.Publish(cmdTopic, body, inv.qos, false); err != nil {
		return fmt.Errorf("publishing command: %w", err)
	}

	inv.logger.Debug("command published",
		"command_id", cmd.ID,
		"entity_id", entityID,
		"action", action,
	)

	timer := time.NewTimer(inv.timeout)
	defer timer.Stop()

	select {
	case a := <-done:
		if a.Status != "ok" {
			return fmt.Errorf("%w: %s", ErrRejected, a.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: no ack for %s after %v", ErrAckTimeout, cmd.ID, inv.timeout)
	case <-ctx.Done():
		return fmt.Errorf("waiting for ack: %w", ctx.Err())
	}
}

// entityDomain extracts the domain prefix from an entity ID.
// "select.trv_living_x" -> "select". Returns "" for malformed IDs.
func entityDomain(entityID string) string {
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok {
		return ""
	}
	return domain
}
