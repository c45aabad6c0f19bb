package mqtt

import "fmt"

// Topic prefixes for the Climate Sync MQTT hierarchy.
//
// Entity state is published retained by the bridge under
// climatesync/state/{entity_id}; commands flow the other way under
// climatesync/command/{domain}/{entity_id} with per-command acks on
// climatesync/ack/{command_id}.
const (
	// TopicPrefix is the base for all Climate Sync topics.
	TopicPrefix = "climatesync"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "climatesync/system"
)

// Topics provides builders for Climate Sync MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.EntityState("sensor.living_room_temperature")
//	// Returns: "climatesync/state/sensor.living_room_temperature"
type Topics struct{}

// EntityState returns the retained state topic for an entity.
//
// Example: climatesync/state/select.trv_living_temperature_sensor_select
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, entityID)
}

// Command returns the topic for action calls against an entity.
//
// Example: climatesync/command/number/number.trv_living_external_temperature_input
func (Topics) Command(domain, entityID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, domain, entityID)
}

// Ack returns the per-command acknowledgement topic.
//
// Example: climatesync/ack/7f9c3a4e-...
func (Topics) Ack(commandID string) string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, commandID)
}

// SystemStatus returns the system status topic.
//
// Example: climatesync/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEntityStates returns a pattern matching all entity state topics.
//
// Pattern: climatesync/state/#
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/state/#", TopicPrefix)
}

// AllCommands returns a pattern matching all command topics.
//
// Pattern: climatesync/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllAcks returns a pattern matching all acknowledgement topics.
//
// Pattern: climatesync/ack/+
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/ack/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Climate Sync topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: climatesync/#
func (Topics) AllTopics() string {
	return "climatesync/#"
}
