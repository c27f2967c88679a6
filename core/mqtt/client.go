package mqtt

// Handler receives the payload of a message published on topic.
type Handler func(topic string, payload []byte)

// Message classes select the QoS configured for a publication or
// subscription.
const (
	ClassCommand  = "command"
	ClassState    = "state"
	ClassSnapshot = "snapshot"
	ClassRequest  = "request"
)

// Client is the device bus as seen by the controller: fire-and-forget
// publication and topic subscriptions that survive reconnects.
type Client interface {
	// Publish sends payload to topic using the QoS of class.
	Publish(topic string, payload []byte, retained bool, class string) error

	// Subscribe registers h for topic, which may contain MQTT wildcards.
	Subscribe(topic, class string, h Handler) error
}
