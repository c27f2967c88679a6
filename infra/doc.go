// Package infra holds the adapters between the controller core and the
// outside world: the paho MQTT client and topic scheme, layout and flow file
// loading, zerolog logging, Sentry reporting and the Prometheus and InfluxDB
// metric sinks. Core packages never import infra.
package infra
