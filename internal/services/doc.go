// Package services contains the services used by the web server that are not strictly HTTP-related.
//
// Current services include:
//   - EventPublisher:
//     Announces user lifecycle events. AMQPPublisher is an AMQP 0.9.1 broker-agnostic implementation
//     (tested against RabbitMQ), NopPublisher is used when no broker is configured.
package services
