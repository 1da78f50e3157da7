package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by bot instruments.
const (
	AttrEnvironment = attribute.Key("environment")
	AttrSymbol      = attribute.Key("symbol")
	AttrChannel     = attribute.Key("channel")
	AttrEventType   = attribute.Key("event.type")
	AttrCommandType = attribute.Key("command.type")
	AttrResult      = attribute.Key("result")
	AttrErrorType   = attribute.Key("error.type")
)

// Command result values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
	ResultTimeout  = "timeout"
)

// EventAttributes returns attributes for event-loop metrics.
func EventAttributes(environment, eventType, symbol string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrEventType.String(eventType),
		AttrSymbol.String(symbol),
	}
}

// CommandAttributes returns attributes for exchange command metrics.
func CommandAttributes(environment, commandType, channel, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrCommandType.String(commandType),
		AttrChannel.String(channel),
		AttrResult.String(result),
	}
}

// ErrorAttributes returns attributes for error metrics.
func ErrorAttributes(environment, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrErrorType.String(errorType),
	}
}
