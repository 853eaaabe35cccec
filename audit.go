package fileshare

import (
	"io"

	internalaudit "github.com/SuperSection/fileshare/internal/audit"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one session lifecycle event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers events in a channel; read them with Events.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogrusSink writes each event as a structured log entry.
type LogrusSink = internalaudit.LogrusSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(logger)
}
