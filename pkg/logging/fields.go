package logging

import "log/slog"

// Domain identifiers

func Hub(name string) slog.Attr {
	return slog.String("hub", name)
}

func ConnectionID(id string) slog.Attr {
	return slog.String("connection_id", id)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func GroupName(name string) slog.Attr {
	return slog.String("group_name", name)
}

func Topic(topic string) slog.Attr {
	return slog.String("topic", topic)
}

func CorrelationID(id uint64) slog.Attr {
	return slog.Uint64("correlation_id", id)
}

// Request / tracing

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

func SpanID(id string) slog.Attr {
	return slog.String("span_id", id)
}

// Error handling

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
