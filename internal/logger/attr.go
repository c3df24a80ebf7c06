package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". A nil error yields an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

func JobType(t string) slog.Attr {
	return slog.String("job_type", t)
}

func Status(s string) slog.Attr {
	return slog.String("status", s)
}

func RetryCount(n int) slog.Attr {
	return slog.Int("retry_count", n)
}

func Count(n int64) slog.Attr {
	return slog.Int64("count", n)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
