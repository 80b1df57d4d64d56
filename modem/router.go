package modem

import (
	"log/slog"
	"sync/atomic"
)

// router hands unsolicited lines to the URC channel without ever blocking
// the loop.
type router struct {
	ch      chan string
	dropped atomic.Uint64
	logger  *slog.Logger
}

func newRouter(size int, logger *slog.Logger) *router {
	return &router{ch: make(chan string, size), logger: logger}
}

func (r *router) route(line string) {
	select {
	case r.ch <- line:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("unsolicited line dropped", "line", line, "dropped", n)
	}
}
