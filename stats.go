package main

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// ServerStats tracks performance counters for the running process.
// Every field is an atomic so readers (PING, the Prometheus exporter)
// never contend with writers on the hot path, generalizing the
// teacher's mutex-guarded ServerStats into lock-free counters.
type ServerStats struct {
	TotalOps     atomic.Uint64
	GetOps       atomic.Uint64
	SetOps       atomic.Uint64
	DelOps       atomic.Uint64
	Connections  atomic.Uint64
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64
	Evictions    atomic.Uint64
	ExpiredReads atomic.Uint64

	startTime time.Time
}

func NewServerStats() *ServerStats {
	return &ServerStats{startTime: time.Now()}
}

// HitRate approximates the get-hit ratio from counters alone: gets that
// did not also register as an expired read. It's a coarse signal, not
// an exact hit/miss ledger.
func (s *ServerStats) HitRate() float64 {
	gets := s.GetOps.Load()
	if gets == 0 {
		return 0
	}
	misses := s.ExpiredReads.Load()
	if misses > gets {
		misses = gets
	}
	return float64(gets-misses) / float64(gets)
}

// pingStatsLine renders PING's optional statistics tail as a single
// CRLF-free string; the dispatcher appends it after "PONG".
func (s *ServerStats) pingStatsLine() string {
	uptime := time.Since(s.startTime).Round(time.Second)
	return fmt.Sprintf("uptime=%s ops=%d hitrate=%.2f", uptime, s.TotalOps.Load(), s.HitRate())
}
