package main

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// ConnStats wraps a net.Conn to track per-connection byte counts and
// timestamps: it tallies bytes on every Read/Write without touching
// raw socket internals. ID is an xid, assigned once at accept time,
// used to correlate log lines for this connection.
type ConnStats struct {
	net.Conn
	ID       xid.ID
	OpenedAt time.Time
	ClosedAt time.Time

	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

func WrapConn(conn net.Conn) *ConnStats {
	return &ConnStats{
		Conn:     conn,
		ID:       xid.New(),
		OpenedAt: time.Now(),
	}
}

func (c *ConnStats) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.bytesRecv.Add(uint64(n))
	}
	return n, err
}

func (c *ConnStats) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.bytesSent.Add(uint64(n))
	}
	return n, err
}

func (c *ConnStats) Close() error {
	c.ClosedAt = time.Now()
	return c.Conn.Close()
}

func (c *ConnStats) BytesSent() uint64 { return c.bytesSent.Load() }
func (c *ConnStats) BytesRecv() uint64 { return c.bytesRecv.Load() }
