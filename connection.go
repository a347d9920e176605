package main

import (
	"errors"
	"io"
	"log"
)

const readChunkSize = 1024

// ClientInput is the per-connection accumulation buffer the incremental
// parser runs against. It holds exactly the unconsumed bytes: nothing
// about it survives a successful dispatch except the tail the parser
// didn't touch.
type ClientInput struct {
	buf []byte
}

func NewClientInput() *ClientInput {
	return &ClientInput{}
}

func (c *ClientInput) append(b []byte) {
	c.buf = append(c.buf, b...)
}

// handleConnection runs the read/parse/dispatch/reply loop for one
// accepted connection until the client disconnects or a protocol error
// forces the connection closed. It owns conn exclusively and closes it
// on every terminal path.
func handleConnection(conn *ConnStats, store *Store, stats *ServerStats) {
	defer func() {
		conn.Close()
		stats.BytesRead.Add(conn.BytesRecv())
		stats.BytesWritten.Add(conn.BytesSent())
	}()

	input := NewClientInput()
	chunk := make([]byte, readChunkSize)

	for {
		if len(input.buf) > 0 {
			frame, tail, err := parseRESP(input.buf)
			if err == nil {
				pc := parsedCommandFromFrame(frame)
				reply := Dispatch(store, stats, pc)

				out := responsePool.Get(64)
				out = encodeRESPInto(out, reply)
				_, werr := conn.Write(out)
				responsePool.Put(out)
				if werr != nil {
					log.Printf("conn %s: write error: %v", conn.ID, werr)
					return
				}
				input.buf = tail
				continue
			}

			var parseErr ParseError
			if errors.As(err, &parseErr) && parseErr != ErrIncompleteInput {
				conn.Write(encodeRESP(ErrorFrame(parseErr.Error())))
				return
			}
			// ErrIncompleteInput: fall through and read more bytes.
		}

		n, err := conn.Read(chunk)
		if n == 0 || err != nil {
			if err != nil && err != io.EOF {
				log.Printf("conn %s: read error: %v", conn.ID, err)
			}
			return
		}
		input.append(chunk[:n])
	}
}
