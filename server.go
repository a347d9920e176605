package main

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/multierr"
)

// Server owns the listener, the store, and the background goroutines
// that serve it. There is no package-level singleton: the accept loop
// constructs exactly one Server and hands its Store to every
// connection handler as an explicitly-passed handle rather than hidden
// global state.
type Server struct {
	config   *Config
	store    *Store
	stats    *ServerStats
	listener net.Listener

	wg      conc.WaitGroup
	closing chan struct{}
}

func NewServer(config *Config) *Server {
	stats := NewServerStats()
	store := NewStore(config.CacheCapacity, stats).WithDefaultTTL(config.DefaultTTL)
	return &Server{
		config:  config,
		store:   store,
		stats:   stats,
		closing: make(chan struct{}),
	}
}

// Start binds the listener and serves connections until Stop is
// called. It blocks for the lifetime of the server.
func (s *Server) Start() error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("calod server listening on %s (capacity=%d)", address, s.config.CacheCapacity)

	if s.config.PersistenceEnabled {
		if err := s.loadSnapshot(); err != nil {
			log.Printf("persistence: starting with an empty store: %v", err)
		}
		s.wg.Go(s.runPersistenceLoop)
	}

	s.wg.Go(s.runInvalidationLoop)

	if s.config.MetricsEnabled {
		s.wg.Go(s.runMetricsServer)
	}

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return nil
			default:
				log.Printf("accept error: %v", err)
				continue
			}
		}

		s.stats.Connections.Inc()
		wrapped := WrapConn(conn)

		// Connections are unbounded and outlive any single Stop() call,
		// so each is spawned directly rather than through s.wg (which
		// Stop joins on). A conc panics.Catcher still recovers a panic
		// inside one handler without taking the rest of the server, or
		// any other connection, down with it — just without the
		// WaitGroup's join-on-Wait semantics, which don't fit a
		// connection population that never stops growing.
		go func() {
			var catcher panics.Catcher
			catcher.Try(func() {
				handleConnection(wrapped, s.store, s.stats)
			})
			if recovered := catcher.Recovered(); recovered != nil {
				log.Printf("conn %s: recovered panic: %v", wrapped.ID, recovered)
			}
		}()
	}
}

// Stop closes the listener, signals the background loops (invalidation
// sweep, persistence timer, metrics server) to exit, and waits for them
// to finish before returning. It does not wait for in-flight
// connections: the socket is each handler's own resource and closes
// itself on its own terminal path.
func (s *Server) Stop() error {
	close(s.closing)

	var err error
	if s.listener != nil {
		err = multierr.Append(err, s.listener.Close())
	}
	if recovered := s.wg.WaitAndRecover(); recovered != nil {
		log.Printf("background loop recovered panic: %v", recovered.Value)
	}
	if s.config.PersistenceEnabled {
		err = multierr.Append(err, s.saveSnapshot())
	}
	if err != nil {
		log.Printf("shutdown: %v", err)
	}
	return err
}

func (s *Server) runInvalidationLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
			if n := s.store.Invalidate(); n > 0 {
				log.Printf("invalidation sweep removed %d expired keys", n)
			}
		}
	}
}

func (s *Server) runPersistenceLoop() {
	interval := s.config.SnapshotInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
			if err := s.saveSnapshot(); err != nil {
				log.Printf("persistence: periodic save failed: %v", err)
			}
		}
	}
}
