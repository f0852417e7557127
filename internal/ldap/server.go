/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/majewsky/femtoldap/internal/database"
	"github.com/majewsky/femtoldap/internal/metrics"
)

// RebuildFunc re-reads the configuration and builds a fresh database snapshot.
type RebuildFunc func() (*database.Database, error)

// Server accepts LDAP connections and hands them to ClientHandler. The active
// database snapshot sits behind an atomic pointer: publication is a single
// store, and handlers load it once per message.
type Server struct {
	current atomic.Pointer[database.Database]
	rebuild RebuildFunc
}

// NewServer creates a Server with the given initial snapshot.
func NewServer(initial *database.Database, rebuild RebuildFunc) *Server {
	s := &Server{rebuild: rebuild}
	s.current.Store(initial)
	return s
}

// Snapshot returns the currently active database.
func (s *Server) Snapshot() *database.Database {
	return s.current.Load()
}

// Publish replaces the active database. In-flight messages finish on the
// snapshot they loaded; the next message sees the new one.
func (s *Server) Publish(db *database.Database) {
	s.current.Store(db)
}

// Reload rebuilds the database from the configuration. On error, the active
// snapshot stays in place.
func (s *Server) Reload() {
	log.Info().Msg("Reloading configuration")
	db, err := s.rebuild()
	if err != nil {
		log.Error().Err(err).Msg("Reload failed, keeping the active database")
		return
	}
	s.Publish(db)
	stats := db.Stats()
	log.Info().Int("entries", stats.Entries).Int("bind_capable", stats.BindCapable).Msg("Activated new database")
}

// RunConfig says where Run should listen.
type RunConfig struct {
	// LDAPBindAddr is the listen address for plain LDAP, or empty to disable.
	LDAPBindAddr string
	// LDAPSBindAddr is the listen address for LDAPS, or empty to disable.
	// Requires TLSConfig.
	LDAPSBindAddr string
	TLSConfig     *tls.Config
	// WatchPaths are directories whose changes trigger a reload, in addition
	// to SIGHUP. Empty disables the watcher.
	WatchPaths []string
}

// Run operates all listeners and the reload triggers until ctx expires.
func (s *Server) Run(ctx context.Context, cfg RunConfig) error {
	group, ctx := errgroup.WithContext(ctx)

	if cfg.LDAPBindAddr != "" {
		listener, err := net.Listen("tcp", cfg.LDAPBindAddr)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return s.serve(ctx, listener, "LDAP", nil)
		})
	}
	if cfg.LDAPSBindAddr != "" {
		listener, err := net.Listen("tcp", cfg.LDAPSBindAddr)
		if err != nil {
			return err
		}
		group.Go(func() error {
			return s.serve(ctx, listener, "LDAPS", cfg.TLSConfig)
		})
	}

	group.Go(func() error {
		return s.handleReloadSignals(ctx)
	})
	if len(cfg.WatchPaths) > 0 {
		group.Go(func() error {
			return s.watchConfigPaths(ctx, cfg.WatchPaths)
		})
	}

	return group.Wait()
}

// serve runs the accept loop for one listener. Shutdown closes the listener
// and all accepted connections, then waits for the handlers to wind down.
func (s *Server) serve(ctx context.Context, listener net.Listener, protocol string, tlsConfig *tls.Config) error {
	log.Info().Str("protocol", protocol).Str("address", listener.Addr().String()).Msg("Listening")
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				log.Debug().Str("protocol", protocol).Msg("Listener terminating")
				return nil
			}
			log.Error().Err(err).Str("protocol", protocol).Msg("Error in accepting connection")
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn, protocol, tlsConfig)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn, protocol string, tlsConfig *tls.Config) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if tlsConfig != nil {
		tlsConn := tls.Server(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("Error in accepting TLS connection")
			conn.Close()
			return
		}
		conn = tlsConn
	}
	metrics.ConnectionsTotal.WithLabelValues(protocol).Inc()

	err := NewClientHandler(conn, s.Snapshot).Run()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("Error while serving connection")
	}
}

func (s *Server) handleReloadSignals(ctx context.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP)
	defer signal.Stop(signals)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-signals:
			s.Reload()
		}
	}
}

// watchConfigPaths reloads when files below the given paths change. Events
// are debounced because editors and config management tools write several
// files in quick succession.
func (s *Server) watchConfigPaths(ctx context.Context, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			return err
		}
		log.Debug().Str("path", path).Msg("Watching for configuration changes")
	}

	const debounceInterval = 100 * time.Millisecond
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				pending = time.After(debounceInterval)
			}
		case err := <-watcher.Errors:
			log.Error().Err(err).Msg("Error while watching configuration")
		case <-pending:
			pending = nil
			s.Reload()
		}
	}
}
