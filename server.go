package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/solsuite/feerd/feedclient"
	"github.com/solsuite/feerd/feetracker"
	"github.com/solsuite/feerd/ingest"
	"github.com/solsuite/feerd/metrics"
	"github.com/solsuite/feerd/rpcserver"
)

// server wires the fee tracker, the feed ingestion pipeline, and the RPC
// serving boundary together and manages their lifecycles.
type server struct {
	startupTime int64

	tracker  *feetracker.Tracker
	ingestor *ingest.Ingestor

	feedClient *feedclient.Client

	// fallbackClient warms the window on startup.  It is nil when no
	// fallback RPC server is configured.
	fallbackClient *feedclient.Client

	// rpcServer is nil when the RPC server is disabled.
	rpcServer *rpcserver.Server

	wg   sync.WaitGroup
	quit chan struct{}
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// setupRPCListeners returns a slice of listeners that are configured for use
// with the RPC server depending on the configuration settings for listen
// addresses and TLS.
func setupRPCListeners() ([]net.Listener, error) {
	// Setup TLS if not disabled.
	listenFunc := net.Listen
	if !cfg.DisableTLS {
		// Generate the TLS cert and key file if both don't already
		// exist.
		if !fileExists(cfg.RPCKey) && !fileExists(cfg.RPCCert) {
			err := rpcserver.GenCertPair(cfg.RPCCert, cfg.RPCKey)
			if err != nil {
				return nil, err
			}
		}
		keypair, err := tls.LoadX509KeyPair(cfg.RPCCert, cfg.RPCKey)
		if err != nil {
			return nil, err
		}

		tlsConfig := tls.Config{
			Certificates: []tls.Certificate{keypair},
			MinVersion:   tls.VersionTLS12,
		}

		// Change the standard net.Listen function to the tls one.
		listenFunc = func(net string, laddr string) (net.Listener, error) {
			return tls.Listen(net, laddr, &tlsConfig)
		}
	}

	listeners := make([]net.Listener, 0, len(cfg.RPCListeners))
	for _, addr := range cfg.RPCListeners {
		listener, err := listenFunc("tcp", addr)
		if err != nil {
			srvrLog.Warnf("Can't listen on %s: %v", addr, err)
			continue
		}
		listeners = append(listeners, listener)
	}
	if len(listeners) == 0 {
		return nil, fmt.Errorf("no valid RPC listen addresses")
	}

	return listeners, nil
}

// newServer builds all subsystems from the loaded configuration.  The feed
// connection is not established until Start.
func newServer() (*server, error) {
	s := &server{
		startupTime: time.Now().Unix(),
		quit:        make(chan struct{}),
	}

	s.tracker = feetracker.NewTracker(cfg.LookbackSlots)
	s.ingestor = ingest.NewIngestor(s.tracker, cfg.SigCacheSize)

	// The feed connection is deferred to Start so a slow or unavailable
	// feed does not block process startup.
	var feedCert []byte
	if cfg.FeedCert != "" {
		var err error
		feedCert, err = os.ReadFile(cfg.FeedCert)
		if err != nil {
			return nil, err
		}
	}
	feedCfg := &feedclient.ConnConfig{
		Host:                cfg.FeedServer,
		Endpoint:            cfg.FeedEndpoint,
		User:                cfg.FeedUser,
		Pass:                cfg.FeedPass,
		AuthToken:           cfg.FeedToken,
		DisableTLS:          cfg.NoFeedTLS,
		Certificates:        feedCert,
		DisableConnectOnNew: true,
	}
	feedClient, err := feedclient.New(feedCfg, &feedclient.NotificationHandlers{
		OnClientConnected: s.onFeedConnected,
		OnSlotFees:        s.onSlotFees,
	})
	if err != nil {
		return nil, err
	}
	s.feedClient = feedClient

	if cfg.FallbackRPC != "" {
		fallbackCfg := &feedclient.ConnConfig{
			Host:         cfg.FallbackRPC,
			AuthToken:    cfg.FallbackToken,
			DisableTLS:   cfg.NoFallbackTLS,
			HTTPPostMode: true,
		}
		fallbackClient, err := feedclient.New(fallbackCfg, nil)
		if err != nil {
			return nil, err
		}
		s.fallbackClient = fallbackClient
	}

	if !cfg.DisableRPC {
		listeners, err := setupRPCListeners()
		if err != nil {
			return nil, err
		}

		s.rpcServer, err = rpcserver.New(&rpcserver.Config{
			Listeners:    listeners,
			StartupTime:  s.startupTime,
			Tracker:      s.tracker,
			RPCUser:      cfg.RPCUser,
			RPCPass:      cfg.RPCPass,
			RPCLimitUser: cfg.RPCLimitUser,
			RPCLimitPass: cfg.RPCLimitPass,
			MaxClients:   cfg.RPCMaxClients,
			Quirks:       cfg.RPCQuirks,
		})
		if err != nil {
			return nil, err
		}

		// Signal process shutdown when the RPC server requests it.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case <-s.rpcServer.RequestedProcessShutdown():
				shutdownRequestChannel <- struct{}{}
			case <-s.quit:
			}
		}()
	}

	return s, nil
}

// onFeedConnected registers for slot fee notifications every time the feed
// connection is established, including reconnects.
func (s *server) onFeedConnected() {
	metrics.FeedConnects.Inc()
	srvrLog.Debugf("Feed connected, registering for slot fee notifications")
	if err := s.feedClient.NotifySlotFees(); err != nil {
		srvrLog.Errorf("Failed to register for slot fee "+
			"notifications: %v", err)
	}
}

// onSlotFees forwards a slot fee notification into the ingestion pipeline.
func (s *server) onSlotFees(slot uint64, transactions []json.RawMessage) {
	s.ingestor.OnSlotFees(slot, transactions)
}

// Start launches the subsystems: the best-effort bootstrap, the feed
// connection, and the RPC server.
func (s *server) Start() {
	srvrLog.Trace("Starting server")

	// Warm the window from the fallback RPC before the feed starts
	// delivering.  This is best effort: failure leaves the window cold but
	// does not prevent startup.
	if s.fallbackClient != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.ingestor.Bootstrap(s.fallbackClient); err != nil {
				srvrLog.Warnf("Window bootstrap from %s "+
					"failed: %v", cfg.FallbackRPC, err)
			}
		}()
	}

	// Establish the feed connection with unlimited retries so a feed
	// outage at startup resolves itself once the feed returns.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.feedClient.Connect(0); err != nil {
			srvrLog.Errorf("Unable to connect to feed %s: %v",
				cfg.FeedServer, err)
		}
	}()

	if s.rpcServer != nil {
		s.rpcServer.Start()
	}
}

// Stop gracefully shuts down all subsystems.
func (s *server) Stop() error {
	srvrLog.Warnf("Server shutting down")

	if s.rpcServer != nil {
		if err := s.rpcServer.Stop(); err != nil {
			srvrLog.Errorf("Problem shutting down RPC server: %v",
				err)
		}
	}

	s.feedClient.Shutdown()
	if s.fallbackClient != nil {
		s.fallbackClient.Shutdown()
	}

	close(s.quit)
	return nil
}

// WaitForShutdown blocks until all server goroutines have finished.
func (s *server) WaitForShutdown() {
	s.feedClient.WaitForShutdown()
	s.wg.Wait()
}
