// feerd is a priority fee estimation daemon.  It ingests per-slot transaction
// fee data from a websocket feed, maintains a bounded sliding window over the
// most recent slots, and serves percentile-based fee estimates over JSON-RPC.
package main

import (
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/solsuite/feerd/feedclient"
	"github.com/solsuite/feerd/feetracker"
	"github.com/solsuite/feerd/ingest"
	"github.com/solsuite/feerd/log"
	"github.com/solsuite/feerd/version"
)

var (
	cfg *config

	feerdLog = log.FeerdLog
	srvrLog  = log.SrvrLog
)

func init() {
	feedclient.UseLogger(log.FeedLog)
	feetracker.UseLogger(log.TrkrLog)
	ingest.UseLogger(log.IngtLog)
}

// versionString returns the application version as a string.
func versionString() string {
	return version.String()
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit()
	if err := feerdMain(nil); err != nil {
		os.Exit(1)
	}
}

// feerdMain is the real main function for feerd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
// The optional serverChan parameter is mainly used by the service code to be
// notified with the server once it is setup so it can gracefully stop it when
// requested from the service control manager.
func feerdMain(serverChan chan<- *server) error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if log.LogRotator != nil {
			log.LogRotator.Close()
		}
	}()

	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem such as the RPC server.
	interrupt := interruptListener()
	defer feerdLog.Info("Shutdown complete")

	// Show version at startup.
	feerdLog.Infof("Version %s", versionString())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			feerdLog.Infof("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			feerdLog.Errorf("%v", http.ListenAndServe(listenAddr, nil))
		}()
	}

	if interruptRequested(interrupt) {
		return nil
	}

	// Create server and start it.
	server, err := newServer()
	if err != nil {
		feerdLog.Errorf("Unable to start server: %v", err)
		return err
	}
	defer func() {
		feerdLog.Infof("Gracefully shutting down the server...")
		server.Stop()
		server.WaitForShutdown()
		srvrLog.Infof("Server shutdown complete")
	}()
	server.Start()
	if serverChan != nil {
		serverChan <- server
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the RPC
	// server.
	<-interrupt
	return nil
}
