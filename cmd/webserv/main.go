// Command webserv runs the HTTP/1.1 origin server and CGI gateway
// described in the package docs of internal/engine.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yourusername/webserv/internal/config"
	"github.com/yourusername/webserv/internal/engine"
	"github.com/yourusername/webserv/internal/logging"
)

var (
	testConfig bool
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "webserv <config-file>",
		Short: "An nginx-modeled HTTP/1.1 origin server with an integrated CGI/1.1 gateway",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	root.Flags().BoolVarP(&testConfig, "test-config", "t", false, "parse and dump the configuration, then exit")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.Version = "0.1.0"

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	path := args[0]

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if testConfig {
		cfg.Dump(os.Stdout)
		return nil
	}

	log := logging.New(logLevel)

	reactor, err := engine.New(cfg, log)
	if err != nil {
		return fmt.Errorf("starting reactor: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	// A half-closed peer writing to an already-reset connection must not
	// kill the whole process; the reactor observes EPIPE on the write
	// syscall instead (spec.md §6: "SIGPIPE ignore").
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		sig := <-sigCh
		log.Infof("received %s, shutting down", sig)
		reactor.Close()
	}()

	log.Infof("webserv starting, %d listen endpoint(s)", len(cfg.Endpoints))
	if err := reactor.Run(); err != nil {
		return fmt.Errorf("reactor: %w", err)
	}

	log.Infof("webserv stopped cleanly")
	return nil
}
