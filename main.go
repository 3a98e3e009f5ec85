package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"crypto/tls"
	"net/http"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/sheperdglobal-alt/imap-email-filter/accounts"
	"github.com/sheperdglobal-alt/imap-email-filter/api"
	"github.com/sheperdglobal-alt/imap-email-filter/config"
	"github.com/sheperdglobal-alt/imap-email-filter/crypto"
	"github.com/sheperdglobal-alt/imap-email-filter/proxy"
	"github.com/sheperdglobal-alt/imap-email-filter/quarantine"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// chooseLogLevel resolves the effective log level from
// the -loglevel flag and the configured value. A flag
// passed on the command line wins, otherwise a non-empty
// configured level governs, falling back to the flag
// default.
func chooseLogLevel(flagPassed bool, flagValue string, confValue string) string {

	if flagPassed {
		return flagValue
	}

	if confValue != "" {
		return confValue
	}

	return flagValue
}

// runListener accepts client connections on supplied
// listener and hands each one to the proxy service on
// its own goroutine. A closed listener ends the loop
// without error.
func runListener(listener net.Listener, svc proxy.Service, sessions *sync.WaitGroup) error {

	for {

		conn, err := listener.Accept()
		if err != nil {

			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("failed to accept connection with: %v", err)
		}

		sessions.Add(1)

		go func(c net.Conn) {
			defer sessions.Done()
			svc.HandleConnection(c)
		}(conn)
	}
}

func main() {

	var err error

	// Set usable CPUs to all available.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Parse command-line flag that defines a config path.
	configFlag := flag.String("config", "config.toml", "Provide path to configuration file in TOML syntax.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := config.LoadConfig(*configFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config", "err", err,
		)
		os.Exit(1)
	}

	// Let environment values override file values.
	err = config.LoadEnv(conf)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to apply environment overrides", "err", err,
		)
		os.Exit(1)
	}

	// Rebuild the logger now that the configured log
	// level is known. An explicitly passed -loglevel
	// flag wins over the configured value.
	loglevelSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "loglevel" {
			loglevelSet = true
		}
	})

	logger = initLogger(chooseLogLevel(loglevelSet, *loglevelFlag, conf.LogLevel))

	accountsStore, err := accounts.NewStore(conf.Accounts.File)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the accounts file", "err", err,
		)
		os.Exit(1)
	}

	store := quarantine.NewStore()

	metrics := NewProxyMetrics(conf.Proxy.PrometheusAddr)

	svc := proxy.NewService(
		log.With(logger, "service", "proxy"),
		proxy.NewUpstreamDialer(conf.Upstream),
		store,
		conf.Filter,
		metrics,
	)
	svc = proxy.NewLoggingService(svc, log.With(logger, "service", "proxy"))

	var cleartextListener net.Listener
	var tlsListener net.Listener

	if conf.Proxy.UnsecurePort != 0 {

		addr := fmt.Sprintf("%s:%d", conf.Proxy.ListenHost, conf.Proxy.UnsecurePort)

		cleartextListener, err = net.Listen("tcp", addr)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to open cleartext listener", "err", err,
			)
			os.Exit(2)
		}
		defer cleartextListener.Close()

		level.Info(logger).Log("msg", "cleartext listener accepting connections", "addr", addr)
	}

	if conf.Proxy.SecurePort != 0 {

		tlsConfig, err := crypto.NewPublicTLSConfig(conf.Proxy.CertLoc, conf.Proxy.KeyLoc)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to load TLS listener material", "err", err,
			)
			os.Exit(2)
		}

		addr := fmt.Sprintf("%s:%d", conf.Proxy.ListenHost, conf.Proxy.SecurePort)

		tlsListener, err = tls.Listen("tcp", addr, tlsConfig)
		if err != nil {
			level.Error(logger).Log(
				"msg", "failed to open TLS listener", "err", err,
			)
			os.Exit(2)
		}
		defer tlsListener.Close()

		level.Info(logger).Log("msg", "TLS listener accepting connections", "addr", addr)
	}

	if (cleartextListener == nil) && (tlsListener == nil) {
		level.Error(logger).Log("msg", "no listener configured, set a cleartext or TLS port")
		os.Exit(2)
	}

	var apiServer *http.Server

	if conf.API.Port != 0 {

		surface := api.New(log.With(logger, "service", "api"), store, accountsStore, conf.API)

		apiServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", conf.API.Host, conf.API.Port),
			Handler: surface.Handler(),
		}
	}

	go runPromHTTP(log.With(logger, "service", "metrics"), conf.Proxy.PrometheusAddr)

	var sessions sync.WaitGroup
	var g errgroup.Group

	if cleartextListener != nil {
		listener := cleartextListener
		g.Go(func() error {
			return runListener(listener, svc, &sessions)
		})
	}

	if tlsListener != nil {
		listener := tlsListener
		g.Go(func() error {
			return runListener(listener, svc, &sessions)
		})
	}

	if apiServer != nil {
		g.Go(func() error {

			level.Info(logger).Log("msg", "API listening", "addr", apiServer.Addr)

			err := apiServer.ListenAndServe()
			if (err != nil) && (err != http.ErrServerClosed) {
				return fmt.Errorf("failed to serve API with: %v", err)
			}

			return nil
		})
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {

		sig := <-shutdown

		level.Info(logger).Log("msg", "shutting down", "signal", sig.String())

		if cleartextListener != nil {
			cleartextListener.Close()
		}

		if tlsListener != nil {
			tlsListener.Close()
		}

		if apiServer != nil {

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			apiServer.Shutdown(ctx)
		}
	}()

	err = g.Wait()
	if err != nil {
		level.Error(logger).Log(
			"msg", "proxy terminated abnormally", "err", err,
		)
		os.Exit(3)
	}

	// Let in-flight sessions finish, bounded.
	drained := make(chan struct{})

	go func() {
		sessions.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		level.Info(logger).Log("msg", "all sessions finished, exiting")
	case <-time.After(30 * time.Second):
		level.Warn(logger).Log("msg", "timed out waiting for open sessions, exiting")
	}
}
