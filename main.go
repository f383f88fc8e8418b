package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // Intentionally exposed on debug port.
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/proxykit/proxychain/internal/dialer"
	"github.com/proxykit/proxychain/internal/endpoint"
	"github.com/proxykit/proxychain/internal/proxy"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		ingressURL = pflag.StringP("ingress", "i", "", "Ingress endpoint URL to listen on: http://host:port | socks5://host:port")
		egressURLs = pflag.StringArrayP("egress", "o", nil, "Egress proxy URL: http://[user:pass@]host:port | socks5://[user:pass@]host:port (repeat to chain hops in order)")

		debugListen        = pflag.String("debug-listen", "", "Debug HTTP listen address exposing /debug/pprof (e.g. 127.0.0.1:6060). Empty disables.")
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for outbound DNS lookup and TCP connect")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for protocol negotiation to set up connection")
		idleTimeout        = pflag.Duration("idle-timeout", 4*time.Minute, "Close a relayed connection with no traffic for this long. 0 disables.")
		shutdownGrace      = pflag.Duration("shutdown-grace", 10*time.Second, "How long to let active sessions drain on shutdown before forcing close")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose            = pflag.BoolP("verbose", "v", false, "Enable per-session debug logging")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	if *ingressURL == "" {
		return errors.New("missing --ingress (-i)")
	}
	ingressEP, err := endpoint.Parse(*ingressURL)
	if err != nil {
		return fmt.Errorf("invalid --ingress: %w", err)
	}
	if ingressEP.HasAuth() {
		return errors.New("invalid --ingress: credentials are not supported on the listening side")
	}

	if len(*egressURLs) == 0 {
		return errors.New("missing --egress (-o)")
	}
	egressEPs, err := endpoint.ParseAll(*egressURLs)
	if err != nil {
		return fmt.Errorf("invalid --egress: %w", err)
	}

	chain, err := dialer.NewChain(dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
	}, egressEPs)
	if err != nil {
		return fmt.Errorf("invalid --egress: %w", err)
	}

	cfg := proxy.Config{
		NegotiationTimeout: *negotiationTimeout,
		IdleTimeout:        *idleTimeout,
		Dialer:             chain,
	}

	g, ctx := errgroup.WithContext(context.Background())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *debugListen != "" {
		debugSrv := &http.Server{Handler: http.DefaultServeMux} //nolint:gosec // Not concerned about timeouts on debug port.
		lc := net.ListenConfig{KeepAliveConfig: ka}
		debugLn, err := lc.Listen(ctx, "tcp", *debugListen)
		if err != nil {
			return fmt.Errorf("debug listen: %w", err)
		}
		context.AfterFunc(ctx, func() {
			_ = debugSrv.Close()
			_ = debugLn.Close()
		})

		g.Go(func() error {
			if err := debugSrv.Serve(debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug serve: %w", err)
			}
			return nil
		})
		logrus.Infof("debug listening on %s", *debugListen)
	}

	ln, err := proxy.ListenTCP("tcp", ingressEP.Addr(), ka)
	if err != nil {
		return fmt.Errorf("ingress listen: %w", err)
	}
	srv := proxy.NewServer(cfg, proxy.NewIngress(ingressEP.Protocol))
	context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil {
			return fmt.Errorf("ingress serve: %w", err)
		}
		return nil
	})
	logrus.Infof("%s ingress listening on %s, egress %s", ingressEP.Protocol, ingressEP.Addr(), describeChain(egressEPs))

	err = g.Wait()

	logrus.Info("shutting down")
	srv.Shutdown(*shutdownGrace)
	return err
}

func describeChain(eps []endpoint.Endpoint) string {
	parts := make([]string, 0, len(eps))
	for _, ep := range eps {
		parts = append(parts, ep.String())
	}
	return strings.Join(parts, " -> ")
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
