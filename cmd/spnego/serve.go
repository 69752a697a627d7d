// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	spnego "github.com/golang-auth/go-spnego"
	ghttp "github.com/golang-auth/go-spnego/http"
	"github.com/golang-auth/go-spnego/krb5"
)

func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a Negotiate protected echo server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")

	return cmd
}

// echo reports who the client authenticated as.
func echo(w http.ResponseWriter, r *http.Request) {
	in, ok := ghttp.GetInitiatorName(r)
	if !ok {
		http.Error(w, "not authenticated", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "principal: %s\nscheme: %s\nflags: %s\nchannel bound: %t\n",
		in.PrincipalName, in.Scheme, in.Flags, ghttp.HasChannelBindings(r))
}

func newLogger(cfg Config) *slog.Logger {
	level, _ := cfg.logLevel()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newServer wires the acceptor, negotiator and handler described by cfg.
func newServer(cfg Config, logger *slog.Logger, reg *prometheus.Registry) (*http.Server, error) {
	accOpts := []krb5.AcceptorOption{
		krb5.WithMaxClockSkew(cfg.MaxClockSkew),
		krb5.WithAcceptorLogger(logger),
	}
	if cfg.ServicePrincipal != "" {
		accOpts = append(accOpts, krb5.WithKeytabPrincipal(cfg.ServicePrincipal))
	}
	acc, err := krb5.NewAcceptorFromFile(cfg.Keytab, accOpts...)
	if err != nil {
		return nil, err
	}

	negOpts := []spnego.NegotiatorOption{spnego.WithAcceptor(acc), spnego.WithLogger(logger)}
	if cfg.DisableJDKFix {
		negOpts = append(negOpts, spnego.WithoutJDKFix())
	}
	negotiator := spnego.NewNegotiator(negOpts...)

	hOpts := []ghttp.HandlerOption{
		ghttp.WithAcceptorLogger(logger),
		ghttp.WithAcceptorMetrics(ghttp.NewMetrics(reg)),
		ghttp.WithAcceptorChannelBindingDisposition(cfg.channelBindingDisposition()),
	}

	if cfg.Basic.Enabled {
		krbConf, err := krb5.LoadConfig(cfg.Krb5Config)
		if err != nil {
			return nil, err
		}
		hOpts = append(hOpts, ghttp.WithAcceptorBasicValidator(krb5.NewBasicValidator(krbConf, cfg.Basic.Realm, logger)))
		if cfg.Basic.Challenge != "" {
			hOpts = append(hOpts, ghttp.WithAcceptorRealm(cfg.Basic.Challenge))
		}
	}

	var tlsConfig *tls.Config
	if cfg.TLS.Enabled() {
		pair, err := tls.LoadX509KeyPair(cfg.TLS.Cert, cfg.TLS.Key)
		if err != nil {
			return nil, fmt.Errorf("loading TLS key pair: %w", err)
		}
		leaf, err := x509.ParseCertificate(pair.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parsing TLS certificate: %w", err)
		}

		hOpts = append(hOpts, ghttp.WithAcceptorServerCertificate(leaf))
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12}
	}

	handler, err := ghttp.NewHandler(negotiator, http.HandlerFunc(echo), hOpts...)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if cfg.MetricsPath != "" {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", handler)

	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}, nil
}

func serve(ctx context.Context, cfg Config) error {
	logger := newLogger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := newServer(cfg, logger, reg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen, "tls", cfg.TLS.Enabled(), "channel_binding", cfg.channelBindingDisposition())
		if srv.TLSConfig != nil {
			errCh <- srv.ListenAndServeTLS("", "")
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
