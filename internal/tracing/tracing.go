// Package tracing exports judge spans over OTLP gRPC.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/geox/judge/internal/config"
	"github.com/geox/judge/internal/logging"
)

// ServiceName is the resource service name of exported spans.
const ServiceName = "judge"

// Provider owns the SDK tracer provider and implements lifecycle.Component.
// A disabled Provider hands out tracers of the global provider.
type Provider struct {
	sdk     *sdktrace.TracerProvider
	logger  *logging.Logger
	enabled bool
}

// NewProvider builds the exporter described by cfg and installs it as the
// global tracer provider.
func NewProvider(cfg config.TracingSettings, version string) (*Provider, error) {
	logger := logging.GetLogger("tracing")
	if !cfg.Enabled {
		logger.Debug("Tracing disabled")
		return &Provider{logger: logger}, nil
	}
	if cfg.Endpoint == "" {
		return nil, errors.New("tracing enabled but endpoint not configured")
	}

	creds, err := transportCredentials(cfg)
	if err != nil {
		return nil, err
	}
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(creds)),
	}
	if plaintext(cfg) {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(sdk)
	logger.Info("Tracing initialized with endpoint: %s", cfg.Endpoint)

	return &Provider{sdk: sdk, logger: logger, enabled: true}, nil
}

func plaintext(cfg config.TracingSettings) bool {
	return !cfg.Insecure && cfg.TLSCAPath == ""
}

// transportCredentials picks TLS with a custom CA, TLS without verification,
// or plaintext.
func transportCredentials(cfg config.TracingSettings) (credentials.TransportCredentials, error) {
	switch {
	case cfg.Insecure:
		return credentials.NewTLS(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in via tracing.insecure
			MinVersion:         tls.VersionTLS12,
		}), nil
	case cfg.TLSCAPath != "":
		caCert, err := os.ReadFile(cfg.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCAPath)
		}
		return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
	default:
		return insecure.NewCredentials(), nil
	}
}

// Start implements lifecycle.Component.
func (p *Provider) Start(context.Context) error {
	return nil
}

// Stop flushes pending spans.
func (p *Provider) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}
	return nil
}

// Name implements lifecycle.Component.
func (p *Provider) Name() string {
	return "Tracing Provider"
}

// Tracer returns a named tracer of the global provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// Enabled reports whether spans are exported.
func (p *Provider) Enabled() bool {
	return p.enabled
}
