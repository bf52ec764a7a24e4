package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hanpama/portalgraph/internal/accesslog"
	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/config"
	"github.com/hanpama/portalgraph/internal/devbackend"
	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/executor"
	"github.com/hanpama/portalgraph/internal/gateway"
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"github.com/hanpama/portalgraph/internal/grpctp"
	"github.com/hanpama/portalgraph/internal/introspection"
	"github.com/hanpama/portalgraph/internal/loader"
	"github.com/hanpama/portalgraph/internal/metrics"
	"github.com/hanpama/portalgraph/internal/otel"
	"github.com/hanpama/portalgraph/internal/protoreg"
	"github.com/hanpama/portalgraph/internal/schema"
	"github.com/hanpama/portalgraph/internal/server"
)

const rootUsage = `portalgraph — GraphQL gateway over the portal entity services

USAGE:
  portalgraph <command> [flags]

COMMANDS:
  serve              Run the HTTP GraphQL gateway backed by gRPC services
  serve-dev-backend  Run an in-memory implementation of the entity services
  compile-sdl        Print the GraphQL schema of the entity catalog
  compile-proto      Generate .proto files for the entity services
  help               Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>                      YAML config file
  -env-file <file>                    .env file to load (default: .env, ignored if missing)
  -server.addr <addr>                 HTTP listen address (default: :8080)
  -server.pretty                      Pretty-print JSON responses
  -server.timeout <duration>          Per-request timeout, e.g. 10s (default: 10s)
  -server.metadata-header <name>      Forward HTTP header to gRPC metadata. Repeatable
  -server.introspection <bool>        Enable GraphQL introspection (default: true)
  -transport.backend <Svc=host:port>  Map gRPC service to endpoint. Repeatable; at least
                                      one mapping required. Use wildcard to set default:
                                        -transport.backend *=host:port
                                      Specific mappings override the wildcard.
  -transport.max-conns-per-endpoint N Max TCP conns per endpoint (default: 2)
  -transport.rpc-timeout <duration>   RPC timeout, e.g. 3s (default: 3s)
  -gateway.default-actor <id>         Acting identity when a request carries none
  -otel.endpoint <addr>               OTLP collector endpoint
  -otel.service <name>                OpenTelemetry service name (default: portalgraph)
  -metrics.addr <addr>                Serve Prometheus metrics on this address
  -log.level <level>                  debug, info, warn or error (default: info)

Every setting can also be given as PORTALGRAPH_<SECTION>_<NAME>, e.g.
PORTALGRAPH_TRANSPORT_BACKENDS="*=localhost:50051".
`

const devBackendUsage = `serve-dev-backend FLAGS:
  -addr <addr>  gRPC listen address (default: :50051)
`

const compileSDLUsage = `compile-sdl FLAGS:
  -locale <locale>  Locale of the flat translated-text arguments. Repeatable (default: en_US)
  -out  <file>      Write SDL to file (default: stdout)
  (Validation always runs; exits non-zero on errors)
`

const compileProtoUsage = `compile-proto FLAGS:
  -out  <dir>  Output directory for generated .proto files (default: stdout)
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "portalgraph:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global := flag.NewFlagSet("portalgraph", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	switch cmd {
	case "serve":
		return cmdServe(cmdArgs)
	case "serve-dev-backend":
		return cmdServeDevBackend(cmdArgs)
	case "compile-sdl":
		return cmdCompileSDL(cmdArgs, os.Stdout)
	case "compile-proto":
		return cmdCompileProto(cmdArgs, os.Stdout)
	case "help":
		return cmdHelp(cmdArgs, os.Stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, w io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(w, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(w, serveUsage)
	case "serve-dev-backend":
		fmt.Fprint(w, devBackendUsage)
	case "compile-sdl":
		fmt.Fprint(w, compileSDLUsage)
	case "compile-proto":
		fmt.Fprint(w, compileProtoUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type backendFlag struct {
	t *config.TransportConfig
}

func (b *backendFlag) String() string { return "" }

func (b *backendFlag) Set(v string) error { return b.t.AddBackend(v) }

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// loadServeConfig resolves the serve configuration: defaults, the config
// file, the environment, and finally the flags given on the command line.
func loadServeConfig(args []string) (*config.Config, error) {
	var (
		configPath string
		envFile    = ".env"
		flagCfg    = config.Default()
		headers    stringListFlag
		backends   = backendFlag{t: &config.TransportConfig{}}
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "YAML config file")
	fs.StringVar(&envFile, "env-file", envFile, ".env file")
	fs.StringVar(&flagCfg.Server.Addr, "server.addr", flagCfg.Server.Addr, "HTTP listen address")
	fs.BoolVar(&flagCfg.Server.Pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.DurationVar(&flagCfg.Server.Timeout, "server.timeout", flagCfg.Server.Timeout, "Per-request timeout")
	fs.Var(&headers, "server.metadata-header", "Forward HTTP header to gRPC metadata")
	fs.BoolVar(&flagCfg.Server.Introspection, "server.introspection", true, "Enable GraphQL introspection")
	fs.Var(&backends, "transport.backend", "Map gRPC service to endpoint")
	fs.IntVar(&flagCfg.Transport.MaxConnsPerEndpoint, "transport.max-conns-per-endpoint", flagCfg.Transport.MaxConnsPerEndpoint, "Max conns per endpoint")
	fs.DurationVar(&flagCfg.Transport.RPCTimeout, "transport.rpc-timeout", flagCfg.Transport.RPCTimeout, "RPC timeout")
	fs.Int64Var(&flagCfg.Gateway.DefaultActor, "gateway.default-actor", 0, "Default acting identity")
	fs.StringVar(&flagCfg.Telemetry.OTelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&flagCfg.Telemetry.ServiceName, "otel.service", flagCfg.Telemetry.ServiceName, "OpenTelemetry service name")
	fs.StringVar(&flagCfg.Telemetry.MetricsAddr, "metrics.addr", "", "Prometheus metrics address")
	fs.StringVar(&flagCfg.Telemetry.LogLevel, "log.level", flagCfg.Telemetry.LogLevel, "Log level")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return nil, err
	}

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server.addr":
			cfg.Server.Addr = flagCfg.Server.Addr
		case "server.pretty":
			cfg.Server.Pretty = flagCfg.Server.Pretty
		case "server.timeout":
			cfg.Server.Timeout = flagCfg.Server.Timeout
		case "server.metadata-header":
			cfg.Server.MetadataHeaders = headers
		case "server.introspection":
			cfg.Server.Introspection = flagCfg.Server.Introspection
		case "transport.backend":
			for svc, eps := range backends.t.Backends {
				cfg.Transport.Backends[svc] = eps
			}
		case "transport.max-conns-per-endpoint":
			cfg.Transport.MaxConnsPerEndpoint = flagCfg.Transport.MaxConnsPerEndpoint
		case "transport.rpc-timeout":
			cfg.Transport.RPCTimeout = flagCfg.Transport.RPCTimeout
		case "gateway.default-actor":
			cfg.Gateway.DefaultActor = flagCfg.Gateway.DefaultActor
		case "otel.endpoint":
			cfg.Telemetry.OTelEndpoint = flagCfg.Telemetry.OTelEndpoint
		case "otel.service":
			cfg.Telemetry.ServiceName = flagCfg.Telemetry.ServiceName
		case "metrics.addr":
			cfg.Telemetry.MetricsAddr = flagCfg.Telemetry.MetricsAddr
		case "log.level":
			cfg.Telemetry.LogLevel = flagCfg.Telemetry.LogLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprint(os.Stderr, serveUsage)
		return nil, err
	}
	return cfg, nil
}

// buildHandler wires the catalog through the gRPC transport, the gateway
// runtime and the executor into the HTTP handler.
func buildHandler(cfg *config.Config, transport grpcrt.Transport) (http.Handler, error) {
	cat := catalog.Portal()
	reg, err := protoreg.Build(cat)
	if err != nil {
		return nil, fmt.Errorf("protoreg build: %w", err)
	}
	loaderOpts := []loader.Option{loader.WithMaxConcurrentBatches(cfg.Gateway.MaxConcurrentBatches)}

	var runtime executor.Runtime
	runtime, err = gateway.New(cat, grpcrt.NewClient(reg, transport),
		gateway.WithDefaultActor(cfg.Gateway.DefaultActor),
		gateway.WithLocales(cfg.Gateway.Locales...),
		gateway.WithLoaderOptions(loaderOpts...))
	if err != nil {
		return nil, err
	}
	sch := schema.Build(cat, schema.WithLocales(cfg.Gateway.Locales...))
	if cfg.Server.Introspection {
		w := introspection.Wrap(runtime, sch)
		runtime, sch = w.Runtime, w.Schema
	}
	parsed, err := schema.Load(sch)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	sopts := []server.Option{
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithActorHeader(cfg.Server.ActorHeader),
		server.WithLoaderOptions(loaderOpts...),
	}
	if cfg.Server.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	if len(cfg.Server.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(cfg.Server.MetadataHeaders...))
	}
	mux := http.NewServeMux()
	mux.Handle("/graphql", server.New(executor.NewExecutor(runtime, sch, parsed), sopts...))
	return mux, nil
}

func cmdServe(args []string) error {
	cfg, err := loadServeConfig(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Telemetry.LogLevel, os.Stdout)
	if err != nil {
		return err
	}

	eventbus.Use(eventbus.New())
	defer accesslog.Subscribe(logger)()
	shutdown, err := otel.Setup(cfg.Telemetry.OTelEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	trOpts := []grpctp.Option{
		grpctp.WithProvider(grpctp.NewStaticEndpoints(cfg.Transport.Backends)),
		grpctp.WithMaxConnsPerEndpoint(cfg.Transport.MaxConnsPerEndpoint),
	}
	if cfg.Transport.RPCTimeout > 0 {
		trOpts = append(trOpts, grpctp.WithRPCTimeout(cfg.Transport.RPCTimeout))
	}
	transport := grpctp.New(trOpts...)
	defer transport.Close()

	handler, err := buildHandler(cfg, transport)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.MetricsAddr != "" {
		m := metrics.New()
		defer m.Subscribe()()
		ms := &http.Server{Addr: cfg.Telemetry.MetricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer ms.Close()
		logger.Info("metrics listening", slog.String("addr", cfg.Telemetry.MetricsAddr))
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("GraphQL server listening", slog.String("addr", cfg.Server.Addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

func cmdServeDevBackend(args []string) error {
	addr := ":50051"
	fs := flag.NewFlagSet("serve-dev-backend", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&addr, "addr", addr, "gRPC listen address")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, devBackendUsage)
		return err
	}
	logger, _ := newLogger("info", os.Stdout)

	cat := catalog.Portal()
	reg, err := protoreg.Build(cat)
	if err != nil {
		return fmt.Errorf("protoreg build: %w", err)
	}
	be, err := devbackend.New(cat, reg)
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	gs := be.NewServer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()
	logger.Info("dev backend listening", slog.String("addr", lis.Addr().String()))
	return gs.Serve(lis)
}

func cmdCompileSDL(args []string, stdout io.Writer) error {
	outFile := ""
	var locales stringListFlag
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.Var(&locales, "locale", "Locale of flat translated-text arguments")
	fs.StringVar(&outFile, "out", outFile, "Write SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileSDLUsage)
		return err
	}
	if len(locales) == 0 {
		locales = stringListFlag{"en_US"}
	}

	parsed, err := schema.Load(schema.Build(catalog.Portal(), schema.WithLocales(locales...)))
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Format(parsed)
	if outFile == "" {
		_, err := io.WriteString(stdout, sdl)
		return err
	}
	return os.WriteFile(outFile, []byte(sdl), 0644)
}

func cmdCompileProto(args []string, stdout io.Writer) error {
	outDir := ""
	fs := flag.NewFlagSet("compile-proto", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&outDir, "out", outDir, "Output directory for generated .proto files")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, compileProtoUsage)
		return err
	}
	reg, err := protoreg.Build(catalog.Portal())
	if err != nil {
		return fmt.Errorf("protoreg build: %w", err)
	}
	if outDir == "" {
		return protoreg.RenderTo(reg, stdout)
	}
	if err := protoreg.Render(reg, outDir); err != nil {
		return fmt.Errorf("render proto: %w", err)
	}
	return nil
}
