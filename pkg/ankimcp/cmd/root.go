package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/auth"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/config"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/credentials"
	"github.com/ankimcp/anki-mcp-server/pkg/ankimcp/spinner"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	// Logger replaces the logger built from --verbose when set.
	Logger *zap.SugaredLogger
}

type runtimeState struct {
	configPath           string
	cfg                  *config.Config
	tokenStorageOverride string
	verbose              bool
	noBrowser            bool
	writer               io.Writer
	errWriter            io.Writer
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

// openBrowser and spinnerOptions are swapped out in tests.
var (
	openBrowser    = auth.OpenBrowser
	spinnerOptions []spinner.Option
)

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrWriter,
		log:        cfg.Logger,
	}

	root := &cobra.Command{
		Use:          "ankimcp",
		Short:        "AnkiMCP tunnel CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.tokenStorageOverride == "" {
				rt.tokenStorageOverride = os.Getenv("ANKIMCP_TOKEN_STORAGE")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("ANKIMCP_VERBOSE"), "true")
			}
			if !rt.noBrowser {
				rt.noBrowser = strings.EqualFold(os.Getenv("ANKIMCP_NO_BROWSER"), "true")
			}
			if rt.log == nil {
				rt.log = newLogger(rt.errWriter, rt.verbose)
			}

			// Skip config loading for commands that don't need it
			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}

			loaded, err := config.Load(rt.configPath)
			if err != nil {
				return err
			}
			if rt.tokenStorageOverride != "" {
				loaded.TokenStorage = rt.tokenStorageOverride
			}
			rt.cfg = loaded
			if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			return rt.cfg.Validate()
		},
	}

	root.SetOut(rt.Writer())
	root.SetErr(rt.ErrWriter())

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging with correlation IDs")
	root.PersistentFlags().BoolVar(&rt.noBrowser, "no-browser", false, "Do not try to open the verification URL in a browser")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewLoginCommand(),
		NewLogoutCommand(),
		NewStatusCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// newLogger writes console-encoded logs to w: warnings and above by
// default, everything when verbose.
func newLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	level := zapcore.WarnLevel
	if verbose {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		level = zapcore.DebugLevel
	}
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

// Store opens the configured credential backend.
func (rt *runtimeState) Store() (credentials.Store, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	backend, err := credentials.ParseBackend(rt.cfg.TokenStorage)
	if err != nil {
		return nil, err
	}
	return credentials.Open(backend, rt.cfg.CredentialsPathOrDefault())
}

// DeviceFlowClient builds a device flow client for the configured identity
// provider, discovering its endpoints when enabled.
func (rt *runtimeState) DeviceFlowClient(ctx context.Context, log *zap.SugaredLogger, requestID string) (*auth.DeviceFlowClient, error) {
	if err := rt.EnsureConfigLoaded(); err != nil {
		return nil, err
	}
	authCfg := rt.cfg.Auth
	httpClient, err := auth.NewHTTPClient(authCfg.CAFile, authCfg.InsecureSkipTLS)
	if err != nil {
		return nil, err
	}
	endpoint := auth.KeycloakEndpoint(authCfg.BaseURL, authCfg.Realm)
	if authCfg.Discovery {
		endpoint, err = auth.DiscoverEndpoint(ctx, httpClient, auth.RealmIssuer(authCfg.BaseURL, authCfg.Realm))
		if err != nil {
			return nil, err
		}
	}
	return auth.NewDeviceFlowClient(endpoint, authCfg.ClientID,
		auth.WithHTTPClient(httpClient),
		auth.WithScopes(authCfg.Scopes...),
		auth.WithLogger(log),
		auth.WithRequestID(requestID),
	)
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath != "" {
		return rt.configPath
	}
	return config.DefaultConfigPath()
}
