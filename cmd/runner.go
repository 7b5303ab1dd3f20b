package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/basket/internal/realtime"
	"github.com/desertthunder/basket/internal/repositories"
	"github.com/desertthunder/basket/internal/services"
	"github.com/desertthunder/basket/internal/shared"
	"github.com/desertthunder/basket/internal/view"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	transport  http.RoundTripper

	db    *sql.DB
	prefs *repositories.PreferenceRepository
	cache *repositories.ListCacheRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer

	// DB replaces the database opened from Config.Database. It must already be migrated.
	DB *sql.DB
	// Transport is handed to every REST client.
	Transport http.RoundTripper
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		transport:  opts.Transport,
	}
	if opts.DB != nil {
		r.useDB(opts.DB)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, listsCommand, itemsCommand, watchCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Close releases the database if the runner opened one.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Runner) useDB(db *sql.DB) {
	r.db = db
	r.prefs = repositories.NewPreferenceRepository(db)
	r.cache = repositories.NewListCacheRepository(db)
}

// store opens and migrates the local database on first use.
func (r *Runner) store() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	r.useDB(db)
	return nil
}

// token returns the stored access token, failing when signed out or expired.
func (r *Runner) token() (string, services.Claims, error) {
	if err := r.store(); err != nil {
		return "", services.Claims{}, err
	}

	token, err := r.prefs.AccessToken()
	if err != nil {
		return "", services.Claims{}, err
	}

	claims, err := services.CheckToken(token, time.Now())
	if err != nil {
		return "", claims, err
	}
	return token, claims, nil
}

func (r *Runner) newClient(token string, monitor *realtime.Monitor, tracker *realtime.Tracker) *services.Client {
	return services.NewClient(services.Options{
		BaseURL:   r.config.API.BaseURL,
		Token:     token,
		Timeout:   r.config.API.Timeout(),
		Tracker:   tracker,
		Monitor:   monitor,
		Logger:    r.logger,
		Transport: r.transport,
	})
}

// client returns a REST client authorized with the stored token.
func (r *Runner) client() (*services.Client, error) {
	token, _, err := r.token()
	if err != nil {
		return nil, err
	}
	return r.newClient(token, nil, nil), nil
}

// session builds a live session for the signed-in user from the configuration.
func (r *Runner) session() (*view.Session, error) {
	token, _, err := r.token()
	if err != nil {
		return nil, err
	}

	wsURL, err := r.config.API.WebSocketURL()
	if err != nil {
		return nil, err
	}

	monitor := realtime.NewMonitor(0)
	tracker := realtime.NewTracker(realtime.TrackerOptions{
		ActionTTL: r.config.Tracking.ActionTTL(),
		CreateTTL: r.config.Tracking.CreateTTL(),
	})
	rt := r.config.Realtime

	return view.NewSession(view.SessionOptions{
		Client:  r.newClient(token, monitor, tracker),
		Store:   r.prefs,
		Cache:   r.cache,
		Monitor: monitor,
		Logger:  r.logger,
		Connection: realtime.Options{
			URL:                  wsURL,
			AutoReconnect:        rt.AutoReconnect,
			ReconnectInterval:    rt.ReconnectInterval(),
			MaxReconnectDelay:    rt.MaxReconnectDelay(),
			MaxReconnectAttempts: rt.MaxReconnectAttempts,
			HeartbeatInterval:    rt.HeartbeatInterval(),
			MinConnectInterval:   rt.MinConnectInterval(),
		},
		ErrorNoticeDelay: rt.ErrorNoticeDelay(),
		SweepInterval:    r.config.Tracking.SweepInterval(),
	}), nil
}

// activeList resolves the list a command acts on: the explicit --list flag, or the last active list.
func (r *Runner) activeList(cmd *cli.Command) (int64, error) {
	if id := cmd.Int64("list"); id > 0 {
		return id, nil
	}
	if err := r.store(); err != nil {
		return 0, err
	}

	id, ok, err := r.prefs.LastActiveList()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no active list, pass --list or run 'basket lists use <id>'", shared.ErrMissingArgument)
	}
	return id, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
