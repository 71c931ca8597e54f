package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/kinelabel/internal/action"
	"github.com/ayusman/kinelabel/internal/app"
	"github.com/ayusman/kinelabel/internal/config"
	"github.com/ayusman/kinelabel/internal/keyframe"
	"github.com/ayusman/kinelabel/internal/server"
	"github.com/ayusman/kinelabel/internal/store"
)

const usage = `usage:
  kinelabel label [flags] file.json...
  kinelabel serve [flags]

Run "kinelabel <command> -h" for the flags of a command.`

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return flag.ErrHelp
	}

	switch args[0] {
	case "label":
		return runLabel(ctx, args[1:], stdout)
	case "serve":
		return runServe(args[1:], stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(stdout, usage)
		return nil
	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// options are the flags shared by every command.
type options struct {
	configPath string
	dbPath     string
	pluginDir  string
	vision     string
	visionConf string
	timeout    time.Duration
	video      string
	minChange  float64
}

func (o *options) register(fs *flag.FlagSet, defaultDB string) {
	fs.StringVar(&o.configPath, "config", os.Getenv("KINELABEL_CONFIG"), "tuning file (.json or .toml)")
	fs.StringVar(&o.dbPath, "db", envOr("KINELABEL_DB", defaultDB), "label store path; empty disables persistence")
	fs.StringVar(&o.pluginDir, "plugins", envOr("KINELABEL_PLUGINS", defaultPluginDir()), "vision plugin directory")
	fs.StringVar(&o.vision, "vision", os.Getenv("KINELABEL_VISION"), "vision plugin to consult")
	fs.StringVar(&o.visionConf, "vision-config", os.Getenv("KINELABEL_VISION_CONFIG"), "JSON configuration passed to the vision plugin")
	fs.DurationVar(&o.timeout, "vision-timeout", 30*time.Second, "vision plugin timeout")
	fs.StringVar(&o.video, "video", "", "recording to extract keyframes from for the vision plugin")
	fs.Float64Var(&o.minChange, "keyframe-change", 1.0, "percent of pixels a keyframe must change to be sent")
}

// open loads the tuning, opens the store and builds the app. The returned
// cleanup closes the store.
func (o *options) open() (*app.App, func(), error) {
	tuning := config.DefaultTuning()
	if o.configPath != "" {
		var err error
		if tuning, err = config.Load(o.configPath); err != nil {
			return nil, nil, err
		}
	}

	var visionConf json.RawMessage
	if o.visionConf != "" {
		if !json.Valid([]byte(o.visionConf)) {
			return nil, nil, errors.New("vision-config must be valid JSON")
		}
		visionConf = json.RawMessage(o.visionConf)
	}

	var st *store.Store
	cleanup := func() {}
	if o.dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.dbPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		var err error
		if st, err = store.New(o.dbPath); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		cleanup = func() { st.Close() }
	}

	cfg := app.Config{
		Store:         st,
		PluginDir:     o.pluginDir,
		Vision:        o.vision,
		VisionTimeout: o.timeout,
		VisionConfig:  visionConf,
		Tuning:        tuning,
	}
	if o.video != "" {
		dir := filepath.Join(filepath.Dir(o.video), "keyframes")
		cfg.Keyframes = keyframe.NewSampler(o.video, dir, keyframe.DefaultCount).WithMinChange(o.minChange)
	}

	a := app.New(cfg)
	if err := a.DiscoverPlugins(); err != nil {
		cleanup()
		return nil, nil, err
	}

	return a, cleanup, nil
}

// labeled is what the label command prints for each file.
type labeled struct {
	Source    string          `json:"source"`
	RunID     string          `json:"run_id,omitempty"`
	Status    string          `json:"status"`
	Method    string          `json:"method,omitempty"`
	Events    []action.Record `json:"events"`
	Result    *action.Record  `json:"result"`
	Narrative string          `json:"narrative"`
	Error     string          `json:"error,omitempty"`
}

func runLabel(ctx context.Context, args []string, stdout io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("label", flag.ContinueOnError)
	opts.register(fs, "")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("label: no trajectory files given")
	}

	a, cleanup, err := opts.open()
	if err != nil {
		return err
	}
	defer cleanup()

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range fs.Args() {
		record, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
			failed++
			continue
		}

		r, out, err := a.Label(ctx, path, record)
		if r == nil {
			log.Printf("Failed to label %s: %v", path, err)
			failed++
			continue
		}

		res := labeled{
			Source:    path,
			RunID:     r.ID,
			Status:    string(r.Status),
			Method:    string(r.Method),
			Events:    action.Records(out.Events),
			Narrative: action.Narrative(out.Events),
		}
		if out.Result != nil {
			rec := out.Result.Action.ToRecord()
			res.Result = &rec
		}
		if err != nil {
			res.Error = err.Error()
			failed++
		}

		if err := enc.Encode(res); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d trajectories could not be labeled", failed, fs.NArg())
	}
	return nil
}

func runServe(args []string, stdout io.Writer) error {
	var opts options
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	opts.register(fs, defaultDBPath())
	addr := fs.String("addr", ":8080", "listen address")
	webDir := fs.String("web", findWebDir(), "static files to serve at /")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.dbPath == "" {
		return errors.New("serve: a label store is required")
	}

	a, cleanup, err := opts.open()
	if err != nil {
		return err
	}
	defer cleanup()

	if *webDir != "" {
		fmt.Fprintf(stdout, "Serving static files from: %s\n", *webDir)
	}

	srv := server.New(server.Config{
		StaticDir: *webDir,
		Store:     a.Store(),
		Labeler:   a,
		Plugins:   a.PluginManager(),
	})

	fmt.Fprintf(stdout, "Starting server on %s\n", *addr)
	return srv.ListenAndServe(*addr)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".kinelabel")
}

func defaultDBPath() string {
	if d := dataDir(); d != "" {
		return filepath.Join(d, "kinelabel.db")
	}
	return ""
}

func defaultPluginDir() string {
	if d := dataDir(); d != "" {
		return filepath.Join(d, "plugins")
	}
	return "plugins"
}

// findWebDir searches for the web directory in common locations.
// It checks "web", "../web" and ~/.kinelabel/web, returning the first
// existing directory or an empty string if none is found.
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}

	if d := dataDir(); d != "" {
		homeWebDir := filepath.Join(d, "web")
		if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
			return homeWebDir
		}
	}

	return ""
}
