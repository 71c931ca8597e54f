// Package app wires the labeling pipeline, the vision plugins and the store
// together for the CLI and the HTTP server.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/kinelabel/internal/config"
	"github.com/ayusman/kinelabel/internal/pipeline"
	"github.com/ayusman/kinelabel/internal/reconcile"
	"github.com/ayusman/kinelabel/internal/store"
	"github.com/ayusman/kinelabel/internal/trajectory"
	"github.com/ayusman/kinelabel/internal/vision"
)

// Config holds configuration options for the application.
type Config struct {
	// Store persists labeled runs. Nil disables persistence.
	Store *store.Store

	// PluginDir is scanned for vision classifier plugins.
	PluginDir string

	// Vision names the classifier plugin to consult. Empty disables the
	// vision stream.
	Vision        string
	VisionTimeout time.Duration

	// VisionConfig is passed to the plugin in every request.
	VisionConfig json.RawMessage

	// Keyframes supplies frames of the recording matching the trajectories
	// being labeled. Nil sends the classifier no frames.
	Keyframes vision.Keyframer

	Tuning config.Tuning
}

// App labels trajectories and keeps the results.
type App struct {
	config     Config
	pluginMgr  *vision.Manager
	classifier reconcile.Classifier
	engine     *pipeline.Engine
	mu         sync.RWMutex
}

// New creates an App. The vision stream stays disabled until
// DiscoverPlugins or SetClassifier is called.
func New(config Config) *App {
	return &App{
		config:    config,
		pluginMgr: vision.NewManager(config.PluginDir),
		engine:    pipeline.New(config.Tuning, nil),
	}
}

// DiscoverPlugins scans the plugin directory and, when a vision plugin is
// configured, installs it as the classifier.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return fmt.Errorf("failed to discover plugins: %w", err)
	}
	log.Printf("Discovered %d vision plugins in %s", len(a.pluginMgr.List()), a.pluginMgr.PluginDir())

	if a.config.Vision == "" {
		return nil
	}

	p, err := a.pluginMgr.Get(a.config.Vision)
	if err != nil {
		return fmt.Errorf("vision plugin %q: %w", a.config.Vision, err)
	}

	c := vision.NewProcessClassifier(p, a.config.VisionTimeout)
	if len(a.config.VisionConfig) > 0 {
		c.WithConfig(a.config.VisionConfig)
	}
	if a.config.Keyframes != nil {
		c.WithKeyframes(a.config.Keyframes)
	}

	a.SetClassifier(c)
	log.Printf("Using vision plugin %s %s", p.Manifest.Name, p.Manifest.Version)
	return nil
}

// SetClassifier replaces the vision classifier. Nil disables vision.
func (a *App) SetClassifier(c reconcile.Classifier) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.classifier = c
	a.engine = pipeline.New(a.config.Tuning, c)
}

// Engine returns the labeling engine.
func (a *App) Engine() *pipeline.Engine {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *vision.Manager {
	return a.pluginMgr
}

// Store returns the store, which may be nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// Label decodes record, labels it and persists the run when a store is
// configured. Errors wrapping trajectory.ErrInvalidRecord mean the record
// itself is unusable.
//
// When the physics stream found nothing and no vision verdict was available,
// the run is still recorded with status Unclear and returned together with an
// error wrapping reconcile.ErrVisionRequired.
func (a *App) Label(ctx context.Context, source string, record []byte) (*store.Run, *pipeline.Output, error) {
	t, err := trajectory.Decode(bytes.NewReader(record))
	if err != nil {
		return nil, nil, err
	}

	out, runErr := a.Engine().Run(ctx, t)
	if runErr != nil && !errors.Is(runErr, reconcile.ErrVisionRequired) {
		return nil, nil, runErr
	}

	run := &store.Run{
		Source:     source,
		Status:     out.Status,
		FrameCount: t.Len(),
		Duration:   t.Duration(),
	}
	if out.Result != nil {
		run.Method = out.Result.Method
	}

	if st := a.config.Store; st != nil {
		if err := st.Runs().Create(run, out.Events, out.Result, record); err != nil {
			return nil, nil, fmt.Errorf("failed to save run: %w", err)
		}
	}

	log.Printf("Labeled %s: %d events, %s", describeSource(source), len(out.Events), out.Status)
	return run, out, runErr
}

// Relabel labels the stored trajectory of runID again as a new run, for
// instance after the tuning or the vision plugin changed.
func (a *App) Relabel(ctx context.Context, runID string) (*store.Run, *pipeline.Output, error) {
	st := a.config.Store
	if st == nil {
		return nil, nil, errors.New("relabel needs a store")
	}

	prev, err := st.Runs().GetByID(runID)
	if err != nil {
		return nil, nil, err
	}
	record, err := st.Trajectories().Get(runID)
	if err != nil {
		return nil, nil, err
	}

	return a.Label(ctx, prev.Source, record)
}

func describeSource(s string) string {
	if s == "" {
		return "trajectory"
	}
	return s
}
