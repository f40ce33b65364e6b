package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/facility-etl/internal/config"
	"github.com/JonMunkholm/facility-etl/internal/geocode"
	"github.com/JonMunkholm/facility-etl/internal/history"
	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// app wires configuration into the packages. Everything is built from the
// explicit config; nothing reads the environment after Load.
type app struct {
	cfg    *config.Config
	closer []func()
}

func newApp(cfg *config.Config) *app { return &app{cfg: cfg} }

func (a *app) close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
}

func (a *app) parseServices(name string) ([]schema.Spec, error) {
	if name == "" || name == "all" {
		return schema.All(), nil
	}
	s, err := schema.ParseService(name)
	if err != nil {
		return nil, err
	}
	return []schema.Spec{schema.MustGet(s)}, nil
}

func (a *app) layout(spec schema.Spec) publish.Layout {
	return publish.Layout{SourceDir: a.cfg.Paths.SourceDir, OutputDir: a.cfg.Paths.OutputDir, Spec: spec}
}

func (a *app) countries(spec schema.Spec) []string {
	var override []string
	switch spec.Service {
	case schema.Healthcare:
		override = a.cfg.Publish.HealthcareCountries
	case schema.Education:
		override = a.cfg.Publish.EducationCountries
	}
	if len(override) > 0 {
		return override
	}
	return spec.DefaultCountries
}

// geocoder returns nil when no provider URL is configured.
func (a *app) geocoder() (geocode.Geocoder, error) {
	gc := a.cfg.Geocoder
	if gc.URL == "" {
		return nil, nil
	}
	n, err := geocode.NewNominatim(geocode.NominatimConfig{
		BaseURL:     gc.URL,
		UserAgent:   gc.UserAgent,
		Proxy:       gc.Proxy,
		Timeout:     gc.Timeout,
		MinInterval: gc.MinInterval,
	})
	if err != nil {
		return nil, err
	}
	if gc.CacheTTL <= 0 {
		return n, nil
	}
	return geocode.NewCached(n, gc.CacheTTL), nil
}

// recorder is either Postgres or the in-memory history.
type recorder interface {
	publish.Recorder
	history.Lister
}

func (a *app) history(ctx context.Context) (recorder, error) {
	db := a.cfg.Database
	if db.URL == "" {
		return history.NewMemory(a.cfg.Publish.HistoryLimit), nil
	}
	store, err := history.Open(ctx, history.PoolConfig{
		URL:             db.URL,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: db.MaxConnLifetime,
		MaxConnIdleTime: db.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	a.closer = append(a.closer, store.Close)
	slog.Info("run history in postgres")
	return store, nil
}

func (a *app) runner(specs []schema.Spec, rec publish.Recorder, force bool) *publish.Runner {
	var pipelines []*publish.Pipeline
	for _, spec := range specs {
		pipelines = append(pipelines, publish.New(a.layout(spec), publish.Options{
			Countries: a.countries(spec),
			Force:     force || a.cfg.Publish.Force,
			Validate:  a.cfg.Publish.Validate,
			Recorder:  rec,
		}))
	}
	return publish.NewRunner(a.cfg.Publish.MaxWait, pipelines...)
}

func upper(cc string) string { return strings.ToUpper(strings.TrimSpace(cc)) }
