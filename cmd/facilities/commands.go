package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/JonMunkholm/facility-etl/internal/country"
	"github.com/JonMunkholm/facility-etl/internal/geocode"
	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	"github.com/JonMunkholm/facility-etl/internal/table"
	"github.com/JonMunkholm/facility-etl/internal/validate"
	"github.com/JonMunkholm/facility-etl/internal/web"
)

func runTransform(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	service := fs.String("service", "", "healthcare or education")
	cc := fs.String("cc", "", "country code")
	in := fs.String("in", "", "raw extract (default: the adapter's file in the country folder)")
	doGeocode := fs.Bool("geocode", true, "geocode rows when a provider is configured")
	verbose := fs.Bool("verbose", false, "log every geocoding result")
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, err := schema.ParseService(*service)
	if err != nil {
		return err
	}
	adapter, ok := country.Get(svc, upper(*cc))
	if !ok {
		return fmt.Errorf("no %s adapter for %q", svc, *cc)
	}

	tr := &publish.Transformer{
		Layout: a.layout(schema.MustGet(svc)),
		Policy: geocode.Policy{RetryUnknown: a.cfg.Geocoder.RetryUnknown},
		Geocode: geocode.Options{
			UsePostcode: a.cfg.Geocoder.UsePostcode,
			Verbose:     *verbose,
		},
	}
	if *doGeocode {
		if tr.Geocoder, err = a.geocoder(); err != nil {
			return err
		}
	}

	res, err := tr.Run(ctx, adapter, *in)
	if err != nil {
		fmt.Fprintln(os.Stderr, table.MapError(err))
		return err
	}
	fmt.Printf("%s %s: %d rows written to %s\n", svc, res.Country, res.Rows, res.Output)
	if res.Geocoded.Total > 0 || res.Improved.Total > 0 {
		fmt.Printf("geocoded %d (%d failures), improved %d of %d\n",
			res.Geocoded.Total, res.Geocoded.Failures, res.Improved.Improved, res.Improved.Total)
	}
	printReport(res.Validation)
	return nil
}

func runValidate(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	service := fs.String("service", "", "healthcare or education (default: both)")
	cc := fs.String("cc", "", "country code (default: every published country)")
	strict := fs.Bool("strict", false, "exit with status 3 when a check fails")
	asJSON := fs.Bool("json", false, "print reports as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	specs, err := a.parseServices(*service)
	if err != nil {
		return err
	}
	engine := validate.Engine{ShowValues: true}
	var reports []validate.Report
	for _, spec := range specs {
		layout := a.layout(spec)
		codes := a.countries(spec)
		if *cc != "" {
			codes = []string{upper(*cc)}
		}
		for _, code := range codes {
			t, err := table.LoadFile(layout.SourceCSV(code), table.DefaultLoadOptions())
			if err != nil {
				slog.Warn("country not validated", "service", spec.Service, "country", code, "error", err, "code", table.MapError(err).Code)
				continue
			}
			reports = append(reports, engine.Validate(t, code, spec))
		}
	}

	failed := false
	for _, rep := range reports {
		if !rep.OK() {
			failed = true
		}
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			printReport(rep)
		}
	}
	if failed && *strict {
		return errViolations
	}
	return nil
}

func printReport(rep validate.Report) {
	if rep.OK() {
		fmt.Printf("%s %s: %d rows, ok\n", rep.Service, rep.Country, rep.Rows)
		return
	}
	fmt.Printf("%s %s: %d rows, %d violations\n", rep.Service, rep.Country, rep.Rows, len(rep.Violations))
	for _, v := range rep.Violations {
		fmt.Printf("  [%s] %s\n", v.Check, v)
	}
}

func runPublish(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	service := fs.String("service", "all", "healthcare, education or all")
	force := fs.Bool("force", false, "republish every country regardless of file times")
	if err := fs.Parse(args); err != nil {
		return err
	}

	specs, err := a.parseServices(*service)
	if err != nil {
		return err
	}
	rec, err := a.history(ctx)
	if err != nil {
		return err
	}
	runner := a.runner(specs, rec, *force)

	var errs []error
	for _, svc := range runner.Services() {
		res, err := runner.Run(ctx, svc, "cli")
		if res != nil {
			printResult(res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", svc, err))
		}
	}
	return errors.Join(errs...)
}

func printResult(res *publish.Result) {
	fmt.Printf("%s run %s: %d updated, %d skipped, %d failed",
		res.Service, res.RunID, res.Count(publish.StatusUpdated), res.Count(publish.StatusSkipped), res.Count(publish.StatusFailed))
	if res.Changed {
		fmt.Printf(", combined %d rows, web extract %d rows", res.CombinedRows, res.WebRows)
	}
	fmt.Println()
	for _, c := range res.Countries {
		if c.Status == publish.StatusFailed {
			fmt.Printf("  %s failed: %s\n", c.Country, c.Error)
		}
	}
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	service := fs.String("service", "", "healthcare or education (default: both)")
	limit := fs.Int("limit", 20, "number of runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var svc schema.Service
	if *service != "" {
		parsed, err := schema.ParseService(*service)
		if err != nil {
			return err
		}
		svc = parsed
	}
	if a.cfg.Database.URL == "" {
		return errors.New("history needs DATABASE_URL; without it runs are only kept by a running server")
	}
	rec, err := a.history(ctx)
	if err != nil {
		return err
	}
	runs, err := rec.ListRuns(ctx, svc, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSERVICE\tTRIGGER\tUPDATED\tSKIPPED\tFAILED\tROWS\tDURATION\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%dms\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Service, r.Trigger,
			r.Updated, r.Skipped, r.Failed, r.CombinedRows, r.DurationMS, r.Error)
	}
	return tw.Flush()
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	rec, err := a.history(ctx)
	if err != nil {
		return err
	}
	runner := a.runner(schema.All(), rec, false)
	server := web.NewServer(runner, rec, a.cfg.Server)

	// Background triggers stop with jobCtx; in-flight runs are drained below.
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	var jobs sync.WaitGroup

	if a.cfg.Schedule.Cron != "" {
		sched, err := publish.NewScheduler(runner, a.cfg.Schedule.Cron)
		if err != nil {
			cancelJobs()
			return err
		}
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			sched.Start(jobCtx)
		}()
	}
	if a.cfg.Schedule.Watch {
		w, err := publish.NewWatcher(runner, a.cfg.Schedule.Debounce)
		if err != nil {
			cancelJobs()
			return err
		}
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			w.Run(jobCtx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case err := <-serverErr:
		cancelJobs()
		jobs.Wait()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if n := runner.ActiveCount(); n > 0 {
		slog.Info("waiting for publications to complete", "active", n)
		if err := runner.WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("publications did not complete in time", "error", err)
		}
	}
	jobs.Wait()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
	return nil
}
