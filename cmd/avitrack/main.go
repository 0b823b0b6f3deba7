/*
avitrack tracks where the operator's own classified ads rank in the
search results of a marketplace, city by city.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/alecthomas/kong"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/extract"
	"github.com/avitrack/avitrack/internal/fetch"
	"github.com/avitrack/avitrack/internal/keyword"
	"github.com/avitrack/avitrack/internal/log"
	"github.com/avitrack/avitrack/internal/output"
	"github.com/avitrack/avitrack/internal/target"
	"github.com/avitrack/avitrack/internal/track"
	"github.com/avitrack/avitrack/internal/types"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" help:"Print the version and exit."`
	Debug   bool        `short:"d" help:"Set log level to 'debug' and store additional helpful debugging data."`

	Scan ScanCmd `cmd:"" help:"Scan all cities and resolve the positions of matching ads."`
}

type ScanCmd struct {
	URL      string `arg:"" help:"Marketplace category or search URL, e.g. https://www.avito.ru/all/predlozheniya_uslug/..."`
	Skip     int    `help:"Skip the first N cities of the city list."`
	Cities   string `default:"./cities.txt" help:"The file containing the city slugs, one per line." completion:"<file>"`
	Keywords string `default:"./keywords.txt" help:"The file containing the keyword rules, one AND-group per line." completion:"<file>"`
	Config   string `short:"c" default:"./config.yaml" help:"The location of the configuration file." completion:"<file>"`
	Stdout   bool   `short:"o" help:"If set to true the report will be written to stdout despite any other existing writer configuration."`
	Headed   bool   `help:"Run the browser in headed (visible) mode."`
	DryRun   bool   `short:"D" help:"If set to true the report will not be persisted (currently only has an effect on the database writer)."`
}

func (sc *ScanCmd) Run() error {
	cfg, err := config.NewConfig(sc.Config)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	if sc.Stdout {
		cfg.Writer.Type = output.STDOUT_WRITER_TYPE
	}
	if sc.DryRun {
		cfg.Writer.DryRun = true
	}
	if sc.Headed {
		cfg.Run.Headless = false
	}

	// everything that can fail fatally has to fail here, before any
	// city is processed and before any output file is written
	tgt, err := target.ParseTarget(sc.URL)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	cities, err := target.LoadCities(sc.Cities)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	rules, err := keyword.CompileFile(sc.Keywords)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	writer, err := output.NewWriter(&cfg.Writer)
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	slog.Info(fmt.Sprintf("target: %s", tgt))
	slog.Info(fmt.Sprintf("cities: %d from %s", len(cities), sc.Cities))
	slog.Info(fmt.Sprintf("keywords: %d rules from %s", len(rules.Rules), sc.Keywords))

	fetcher, err := fetch.NewDynamicFetcher(&fetch.FetcherConfig{
		UserAgent:         cfg.Run.UserAgent,
		Headless:          cfg.Run.Headless,
		PageTimeoutMS:     cfg.Run.PageTimeoutMS,
		SelectorTimeoutMS: cfg.Run.SelectorTimeoutMS,
		DebugDir:          cfg.Run.DebugDir,
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer fetcher.Cancel()

	// first interrupt finishes the current city and saves the partial
	// report, a second one kills the process
	ctx := interruptContext(context.Background())
	ctx = log.ContextWithLogger(ctx, slog.Default())

	warmCookies(ctx, fetcher, tgt)

	tracker := track.New(tgt, cities, rules, &extract.Extractor{
		Fetcher:     fetcher,
		MaxPages:    cfg.Run.MaxPages,
		ScrollCount: 3,
	}, &cfg.Run)
	tracker.Skip = sc.Skip
	tracker.Dump = func(city types.City, html string) {
		path, err := fetch.SaveSnapshot(cfg.Run.DebugDir, city.Slug, html)
		if err != nil {
			slog.Warn(fmt.Sprintf("failed to save debug snapshot: %v", err))
			return
		}
		slog.Warn(fmt.Sprintf("debug snapshot saved: %s", path))
	}

	report := tracker.Run(ctx)

	if err := writer.Write(report); err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	output.PrintSummary(report)
	return nil
}

// interruptContext cancels the returned context on the first interrupt
// and then unregisters the signal handler again. Without the
// unregistering a second interrupt would sit unread in the notify
// channel and never reach the default handler, so the process could
// not be stopped while the current city finishes.
func interruptContext(parent context.Context) context.Context {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}

// warmCookies visits the marketplace root once so the session carries
// ordinary cookies before the first search request. Failures are not
// fatal.
func warmCookies(ctx context.Context, fetcher fetch.Fetcher, tgt target.Target) {
	slog.Info(fmt.Sprintf("warming cookies on %s", tgt.Root()))
	if _, _, err := fetcher.Fetch(ctx, tgt.Root(), fetch.FetchOpts{}); err != nil {
		slog.Warn(fmt.Sprintf("cookie warm-up failed: %v", err))
	}
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	config.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
