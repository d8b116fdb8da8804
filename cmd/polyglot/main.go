package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot"
	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/contract"
	"github.com/pitabwire/polyglot/internal/gen"
	"github.com/pitabwire/polyglot/internal/scan"
	"github.com/pitabwire/polyglot/provider"
	"github.com/pitabwire/polyglot/provider/cached"
	"github.com/pitabwire/polyglot/provider/dbprovider"
	"github.com/pitabwire/polyglot/provider/fsprovider"
	"github.com/pitabwire/polyglot/provider/i18nprovider"
	"github.com/pitabwire/polyglot/version"
)

const minArgsCommand = 2

var (
	// ErrMissingKey is returned by sync --break-build for the first missing key.
	ErrMissingKey = errors.New("missing resource key")

	errAuditNotRun = errors.New("audit did not run")
)

func main() {
	if len(os.Args) < minArgsCommand {
		usage(os.Stdout)
		os.Exit(1)
	}

	exitOnErr(run(context.Background(), os.Args[1:], os.Stdout))
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run(ctx context.Context, args []string, out io.Writer, opts ...polyglot.Option) error {
	if len(args) == 0 {
		usage(out)
		return errors.New("command is required")
	}

	switch args[0] {
	case "sync":
		return cmdSync(ctx, args[1:], out, opts)
	case "generate":
		return cmdGenerate(args[1:], out)
	case "invalidate":
		return cmdInvalidate(ctx, args[1:], out)
	case "version":
		_, err := fmt.Fprintln(out, version.String())
		return err
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command: %q", args[0])
	}
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "polyglot <command> [args]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  sync [--config FILE] [--dir DIR] [--resources DIR | --i18n DIR | --dsn DSN]")
	fmt.Fprintln(out, "       [--locales de,fr] [--break-build] [--workers N] [PACKAGES...]")
	fmt.Fprintln(out, "  generate [--dir DIR] [--out FILE] [PACKAGE]")
	fmt.Fprintln(out, "  invalidate [--url URL] [BUNDLE]")
	fmt.Fprintln(out, "  version")
}

func cmdSync(ctx context.Context, args []string, out io.Writer, opts []polyglot.Option) error {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	manifest := fs.String("config", "", "yaml manifest overriding the environment")
	dir := fs.String("dir", ".", "directory package patterns are relative to")
	resources := fs.String("resources", cfg.ResourcesDir(), "directory holding resource bundle files")
	i18nDir := fs.String("i18n", "", "directory holding go-i18n message files")
	dsn := fs.String("dsn", cfg.GetDatabaseURL(), "database holding the messages")
	locales := fs.String("locales", strings.Join(cfg.Locales(), ","), "comma separated locales to audit")
	breakBuild := fs.Bool("break-build", cfg.BreakBuild(), "fail on the first missing key")
	workers := fs.Int("workers", cfg.Workers(), "number of concurrent audits")
	if err = fs.Parse(args); err != nil {
		return err
	}

	if *manifest != "" {
		if err = config.LoadFile(*manifest, &cfg); err != nil {
			return err
		}
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if !explicit["resources"] {
			*resources = cfg.ResourcesDir()
		}
		if !explicit["dsn"] {
			*dsn = cfg.GetDatabaseURL()
		}
		if !explicit["locales"] {
			*locales = strings.Join(cfg.Locales(), ",")
		}
		if !explicit["break-build"] {
			*breakBuild = cfg.BreakBuild()
		}
		if !explicit["workers"] {
			*workers = cfg.Workers()
		}
	}

	engine := polyglot.New(ctx, append([]polyglot.Option{polyglot.WithConfig(&cfg)}, opts...)...)
	log := engine.Log(ctx)

	tags, err := parseLocales(*locales)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		log.Info("no locales configured, nothing to do")
		return nil
	}

	var def language.Tag
	if s := cfg.DefaultLocale(); s != "" {
		if def, err = language.Parse(s); err != nil {
			return fmt.Errorf("invalid default locale %q: %w", s, err)
		}
	}

	p, closeProvider, err := openProvider(ctx, &cfg, def, *resources, *i18nDir, *dsn)
	if err != nil {
		return err
	}
	defer closeProvider()

	patterns := fs.Args()
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	scanned, err := scan.Packages(*dir, patterns...)
	if err != nil {
		return err
	}

	var contracts []*contract.Contract
	for _, sc := range scanned {
		c, buildErr := sc.Build()
		if buildErr != nil {
			return buildErr
		}
		log.WithField("contract", c.Name()).Info("processing message contract")
		contracts = append(contracts, c)
	}

	audits, err := runAudits(ctx, engine, p, contracts, tags, *workers)
	if err != nil {
		return err
	}

	for _, a := range audits {
		if a.err != nil {
			if *breakBuild || !errors.Is(a.err, polyglot.ErrMissingResource) {
				return a.err
			}
			log.WithError(a.err).WithField("contract", a.contract.Name()).Warn("resource bundle is missing")
			continue
		}

		for _, key := range a.report.Missing() {
			if *breakBuild {
				return fmt.Errorf("%w: '%s' for contract '%s' and locale '%s'",
					ErrMissingKey, key, a.contract.Name(), a.locale)
			}
			log.WithFields(map[string]any{
				"contract": a.contract.Name(),
				"bundle":   a.report.Bundle(),
				"locale":   a.locale.String(),
				"key":      key,
			}).Warn("missing resource key")
			fmt.Fprintf(out, "%s\t%s\t%s\n", a.contract.Name(), a.locale, key)
		}
	}
	return nil
}

type audit struct {
	contract *contract.Contract
	locale   language.Tag
	report   *polyglot.SyncReport
	err      error
}

// runAudits syncs every contract for every locale on a pool of workers.
// Results keep contract then locale order.
func runAudits(
	ctx context.Context,
	engine *polyglot.Engine,
	p provider.Provider,
	contracts []*contract.Contract,
	tags []language.Tag,
	workers int,
) ([]audit, error) {
	audits := make([]audit, 0, len(contracts)*len(tags))
	for _, c := range contracts {
		for _, tag := range tags {
			audits = append(audits, audit{contract: c, locale: tag})
		}
	}
	if len(audits) == 0 {
		return audits, nil
	}

	pool, err := ants.NewPool(max(workers, 1), ants.WithPanicHandler(func(v any) {
		engine.Log(ctx).WithField("panic", v).Error("audit panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range audits {
		a := &audits[i]
		a.err = errAuditNotRun

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			a.report, a.err = engine.SyncContract(ctx, a.contract, a.locale, p)
		})
		if submitErr != nil {
			wg.Done()
			a.err = submitErr
		}
	}
	wg.Wait()

	return audits, nil
}

func cmdInvalidate(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("invalidate", flag.ContinueOnError)
	url := fs.String("url", cfg.InvalidationURL(), "gocloud pubsub url of the invalidation topic")
	if err = fs.Parse(args); err != nil {
		return err
	}
	if *url == "" {
		return errors.New("invalidation url is required")
	}
	if fs.NArg() > 1 {
		return errors.New("invalidate takes at most one bundle")
	}
	bundle := fs.Arg(0)

	topic, err := cached.OpenTopic(ctx, *url)
	if err != nil {
		return err
	}
	// mem:// topics are shared by name within the process
	if !strings.HasPrefix(strings.ToLower(*url), "mem://") {
		defer func() { _ = topic.Shutdown(ctx) }()
	}

	if err = cached.Announce(ctx, topic, bundle); err != nil {
		return err
	}

	if bundle == "" {
		bundle = "all bundles"
	}
	_, err = fmt.Fprintf(out, "invalidated %s\n", bundle)
	return err
}

func parseLocales(s string) ([]language.Tag, error) {
	var tags []language.Tag
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tag, err := language.Parse(part)
		if err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", part, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func openProvider(
	ctx context.Context,
	cfg config.ConfigurationDatabase,
	def language.Tag,
	resources, i18nDir, dsn string,
) (provider.Provider, func(), error) {
	noop := func() {}

	switch {
	case dsn != "":
		db, err := dbprovider.Open(ctx, dsn, cfg)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
		}
		return dbprovider.New(db, dbprovider.WithDefaultLocale(def)), closeDB, nil

	case i18nDir != "":
		fallback := def
		if fallback.IsRoot() {
			fallback = language.English
		}
		p := i18nprovider.New(fallback)
		if err := p.LoadFS(os.DirFS(i18nDir), "."); err != nil {
			return nil, noop, err
		}
		return p, noop, nil

	default:
		return fsprovider.New(os.DirFS(resources), fsprovider.WithDefaultLocale(def)), noop, nil
	}
}

func cmdGenerate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	dir := fs.String("dir", ".", "directory the package pattern is relative to")
	output := fs.String("out", "", "output file, "+gen.DefaultFilename+" in the package directory by default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("generate takes a single package")
	}
	pattern := "."
	if fs.NArg() == 1 {
		pattern = fs.Arg(0)
	}

	contracts, err := scan.Packages(*dir, pattern)
	if err != nil {
		return err
	}
	if len(contracts) == 0 {
		return gen.ErrNoContracts
	}

	path := *output
	if path == "" {
		path = filepath.Join(filepath.Dir(contracts[0].Pos.Filename), gen.DefaultFilename)
	}
	if err = gen.WriteFile(path, contracts); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "wrote %d contracts to %s\n", len(contracts), path)
	return err
}
