// Package main is the mitsukeru CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/mitsukeru/internal/cli"
	"github.com/hyperjump/mitsukeru/internal/config"
	"github.com/hyperjump/mitsukeru/internal/dates"
	"github.com/hyperjump/mitsukeru/internal/extract"
	"github.com/hyperjump/mitsukeru/internal/fileid"
	"github.com/hyperjump/mitsukeru/internal/indexer"
	"github.com/hyperjump/mitsukeru/internal/keyword"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/query"
	"github.com/hyperjump/mitsukeru/internal/search"
	"github.com/hyperjump/mitsukeru/internal/server"
	"github.com/hyperjump/mitsukeru/internal/session"
	"github.com/hyperjump/mitsukeru/internal/storage"
	"github.com/hyperjump/mitsukeru/internal/thumbnail"
	"github.com/hyperjump/mitsukeru/internal/watcher"
	"github.com/hyperjump/mitsukeru/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/mitsukeru/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if present (for development), and a missing default file
// yields the built-in defaults. Returns the config and the path that was loaded,
// empty when defaults were used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", cfg.Validate()
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "parse":
		runParse()
	case "index":
		runIndex()
	case "delete":
		runDelete()
	case "pin":
		runPin()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mitsukeru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file indexing, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		watchHandler(watchCtx, components, cfg.Watch.Extensions, logger),
		watcher.WithExtensions(cfg.Watch.Extensions),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
		watcher.WithLogger(logger),
	)
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		cfg,
		logger,
		server.WithWatch(watchSvc, resolvedConfigPath),
		server.WithExtractor(components.Extractor),
		server.WithSessionFactory(sessionFactory(components, cfg, logger)),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchSvc.Stop()
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// watchHandler keeps the index in step with watcher events. Removals cover
// every stored document under the path, since a removed directory arrives as
// a single event.
func watchHandler(ctx context.Context, c *Components, exts []string, logger *zap.Logger) watcher.Handler {
	return watcher.HandlerFuncs{
		Index: func(path string) {
			if _, err := c.Indexer.IndexFile(ctx, path, exts); err != nil && !errors.Is(err, indexer.ErrExtensionNotAllowed) {
				logger.Warn("watch index file failed", zap.String("path", path), zap.Error(err))
			}
		},
		Remove: func(path string) {
			n, err := removeIndexedPaths(ctx, c.Storage, c.Indexer, path)
			if err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
				return
			}
			if n > 0 {
				logger.Debug("watch removed documents", zap.String("path", path), zap.Int("count", n))
			}
		},
	}
}

// removeIndexedPaths deletes every stored document at or under path.
func removeIndexedPaths(ctx context.Context, store storage.Storage, idx *indexer.Indexer, path string) (int, error) {
	abs, err := fileid.Canonical(path)
	if err != nil {
		return 0, err
	}
	paths, err := store.ListPaths(ctx, abs)
	if err != nil {
		return 0, fmt.Errorf("list indexed paths: %w", err)
	}
	for _, p := range paths {
		if err := idx.DeletePath(ctx, p); err != nil {
			return 0, err
		}
	}
	return len(paths), nil
}

// sessionFactory builds sessions that share the engine and prefetch thumbnails.
func sessionFactory(c *Components, cfg *config.Config, logger *zap.Logger) server.SessionFactory {
	return func(pageSize int) *session.Session {
		return session.New(c.Engine,
			session.WithPageSize(pageSize),
			session.WithExtractor(c.Extractor),
			session.WithLogger(logger),
			session.WithThumbnails(
				thumbnail.WithConcurrency(cfg.Thumbnails.MaxConcurrent),
				thumbnail.WithTimeout(cfg.Thumbnails.FetchTimeout),
			),
		)
	}
}

// printSearchUsage prints search subcommand usage and query syntax hints.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: mitsukeru search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query lists recent documents.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Query syntax:
  "exact phrase"     quoted text must appear as written
  -word, -"phrase"   exclude documents containing the term
  word               prefix match on name and content
  dates              "last week", "march 2024", "2024-03-01 to 2024-03-05", "since monday"

Examples:
  mitsukeru search budget
  mitsukeru search --file-type xlsx budget last month
  mitsukeru search report -draft "q3 review" 2024-03-01 to 2024-03-05
  mitsukeru search --output json --pages 3 invoice
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags (and their values) ahead of the query words so
// that flag.Parse() sees them; Go's flag package stops at the first non-flag
// argument. Words that look like flags but name none of fs's flags, such as a
// negated term -draft, stay in the query. A "--" separator keeps them from
// being parsed as flags.
func searchArgsReorder(args []string, fs *flag.FlagSet) []string {
	var flags, words []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			words = append(words, args[i+1:]...)
			break
		}
		f := lookupFlag(a, fs)
		if f == nil {
			words = append(words, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && !isBoolFlag(f) && i+1 < len(args) {
			flags = append(flags, args[i+1])
			i++
		}
	}
	if len(words) == 0 {
		return flags
	}
	return append(append(flags, "--"), words...)
}

func lookupFlag(a string, fs *flag.FlagSet) *flag.Flag {
	if len(a) < 2 || a[0] != '-' {
		return nil
	}
	name := strings.TrimPrefix(strings.TrimPrefix(a, "-"), "-")
	if i := strings.IndexByte(name, '='); i >= 0 {
		name = name[:i]
	}
	return fs.Lookup(name)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly when the server is not running)")
	fileType := fs.String("file-type", "any", "comma-separated file types, e.g. pdf,docx (any = no filter)")
	limit := fs.Int("limit", 0, "results per page (0 = config page_size)")
	pages := fs.Int("pages", 1, "number of pages to fetch")
	outputFormat := fs.String("output", "text", "output format: text, compact (one result per line), or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:], fs))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	req := session.Request{Query: buildSearchQuery(fs.Args()), FileType: *fileType}
	ctx := context.Background()

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids Bleve/SQLite lock conflict).
		client := newAPIClient(*serverURL)
		id, err := client.createSession(ctx, *limit)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		defer func() { _ = client.deleteSession(context.Background(), id) }()
		err = writePages(os.Stdout, format, *pages,
			func() (*models.ResultPage, error) { return client.search(ctx, id, req) },
			func() (*models.ResultPage, error) { return client.more(ctx, id) },
		)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	sess := session.New(components.Engine,
		session.WithPageSize(cfg.Search.ClampPageSize(*limit)),
		session.WithExtractor(components.Extractor),
		session.WithLogger(logger),
	)
	defer sess.Close()
	err = writePages(os.Stdout, format, *pages,
		func() (*models.ResultPage, error) { return sess.NewSearch(ctx, req) },
		func() (*models.ResultPage, error) { return sess.LoadMore(ctx) },
	)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
}

// writePages fetches up to pages pages, writing each as it arrives, and stops
// early once the results are exhausted.
func writePages(w io.Writer, format cli.SearchOutputFormat, pages int,
	first, more func() (*models.ResultPage, error)) error {
	if pages < 1 {
		pages = 1
	}
	page, err := first()
	for i := 0; ; i++ {
		if err != nil {
			return err
		}
		if err := cli.WriteResultPage(w, page, format); err != nil {
			return fmt.Errorf("output: %w", err)
		}
		if page.Exhausted || i+1 >= pages {
			return nil
		}
		page, err = more()
	}
}

func runParse() {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (date order and timezone)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:], fs))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	extractor, err := newDateExtractor(&cfg.Dates)
	if err != nil {
		fatalf("Invalid dates config: %v", err)
	}
	if err := cli.WriteParsedQuery(os.Stdout, parseQuery(extractor, buildSearchQuery(fs.Args())), format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// parseQuery runs the same interpretation a session applies to a raw query.
func parseQuery(extractor *dates.Extractor, q string) *cli.ParsedQuery {
	dr := extractor.Extract(q)
	residual := q
	if dr != nil {
		residual = dr.Text
	}
	segments := query.Segment(residual)
	return &cli.ParsedQuery{
		Query:     q,
		DateRange: dr,
		Residual:  residual,
		Segments:  segments,
		Rendered:  segments.String(),
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	var report *cli.StatusReport
	if *serverURL != "" {
		report, err = newAPIClient(*serverURL).status(context.Background())
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, err := utils.NewCLILogger(cfg.Debug)
		if err != nil {
			fatalf("Failed to create logger: %v", err)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		report, err = localStatus(context.Background(), components, cfg)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, report, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func localStatus(ctx context.Context, c *Components, cfg *config.Config) (*cli.StatusReport, error) {
	st, err := c.Engine.Status(ctx)
	if err != nil {
		return nil, err
	}
	report := &cli.StatusReport{
		Documents:      st.Documents,
		Indexed:        st.Indexed,
		ByFileType:     st.ByFileType,
		DatabasePath:   cfg.Storage.DatabasePath,
		BleveIndexPath: cfg.Storage.BleveIndexPath,
	}
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.BleveIndexPath)
	if n, err := storage.DiskUsageBytes(paths...); err == nil {
		report.DiskUsageBytes = n
	}
	return report, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-index files even when size and modification time are unchanged")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fatalf("Usage: mitsukeru index [flags] <file-or-directory>")
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, indexer.WithForce(*force))
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		stats, err := components.Indexer.IndexDirectory(ctx, path, cfg.Watch.Extensions)
		if err != nil {
			fatalf("Indexing directory failed: %v", err)
		}
		fmt.Printf("Indexed %d file(s) from %s (%d unchanged, %d failed, %d removed)\n",
			stats.Indexed, path, stats.Skipped, stats.Failed, stats.Removed)
		return
	}
	// Single file: no extension filter
	indexed, err := components.Indexer.IndexFile(ctx, path, nil)
	if err != nil {
		fatalf("Indexing failed: %v", err)
	}
	absPath, _ := fileid.Canonical(path)
	if !indexed {
		fmt.Printf("Document unchanged: %s\n", absPath)
		return
	}
	fmt.Printf("Document indexed successfully: %s\n", fileid.ForPath(absPath))
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fatalf("Usage: mitsukeru delete [flags] <document-id-or-path>")
	}
	target := fs.Arg(0)

	components, _, closeFn := openDirect(*configPath)
	defer closeFn()

	ctx := context.Background()
	if fileid.Valid(target) {
		if err := components.Indexer.DeleteDocument(ctx, target); err != nil {
			fatalf("Deletion failed: %v", err)
		}
		fmt.Printf("Document deleted: %s\n", target)
		return
	}
	n, err := removeIndexedPaths(ctx, components.Storage, components.Indexer, target)
	if err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Deleted %d document(s) under %s\n", n, target)
}

func runPin() {
	fs := flag.NewFlagSet("pin", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	unpin := fs.Bool("unpin", false, "remove the pin instead")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fatalf("Usage: mitsukeru pin [--unpin] <path>")
	}
	path, err := fileid.Canonical(fs.Arg(0))
	if err != nil {
		fatalf("Invalid path: %v", err)
	}
	components, _, closeFn := openDirect(*configPath)
	defer closeFn()
	if err := components.Engine.SetPinned(context.Background(), path, !*unpin); err != nil {
		fatalf("Pin failed: %v", err)
	}
	if *unpin {
		fmt.Printf("Unpinned: %s\n", path)
		return
	}
	fmt.Printf("Pinned: %s\n", path)
}

// openDirect loads config and opens storage for a one-shot command.
func openDirect(configPath string) (*Components, *config.Config, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	return components, cfg, func() {
		components.Close()
		_ = logger.Sync()
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: mitsukeru watch <add|remove|list> [path]")
		fmt.Println("  mitsukeru watch add <path>     Add directory to watch")
		fmt.Println("  mitsukeru watch remove <path>  Remove directory from watch")
		fmt.Println("  mitsukeru watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[3:])

	client := newAPIClient(*serverURL)
	ctx := context.Background()
	switch sub {
	case "add", "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: mitsukeru watch %s <path>", sub)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if sub == "add" {
			if err := client.addWatch(ctx, path); err != nil {
				fatalf("Add failed: %v", err)
			}
			fmt.Printf("Added: %s\n", path)
			return
		}
		if err := client.removeWatch(ctx, path); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		dirs, err := client.listWatch(ctx)
		if err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range dirs {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Engine       *search.Engine
	Indexer      *indexer.Indexer
	Extractor    *dates.Extractor
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// newDateExtractor builds the query date extractor from the dates config.
func newDateExtractor(cfg *config.DatesConfig) (*dates.Extractor, error) {
	detector, err := cfg.Detector()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return dates.NewExtractor(dates.WithOrderDetector(detector), dates.WithLocation(loc)), nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, idxOpts ...indexer.IndexerOption) (*Components, error) {
	extractor, err := newDateExtractor(&cfg.Dates)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath,
		keyword.WithNameBoost(cfg.Search.NameBoost),
		keyword.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	engine := search.NewEngine(store, keywordIndex, &cfg.Search,
		search.WithLogger(logger),
		search.WithThumbnailSize(cfg.Thumbnails.MaxDimension),
	)
	idxOpts = append([]indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithWorkers(cfg.Search.IndexWorkers),
	}, idxOpts...)
	idx := indexer.NewIndexer(store, keywordIndex, extract.NewExtractor(), idxOpts...)

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Engine:       engine,
		Indexer:      idx,
		Extractor:    extractor,
	}, nil
}

func printUsage() {
	fmt.Println(`mitsukeru - Fast local document search

Usage:
  mitsukeru server [flags]             Start the HTTP server and directory watcher
  mitsukeru search [flags] <query>     Search documents (empty query lists recent documents)
  mitsukeru parse [flags] <query>      Show how a query is interpreted
  mitsukeru index [flags] <path>       Index a file or directory
  mitsukeru delete [flags] <id|path>   Remove documents from the index
  mitsukeru pin [--unpin] <path>       Pin a document to the top of recent documents
  mitsukeru status [flags]             Show storage/index status
  mitsukeru watch <add|remove|list>    Manage watched directories
  mitsukeru version                    Show version
  mitsukeru help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mitsukeru/config.yaml)
  --debug            Enable debug logging (directory changes, file indexing, etc.)

Search Flags:
  --config string     Config file path (for direct storage mode)
  --server string     Server URL (default: http://localhost:8080). Use --server "" to open storage directly.
  --file-type string  Comma-separated file types (default: any)
  --limit int         Results per page (default from config)
  --pages int         Pages to fetch (default: 1)
  --output string     Output format: text, compact or json (default: text)

Index Flags:
  --config string    Config file path
  --force            Re-index unchanged files

Examples:
  mitsukeru server
  mitsukeru search quarterly report
  mitsukeru search --file-type pdf,docx invoice last month
  mitsukeru parse 'hello -draft "project x" 2024-03-01 to 2024-03-05'
  mitsukeru index ~/Documents
  mitsukeru status --output json
  mitsukeru watch add /path/to/docs`)
}
