package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/core/config"
	"github.com/abdul-hamid-achik/restdd/packages/core/runner"
	"github.com/abdul-hamid-achik/restdd/packages/history"
	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/output"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
	"github.com/abdul-hamid-achik/restdd/packages/testdata"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file|directory]...",
	Short: "Run scenario files",
	Long: `Run the scenarios of JSON scenario files. Without arguments the
ddFolders and ddFiles of the config file are used.

Examples:
  restdd run dd/quotes
  restdd run dd/quotes/quotes.json --base-uri http://localhost:8080
  restdd run dd/ --name "create*" --parallel
  restdd run --config restdd.yaml --output junit --output-file report.xml`,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	configFlag       string
	baseURIFlag      string
	testDataRootFlag string
	nameFlag         string
	verboseFlag      int // 0=off, 1=-v (info logs), 2=-vv (debug logs)
	noColorFlag      bool
	logFormatFlag    string
	outputFlag       string
	outputFileFlag   string
	bailFlag         bool
	timeoutFlag      string
	rateFlag         float64
	parallelFlag     bool
	concurrencyFlag  int
	verifyBodyFlag   bool
	watchFlag        bool
	proxyFlag        string
	insecureFlag     bool
	historyFlag      string
	waitForFlag      string
	waitTimeoutFlag  string
)

// logger is built by runCommand and shared by the loaders of this process.
var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("RESTDD_CONFIG", ""), "Path to config file (env: RESTDD_CONFIG)")
	runCmd.Flags().StringVar(&baseURIFlag, "base-uri", getEnvString("RESTDD_BASE_URI", ""), "Base URI for steps without their own (env: RESTDD_BASE_URI)")
	runCmd.Flags().StringVar(&testDataRootFlag, "testdata-root", getEnvString("RESTDD_TESTDATA_ROOT", ""), "Root folder of $<testdata:...> references (env: RESTDD_TESTDATA_ROOT)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern (* wildcards)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for debug logs)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("RESTDD_NO_COLOR", false), "Disable colored output (env: RESTDD_NO_COLOR)")
	runCmd.Flags().StringVar(&logFormatFlag, "log-format", getEnvString("RESTDD_LOG_FORMAT", "text"), "Log format on stderr: text, json (env: RESTDD_LOG_FORMAT)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("RESTDD_OUTPUT", "console"), "Output format: "+strings.Join(output.Formats, ", ")+" (env: RESTDD_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("RESTDD_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: RESTDD_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("RESTDD_BAIL", false), "Stop after the first failed scenario (env: RESTDD_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("RESTDD_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: RESTDD_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("RESTDD_RATE", 0), "Maximum requests per second, 0 for no limit (env: RESTDD_RATE)")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("RESTDD_PARALLEL", false), "Run the scenarios of a file concurrently (env: RESTDD_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("RESTDD_CONCURRENCY", runner.DefaultConcurrency), "Number of scenarios run at once with --parallel (env: RESTDD_CONCURRENCY)")
	runCmd.Flags().BoolVar(&verifyBodyFlag, "verify-body", getEnvBool("RESTDD_VERIFY_BODY", false), "Fail steps whose response does not contain expectedResponse (env: RESTDD_VERIFY_BODY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run scenarios")
	runCmd.Flags().StringVar(&waitForFlag, "wait-for", getEnvString("RESTDD_WAIT_FOR", ""), "URL to poll until it answers 200 before running (env: RESTDD_WAIT_FOR)")
	runCmd.Flags().StringVar(&waitTimeoutFlag, "wait-timeout", getEnvString("RESTDD_WAIT_TIMEOUT", "30s"), "How long to wait for --wait-for (env: RESTDD_WAIT_TIMEOUT)")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("RESTDD_PROXY", ""), "Proxy URL for HTTP requests (env: RESTDD_PROXY)")
	runCmd.Flags().BoolVarP(&insecureFlag, "insecure", "k", getEnvBool("RESTDD_INSECURE", false), "Disable SSL certificate validation (env: RESTDD_INSECURE)")

	// History
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("RESTDD_HISTORY", ""), "SQLite file recording every run (env: RESTDD_HISTORY)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func newLogger(w io.Writer, verbosity int, format string) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// flagOverrides turns the flags that were set, on the command line or
// through the environment, into a config that wins over the file.
func flagOverrides(cmd *cobra.Command) (*config.Config, error) {
	set := func(name string) bool {
		return cmd.Flags().Changed(name)
	}
	envSet := func(key string) bool {
		return os.Getenv(key) != ""
	}

	over := &config.Config{
		BaseURI:      baseURIFlag,
		TestDataRoot: testDataRootFlag,
		RateLimit:    rateFlag,
		Proxy:        proxyFlag,
		History:      historyFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		over.Timeout = int(d.Milliseconds())
	}
	if set("concurrency") || envSet("RESTDD_CONCURRENCY") {
		over.Concurrency = concurrencyFlag
	}
	if set("bail") || envSet("RESTDD_BAIL") {
		over.Bail = config.BoolPtr(bailFlag)
	}
	if set("parallel") || envSet("RESTDD_PARALLEL") {
		over.Parallel = config.BoolPtr(parallelFlag)
	}
	if set("verify-body") || envSet("RESTDD_VERIFY_BODY") {
		over.VerifyBody = config.BoolPtr(verifyBodyFlag)
	}
	if set("no-color") || envSet("RESTDD_NO_COLOR") {
		over.NoColor = config.BoolPtr(noColorFlag)
	}
	if insecureFlag {
		over.ValidateSSL = config.BoolPtr(false)
	}
	if verboseFlag > 0 {
		over.Verbose = config.BoolPtr(true)
	}
	return over, nil
}

func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	over, err := flagOverrides(cmd)
	if err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	return fileConfig.Merge(over), nil
}

func newClient(cfg *config.Config) *http.Client {
	opts := []http.ClientOption{
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if d := cfg.TimeoutDuration(); d > 0 {
		opts = append(opts, http.WithTimeout(d))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(cfg.RateLimit))
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.Headers))
	}
	return http.NewClient(opts...)
}

func newSuite(cfg *config.Config) (*runner.Suite, error) {
	registry, err := cfg.AuthRegistry()
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	loader := testdata.New(cfg.TestDataRoot, testdata.WithLogger(logger))

	return runner.NewSuite(&runner.Config{
		BaseURI:     cfg.BaseURI,
		Parallel:    cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
		Bail:        cfg.GetBail(),
		NameFilter:  nameFlag,
		VerifyBody:  cfg.GetVerifyBody(),
	},
		runner.WithTransport(newClient(cfg)),
		runner.WithAuth(registry),
		runner.WithLoader(loader),
		runner.WithLogger(logger),
	), nil
}

// runTotals is what one pass over the files produced.
type runTotals struct {
	Passed   int
	Failed   int
	Skipped  int
	Network  int
	Duration time.Duration
}

func runCommand(cmd *cobra.Command, args []string) error {
	logger = newLogger(cmd.ErrOrStderr(), verboseFlag, logFormatFlag)

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return withExitCode(ExitConfigError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		out = f
	}

	format := outputFlag
	if !cmd.Flags().Changed("output") && os.Getenv("RESTDD_OUTPUT") == "" && len(cfg.Reporters) > 0 {
		format = cfg.Reporters[0]
	}
	newFormatter := func() (output.Formatter, error) {
		return output.New(strings.ToLower(format), out, cfg.GetVerbose(), cfg.GetNoColor())
	}
	if _, err := newFormatter(); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	suite, err := newSuite(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if waitForFlag != "" {
		timeout, err := time.ParseDuration(waitTimeoutFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid wait timeout %q: %w", waitTimeoutFlag, err))
		}
		if err := suite.WaitFor(ctx, runner.WaitConfig{URL: waitForFlag, Timeout: timeout}); err != nil {
			return withExitCode(ExitNetworkError, err)
		}
	}

	var store *history.Store
	if cfg.History != "" {
		if dir := filepath.Dir(strings.TrimPrefix(strings.TrimPrefix(cfg.History, "sqlite://"), "sqlite:")); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		store, err = history.Open(ctx, cfg.History)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer store.Close()
	}

	runOnce := func() (runTotals, error) {
		formatter, _ := newFormatter()
		formatter.FormatHeader(version)

		files, err := loadScenarios(cfg, args)
		if err != nil {
			formatter.FormatError(err)
			return runTotals{}, withExitCode(ExitParseError, err)
		}

		totals := runFiles(ctx, suite, store, formatter, files, cfg.GetBail())
		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(totals.Duration); err != nil {
				return totals, fmt.Errorf("error writing output: %w", err)
			}
		}
		return totals, nil
	}

	totals, err := runOnce()
	if !watchFlag {
		if err != nil {
			return err
		}
		return totalsError(totals)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
	}

	return watch(ctx, cmd, args, cfg, func() {
		if _, err := runOnce(); err != nil {
			logger.Error("run failed", "error", err)
		}
	})
}

func runFiles(ctx context.Context, suite *runner.Suite, store *history.Store, formatter output.Formatter, files []scenarioFile, bail bool) runTotals {
	var totals runTotals
	start := time.Now()

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		result := suite.Run(ctx, scenario.RelativeName(file.Path), file.Scenarios)
		formatter.FormatResult(result)
		totals.Passed += result.Passed
		totals.Failed += result.Failed
		totals.Skipped += result.Skipped
		for _, scn := range result.Scenarios {
			if isNetworkFailure(scn.Error) {
				totals.Network++
			}
		}

		if store != nil {
			if id, err := store.Record(ctx, result); err != nil {
				logger.Warn("recording run history", "file", result.File, "error", err)
			} else {
				logger.Debug("run recorded", "file", result.File, "run", id)
			}
		}

		if bail && result.Failed > 0 {
			break
		}
	}

	totals.Duration = time.Since(start)
	return totals
}

// isNetworkFailure reports a scenario that stopped because no response
// came back at all.
func isNetworkFailure(err error) bool {
	var transportErr *runner.TransportError
	return errors.Is(err, runner.ErrNoResponse) || errors.As(err, &transportErr)
}

// totalsError reports failed scenarios; a run where every failure was an
// unreachable service exits with the network code.
func totalsError(t runTotals) error {
	if t.Failed == 0 {
		return nil
	}
	err := fmt.Errorf("%d of %d scenarios failed", t.Failed, t.Passed+t.Failed)
	if t.Network == t.Failed {
		return withExitCode(ExitNetworkError, err)
	}
	return withExitCode(ExitTestFailure, err)
}

func watch(ctx context.Context, cmd *cobra.Command, args []string, cfg *config.Config, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	roots := args
	if len(roots) == 0 {
		for _, folder := range cfg.DDFolders {
			roots = append(roots, filepath.Join(cfg.Root, scenario.DDFolder, folder))
		}
	}
	roots = append(roots, cfg.TestDataRoot)

	watchedDirs := make(map[string]bool)
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			root = filepath.Dir(root)
		}
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() && !watchedDirs[path] {
				if err := watcher.Add(path); err != nil {
					logger.Warn("cannot watch directory", "dir", path, "error", err)
				}
				watchedDirs[path] = true
			}
			return nil
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	// Debounce timer for rapid file changes
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Write) && isScenarioFile(event.Name) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				name := event.Name
				debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "\n\nFile changed: %s\nRe-running scenarios...\n\n", name)
					rerun()
					fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n")
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}
