package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/routecheck/internal/codec"
	"github.com/PentesterFlow/routecheck/internal/endpoint"
	"github.com/PentesterFlow/routecheck/internal/logger"
	"github.com/PentesterFlow/routecheck/internal/output"
	"github.com/PentesterFlow/routecheck/internal/shutdown"
	"github.com/PentesterFlow/routecheck/internal/state"
	"github.com/PentesterFlow/routecheck/pkg/routecheck"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool
	logFormat  string
	logFile    string
	noColor    bool
	stateFile  string

	// Input flags
	sourceRoot   string
	pathListFile string
	codecName    string

	// Probe flags
	server          string
	authString      string
	reuseSession    bool
	sessionMaxAge   time.Duration
	timeout         int
	rateLimit       float64
	burst           int
	followRedirects bool
	proxy           string
	includePatterns []string
	excludePatterns []string
	methods         []string
	showProgress    bool

	// Output flags
	reportFile string
	fullJSON   bool
	simpleJSON bool
	exportFile string
	noState    bool
	runID      string
	listRuns   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "routecheck",
		Short: "routecheck - endpoint collection checker",
		Long: `routecheck - validates endpoint collections produced by a source code analysis engine.

Checks that every endpoint survives serialization, reports duplicate endpoints and
statistics, and optionally probes each endpoint against a running server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	checkCmd := &cobra.Command{
		Use:   "check [endpoints-file] [source-root]",
		Short: "Validate and probe endpoint collections",
		Long:  "Validate one endpoint collection, or every job of a path-list file, and probe it against a server.",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runCheck,
	}

	listCmd := &cobra.Command{
		Use:   "list [endpoints-file]",
		Short: "List the endpoints of a collection",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runList,
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Show a persisted run report",
		Long:  "Show the latest run report, or the run given by --id, from the state file.",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file, rotated")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&stateFile, "state-file", "", "State file for sessions and run reports")

	// Input flags
	for _, cmd := range []*cobra.Command{checkCmd, listCmd} {
		cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Source root the endpoints were generated from")
		cmd.Flags().StringVar(&pathListFile, "path-list-file", "", "File listing '<endpoints-file> [source-root]' per line")
		cmd.Flags().StringVar(&codecName, "codec", "json", "Codec used for round-trip validation (json, yaml)")
	}

	// Probe flags
	checkCmd.Flags().StringVarP(&server, "server", "s", "", "Base URL of the server to probe")
	checkCmd.Flags().StringVarP(&authString, "auth", "a", "", "Credentials as 'endpoint;name=value;name=value'")
	checkCmd.Flags().BoolVar(&reuseSession, "reuse-session", false, "Reuse a stored session instead of logging in")
	checkCmd.Flags().DurationVar(&sessionMaxAge, "session-max-age", 0, "Maximum age of a reused session (0 = no limit)")
	checkCmd.Flags().IntVarP(&timeout, "timeout", "t", 30, "Request timeout in seconds")
	checkCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 0, "Requests per second (0 = unlimited)")
	checkCmd.Flags().IntVar(&burst, "burst", 1, "Rate limiter burst")
	checkCmd.Flags().BoolVar(&followRedirects, "follow-redirects", false, "Follow redirects while probing")
	checkCmd.Flags().StringVar(&proxy, "proxy", "", "Proxy URL for probe requests")
	checkCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "URL path globs to probe")
	checkCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "URL path globs never to probe")
	checkCmd.Flags().StringArrayVar(&methods, "method", nil, "HTTP methods to probe")
	checkCmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress bar while probing")

	// Output flags
	checkCmd.Flags().StringVarP(&reportFile, "output", "o", "", "Write the run report as JSON to this file")
	checkCmd.Flags().BoolVar(&fullJSON, "json", false, "Export the full endpoint collection as JSON instead of checking")
	checkCmd.Flags().BoolVar(&simpleJSON, "simple-json", false, "Export the simple endpoint form as JSON instead of checking")
	checkCmd.Flags().StringVar(&exportFile, "output-file", "", "Also write the --json/--simple-json export to this file")
	checkCmd.Flags().BoolVar(&noState, "no-state", false, "Do not persist sessions or run reports")

	// Report flags
	reportCmd.Flags().StringVar(&runID, "id", "", "Run ID (default: latest)")
	reportCmd.Flags().BoolVar(&listRuns, "all", false, "List every persisted run")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the global flags.
func loadConfig(cmd *cobra.Command) (*routecheck.Config, error) {
	config := routecheck.DefaultConfig()
	if configFile != "" {
		fileConfig, err := routecheck.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	flags := cmd.Flags()
	switch {
	case debug:
		config.Log.Level = "debug"
	case verbose:
		config.Log.Level = "info"
	}
	if flags.Changed("log-format") {
		config.Log.Format = logFormat
	}
	if logFile != "" {
		config.Log.File = &logger.FileConfig{Path: logFile}
	}
	if flags.Changed("no-color") {
		config.Output.NoColor = noColor
	}
	if stateFile != "" {
		config.State.Path = stateFile
		config.State.Enabled = true
	}
	if flags.Changed("codec") {
		config.Validation.Codec = codecName
	}
	return config, nil
}

// jobsFromArgs resolves the jobs named on the command line.
func jobsFromArgs(args []string, log *logger.Logger) ([]routecheck.Job, error) {
	if pathListFile != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("--path-list-file cannot be combined with an endpoints file argument")
		}
		jobs, err := routecheck.ReadPathList(pathListFile, log)
		if err != nil {
			return nil, err
		}
		if len(jobs) == 0 {
			return nil, fmt.Errorf("no usable entries in %s", pathListFile)
		}
		return jobs, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("an endpoints file or --path-list-file is required")
	}
	if _, err := os.Stat(args[0]); err != nil {
		return nil, fmt.Errorf("endpoints file: %w", err)
	}

	job := routecheck.Job{EndpointsFile: args[0], SourceRoot: sourceRoot}
	if len(args) > 1 {
		job.SourceRoot = args[1]
	}
	return []routecheck.Job{job}, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		config.Server = server
	}
	if flags.Changed("auth") {
		config.Auth.Credentials = authString
	}
	if flags.Changed("reuse-session") {
		config.Auth.ReuseSession = reuseSession
	}
	if flags.Changed("session-max-age") {
		config.Auth.SessionMaxAge = sessionMaxAge
	}
	if flags.Changed("timeout") {
		config.Probe.Timeout = time.Duration(timeout) * time.Second
	}
	if flags.Changed("rate-limit") {
		config.Probe.RequestsPerSecond = rateLimit
	}
	if flags.Changed("burst") {
		config.Probe.Burst = burst
	}
	if flags.Changed("follow-redirects") {
		config.Probe.FollowRedirects = followRedirects
	}
	if flags.Changed("proxy") {
		config.Probe.Proxy = proxy
	}
	if flags.Changed("include") {
		config.Probe.Scope.IncludePatterns = includePatterns
	}
	if flags.Changed("exclude") {
		config.Probe.Scope.ExcludePatterns = excludePatterns
	}
	if flags.Changed("method") {
		config.Probe.Scope.Methods = methods
	}
	if flags.Changed("progress") {
		config.Probe.Progress = showProgress
	}
	if flags.Changed("output") {
		config.Output.FilePath = reportFile
	}
	if noState {
		config.State.Enabled = false
	}

	// Exports only read the collections; nothing is validated or probed.
	if fullJSON || simpleJSON {
		config.State.Enabled = false
		return runExport(cmd, config, args)
	}
	if exportFile != "" {
		fmt.Fprintln(os.Stderr, "An output file path was specified but neither -json nor -simple-json flags were set, output file path will be ignored")
	}

	opts := []routecheck.Option{
		routecheck.WithConfig(config),
		routecheck.WithPrinter(os.Stdout, config.Output.NoColor),
	}
	if config.Probe.Progress && config.Server != "" {
		opts = append(opts, routecheck.WithProgress(os.Stderr))
	}

	c, err := routecheck.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create checker: %w", err)
	}

	jobs, err := jobsFromArgs(args, c.Logger())
	if err != nil {
		c.Close()
		return err
	}

	handler := shutdown.New(context.Background(), shutdown.Config{Logger: c.Logger()})
	handler.RegisterCloser("checker", c)
	defer handler.Close()

	report, err := c.Check(handler.Context(), jobs)
	if err != nil {
		if handler.Context().Err() != nil && report != nil {
			fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, stopped after %d projects\n", len(report.Projects))
			return nil
		}
		return fmt.Errorf("check failed: %w", err)
	}

	if report.ID != "" {
		c.Logger().WithField("run", report.ID).Info("Run report saved")
	}
	return nil
}

// runExport writes the loaded collections as full or simple JSON.
func runExport(cmd *cobra.Command, config *routecheck.Config, args []string) error {
	log := newCLILogger(config)
	jobs, err := jobsFromArgs(args, log)
	if err != nil {
		return err
	}

	handler := shutdown.New(context.Background(), shutdown.Config{Logger: log})
	defer handler.Close()

	loaded, err := routecheck.LoadJobs(handler.Context(), jobs)
	if err != nil {
		return err
	}

	var roots []*endpoint.Endpoint
	for _, l := range loaded {
		if l.Err != nil {
			log.WithError(l.Err).WithField("file", l.Job.EndpointsFile).Error("Unable to load endpoints")
			continue
		}
		roots = append(roots, l.Endpoints...)
	}

	c, err := codec.ByName(config.Validation.Codec)
	if err != nil {
		return err
	}
	write := func(w io.Writer) error {
		if simpleJSON {
			return output.WriteSimpleJSON(w, roots)
		}
		return output.WriteFullJSON(w, c, roots)
	}

	if err := write(os.Stdout); err != nil {
		return err
	}
	if exportFile == "" {
		return nil
	}

	f, err := os.Create(exportFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.WithField("path", exportFile).Info("Endpoints exported")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newCLILogger(config)

	jobs, err := jobsFromArgs(args, log)
	if err != nil {
		return err
	}

	handler := shutdown.New(context.Background(), shutdown.Config{Logger: log})
	defer handler.Close()

	loaded, err := routecheck.LoadJobs(handler.Context(), jobs)
	if err != nil {
		return err
	}

	printer := output.NewPrinter(os.Stdout, config.Output.NoColor)
	for _, l := range loaded {
		if len(loaded) > 1 {
			fmt.Printf("\n%s\n", l.Job.Name())
		}
		if l.Err != nil {
			log.WithError(l.Err).WithField("file", l.Job.EndpointsFile).Error("Unable to load endpoints")
			continue
		}
		printer.Listing(l.Endpoints)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if _, err := os.Stat(config.State.Path); err != nil {
		return fmt.Errorf("no state file at %s", config.State.Path)
	}
	store, err := state.NewBoltStore(config.State.Path)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer store.Close()

	if listRuns {
		runs, err := store.Runs()
		if err != nil {
			return err
		}
		printRuns(os.Stdout, runs)
		return nil
	}

	var run *state.Run
	if runID != "" {
		run, err = store.LoadRun(runID)
	} else {
		run, err = store.Latest()
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		fmt.Println("No runs recorded")
		return nil
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printRuns(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Finished", "Server", "Projects", "Valid", "Duration"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	for _, r := range runs {
		table.Append([]string{
			r.ID,
			r.FinishedAt.Format(time.RFC3339),
			r.Server,
			strconv.Itoa(len(r.Projects)),
			strconv.FormatBool(r.Valid),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

func newCLILogger(config *routecheck.Config) *logger.Logger {
	level, err := logger.ParseLevel(config.Log.Level)
	if err != nil {
		level = logger.InfoLevel
	}
	return logger.New(logger.Config{
		Level:     level,
		Pretty:    config.Log.Format != "json",
		Component: "cli",
		File:      config.Log.File,
	})
}
