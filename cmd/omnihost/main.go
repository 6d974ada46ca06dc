package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagarmemane135/omnihost/internal/audit"
	"github.com/sagarmemane135/omnihost/internal/config"
	"github.com/sagarmemane135/omnihost/internal/engine"
	"github.com/sagarmemane135/omnihost/internal/inventory"
	"github.com/sagarmemane135/omnihost/internal/logging"
	"github.com/sagarmemane135/omnihost/internal/output"
	"github.com/sagarmemane135/omnihost/internal/progress"
	"github.com/sagarmemane135/omnihost/internal/remote"
)

var (
	// Build-time variables (set via -ldflags)
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"

	// Global configuration
	cfg *config.Config

	// CLI flags
	inventoryFile string
	parallel      int
	timeoutSecs   int
	retries       int
	outputMode    string
	outputJSON    bool
	outputCSV     bool
	outputPlain   bool
	outputCompact bool
	quiet         bool
	dryRun        bool
	showProgress  bool
	logLevel      string
	logFormat     string
	noAudit       bool
	auditPath     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(getExitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "omnihost",
	Short: "Execute commands in parallel across a fleet of hosts",
	Long: `omnihost fans a single command out across many hosts in parallel,
with bounded concurrency, per-host retries, and deterministic output.

Targets are resolved from an inventory file: host names, groups
(group:web or a bare group name), tags (tag:prod), the special
selector 'all', comma-separated combinations, and ad-hoc
user@host:port specs for hosts not in the inventory.

Examples:
  # Run a command on every web host
  omnihost run group:web -- uptime

  # Run on two named hosts with retries and a tighter timeout
  omnihost run web1,web2 --retries 2 --timeout 10 -- "systemctl status nginx"

  # JSON output for automation
  omnihost run all --json -- hostname

  # Show the plan without connecting anywhere
  omnihost run all --dry-run -- "apt-get upgrade -y"

  # Run a stored command alias
  omnihost run group:db -- @disk-usage`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&inventoryFile, "inventory", "i", "", "Path to the inventory file")
	pf.IntVarP(&parallel, "parallel", "p", 5, "Maximum concurrent hosts (1-20)")
	pf.IntVarP(&timeoutSecs, "timeout", "t", 30, "Per-attempt timeout in seconds")
	pf.IntVarP(&retries, "retries", "r", 0, "Maximum retry attempts per host")
	pf.StringVarP(&outputMode, "output", "o", "", "Output format (interactive, json, csv, quiet, plain, compact)")
	pf.BoolVar(&outputJSON, "json", false, "Shorthand for --output json")
	pf.BoolVar(&outputCSV, "csv", false, "Shorthand for --output csv")
	pf.BoolVar(&outputPlain, "plain", false, "Shorthand for --output plain")
	pf.BoolVar(&outputCompact, "compact", false, "Shorthand for --output compact")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Suppress logs and emit one line per host")
	pf.BoolVar(&dryRun, "dry-run", false, "Show the execution plan without connecting")
	pf.BoolVar(&showProgress, "progress", false, "Show a live progress line on stderr")
	pf.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, error)")
	pf.StringVar(&logFormat, "log-format", "text", "Log format (json, text)")
	pf.BoolVar(&noAudit, "no-audit", false, "Disable audit recording for this invocation")
	pf.StringVar(&auditPath, "audit-path", "", "Path to the audit database")

	rootCmd.MarkFlagsMutuallyExclusive("output", "json", "csv", "plain", "compact", "quiet")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <selector> -- <command>",
	Short: "Run a command on the selected hosts",
	Long: `Run resolves the selector against the inventory and executes the
command on every resolved host. Commands starting with '@' are looked
up in the inventory's alias table. The command may contain templates
({{.Host}}, {{.Address}}, {{.User}}, {{.Port}}) expanded per host.`,
	Args: func(cmd *cobra.Command, args []string) error {
		dash := cmd.ArgsLenAtDash()
		if dash == -1 {
			dash = 1
		}
		if dash < 1 || len(args) == 0 {
			return &SetupError{Message: "target selector is required"}
		}
		if len(args) <= dash {
			return &SetupError{Message: "command is required after '--'"}
		}
		return nil
	},
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		dash := cmd.ArgsLenAtDash()
		if dash == -1 {
			dash = 1
		}
		selector := strings.Join(args[:dash], ",")
		command := strings.Join(args[dash:], " ")
		return execute(selector, command, os.Stdout)
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping <selector>",
	Short: "Check connectivity to the selected hosts",
	Long: `Ping connects to every resolved host and runs a no-op command, so a
host is reported as reachable only when the full connect, authenticate
and execute path works.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(strings.Join(args, ","), "true", os.Stdout)
	},
}

var scriptCmd = &cobra.Command{
	Use:   "script <selector> <file>",
	Short: "Run a local script file on the selected hosts",
	Long: `Script reads a local shell script and executes its contents on every
resolved host through the remote shell. The script is sent as a single
command; it is not copied to the host.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return &SetupError{Message: fmt.Sprintf("failed to read script '%s': %v", args[1], err)}
		}
		command := strings.TrimSpace(string(data))
		if command == "" {
			return &SetupError{Message: fmt.Sprintf("script '%s' is empty", args[1])}
		}
		return execute(args[0], command, os.Stdout)
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "Show recent invocations from the audit log",
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		hostFilter, _ := cmd.Flags().GetString("host")
		cmdFilter, _ := cmd.Flags().GetString("command")

		store, err := audit.Open(resolvedAuditPath())
		if err != nil {
			return &SetupError{Message: fmt.Sprintf("failed to open audit database: %v", err)}
		}
		defer store.Close()

		records, err := store.ListFiltered(limit, hostFilter, cmdFilter)
		if err != nil {
			return &SetupError{Message: fmt.Sprintf("failed to read audit records: %v", err)}
		}

		printHistory(os.Stdout, records)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("omnihost %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildTime)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of records to show")
	historyCmd.Flags().String("host", "", "Only show invocations that targeted this host")
	historyCmd.Flags().String("command", "", "Only show invocations whose command contains this text")
}

// loadConfig merges configuration files, environment, and explicitly set
// CLI flags, then validates the result.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.NewManager().Load()
	if err != nil {
		return &SetupError{Message: fmt.Sprintf("failed to load configuration: %v", err)}
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("inventory") {
		cfg.Inventory = inventoryFile
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeoutSecs
	}
	if flags.Changed("retries") {
		cfg.Retries = retries
	}
	if flags.Changed("output") {
		cfg.Output = outputMode
	}
	if flags.Changed("quiet") {
		cfg.Quiet = quiet
		cfg.Output = string(output.ModeQuiet)
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = dryRun
	}
	if flags.Changed("progress") {
		cfg.ShowProgress = showProgress
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("no-audit") {
		cfg.AuditEnabled = !noAudit
	}
	if flags.Changed("audit-path") {
		cfg.AuditPath = auditPath
	}

	switch {
	case outputJSON:
		cfg.Output = string(output.ModeJSON)
	case outputCSV:
		cfg.Output = string(output.ModeCSV)
	case outputPlain:
		cfg.Output = string(output.ModePlain)
	case outputCompact:
		cfg.Output = string(output.ModeCompact)
	}

	if err := config.NewManager().Validate(cfg); err != nil {
		return &SetupError{Message: fmt.Sprintf("configuration validation failed: %v", err)}
	}
	return nil
}

// execute is the shared path behind run, ping, and script: resolve targets,
// dispatch, render, and map partial failure to the exit code.
func execute(selector, command string, writer io.Writer) error {
	logger := logging.NewLoggerFromConfig(cfg.LogLevel, cfg.LogFormat, cfg.Quiet)

	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		return &SetupError{Message: err.Error()}
	}

	inv, err := loadInventory()
	if err != nil {
		return err
	}

	if strings.HasPrefix(command, "@") {
		expanded, ok := inv.CommandAlias(command)
		if !ok {
			return &SetupError{Message: fmt.Sprintf("unknown command alias '%s'", command)}
		}
		command = expanded
	}

	targets, err := inv.Resolve(selector)
	if err != nil {
		return &SetupError{Message: err.Error()}
	}
	logger.LogResolve(selector, len(targets))

	req := engine.Request{
		Command:     command,
		Targets:     targets,
		Parallelism: cfg.Parallel,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		MaxRetries:  cfg.Retries,
		DryRun:      cfg.DryRun,
		Mode:        string(mode),
	}

	if cfg.DryRun {
		plan, err := engine.Plan(req)
		if err != nil {
			return &SetupError{Message: err.Error()}
		}
		printPlan(writer, req, plan)
		return nil
	}

	opts := []engine.Option{}
	if cfg.AuditEnabled {
		store, err := audit.Open(resolvedAuditPath())
		if err != nil {
			// Audit is best effort: a broken store must not block execution.
			logger.LogAuditError(err)
		} else {
			defer store.Close()
			opts = append(opts, engine.WithRecorder(store, currentUser()))
		}
	}

	var tracker *progress.Tracker
	if cfg.ShowProgress {
		tracker = progress.NewTracker(len(targets), os.Stderr, true)
		opts = append(opts, engine.WithObserver(func(r engine.HostResult) {
			tracker.Update(r.Succeeded)
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal, cancelling", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := engine.New(remote.NewSSHExecutor(logger), logger, opts...).Run(ctx, req)
	if tracker != nil {
		tracker.Finish()
	}
	if err != nil {
		return &SetupError{Message: err.Error()}
	}

	rendered, err := output.Render(summary, mode)
	if err != nil {
		return &SetupError{Message: err.Error()}
	}
	fmt.Fprint(writer, rendered)

	if summary.Failed > 0 {
		return &ExecutionError{
			Message: fmt.Sprintf("%d/%d hosts failed", summary.Failed, len(targets)),
		}
	}
	return nil
}

// loadInventory loads the configured inventory file, falling back to an
// empty inventory when the default file does not exist. Ad-hoc
// user@host:port selectors work without any inventory at all.
func loadInventory() (*inventory.Inventory, error) {
	path := cfg.Inventory
	if path == "" {
		path = inventory.DefaultPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return &inventory.Inventory{}, nil
		}
	}
	inv, err := inventory.Load(path)
	if err != nil {
		return nil, &SetupError{Message: err.Error()}
	}
	return inv, nil
}

func printPlan(writer io.Writer, req engine.Request, plan []engine.PlanEntry) {
	fmt.Fprintln(writer, "Dry run - no connections will be made")
	fmt.Fprintln(writer)
	fmt.Fprintf(writer, "  Targets:     %d\n", len(plan))
	fmt.Fprintf(writer, "  Parallelism: %d\n", req.Parallelism)
	fmt.Fprintf(writer, "  Timeout:     %s per attempt\n", req.Timeout)
	fmt.Fprintf(writer, "  Retries:     %d\n", req.MaxRetries)
	fmt.Fprintln(writer)
	for i, entry := range plan {
		fmt.Fprintf(writer, "  %d. %s (%s)\n", i+1, entry.Host.Name, entry.Host.Addr())
		fmt.Fprintf(writer, "     %s\n", entry.Command)
	}
}

func printHistory(writer io.Writer, records []audit.Record) {
	if len(records) == 0 {
		fmt.Fprintln(writer, "No recorded invocations.")
		return
	}
	for _, rec := range records {
		status := "ok"
		if rec.Failed > 0 {
			status = fmt.Sprintf("%d failed", rec.Failed)
		}
		fmt.Fprintf(writer, "%s  %-8s  %-6s  %d host(s)  %s\n",
			rec.StartedAt.Format("2006-01-02 15:04:05"),
			rec.Who, status, len(rec.Targets), rec.Command)
	}
}

func resolvedAuditPath() string {
	if cfg != nil && cfg.AuditPath != "" {
		return cfg.AuditPath
	}
	return audit.DefaultPath()
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// ExecutionError represents a run where one or more hosts failed (exit code 1)
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// SetupError represents an error before any dispatch (exit code 2)
type SetupError struct {
	Message string
}

func (e *SetupError) Error() string {
	return e.Message
}

// getExitCode determines the appropriate exit code based on error type
// Returns:
//   - 0: Success (all hosts succeeded)
//   - 1: Execution failure (one or more hosts failed)
//   - 2: Setup error (invalid arguments, configuration issues, etc.)
func getExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch err.(type) {
	case *SetupError:
		return 2
	case *ExecutionError:
		return 1
	default:
		return 2
	}
}
