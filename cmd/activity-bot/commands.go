package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hochfrequenz/activity-bot/internal/activities"
	"github.com/hochfrequenz/activity-bot/internal/config"
	"github.com/hochfrequenz/activity-bot/internal/daemon"
	"github.com/hochfrequenz/activity-bot/internal/domain"
	"github.com/hochfrequenz/activity-bot/internal/gitops"
	"github.com/hochfrequenz/activity-bot/internal/lifecycle"
	"github.com/hochfrequenz/activity-bot/internal/lockfile"
	"github.com/hochfrequenz/activity-bot/internal/notify"
	"github.com/hochfrequenz/activity-bot/internal/orchestrator"
	"github.com/hochfrequenz/activity-bot/internal/quota"
	"github.com/hochfrequenz/activity-bot/internal/review"
	"github.com/hochfrequenz/activity-bot/internal/runstore"
	"github.com/hochfrequenz/activity-bot/internal/worklog"
	"github.com/spf13/cobra"
)

var logLines int

func init() {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one scheduled invocation",
		RunE:  runRun,
	}
	rootCmd.AddCommand(runCmd)

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run continuously on the configured cron schedule",
		RunE:  runDaemon,
	}
	rootCmd.AddCommand(daemonCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show quota progress and recent runs",
		RunE:  runStatus,
	}
	rootCmd.AddCommand(statusCmd)

	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the tail of the activity log",
		RunE:  runLog,
	}
	logCmd.Flags().IntVar(&logLines, "lines", 20, "number of lines to show")
	rootCmd.AddCommand(logCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE:  runConfigInit,
	})
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// requireToken enforces the auth precondition before any other work
func requireToken() error {
	if _, ok := config.Token(); !ok {
		return fmt.Errorf("no auth token found: set GITHUB_TOKEN or GH_TOKEN")
	}
	return nil
}

func buildRunner(cfg *config.Config) (*orchestrator.Runner, func(), error) {
	loc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		return nil, nil, fmt.Errorf("load timezone %q: %w", cfg.Quota.Timezone, err)
	}

	catalog, err := activities.Load(cfg.General.CatalogPath)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.General.DataDir, 0755); err != nil {
		return nil, nil, err
	}
	store, err := runstore.New(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("open run store: %w", err)
	}

	log := worklog.New(cfg.WorklogPath())
	git := gitops.NewExecClient(cfg.General.RepoDir)
	trusted := config.TrustedAutomation()

	lc := lifecycle.NewController(git, log, lifecycle.Options{
		RepoDir:      cfg.General.RepoDir,
		BaseBranch:   cfg.General.BaseBranch,
		Remote:       cfg.General.Remote,
		ActivityFile: cfg.General.ActivityFile,
		Trusted:      trusted,
		StashSettle:  time.Duration(cfg.Review.StashSettleSeconds) * time.Second,
	})

	platform := review.NewGHClient(cfg.General.RepoDir)
	orch := orchestrator.New(platform, git, lc, log, cfg.General.Remote,
		time.Duration(cfg.Review.MergeSettleSeconds)*time.Second)

	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifications.SlackWebhook != "" {
		notifier = notify.NewSlackNotifier(cfg.Notifications.SlackWebhook)
	}

	r := &orchestrator.Runner{
		Lock:     lockfile.New(cfg.LockPath()),
		Quota:    quota.NewTracker(cfg.QuotaPath(), cfg.Quota.MinTarget, cfg.Quota.MaxTarget, loc, log),
		Log:      log,
		LC:       lc,
		Orch:     orch,
		Catalog:  catalog,
		Store:    store,
		Notifier: notifier,
		Trusted:  trusted,
	}
	return r, func() { store.Close() }, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.General.RepoDir == "" {
		return fmt.Errorf("repo_dir is not configured; run `activity-bot config init` and edit the config")
	}

	runner, closeFn, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	rec, err := runner.RunOnce()
	if err != nil {
		return err
	}

	switch rec.Outcome {
	case domain.OutcomeSkippedLock:
		fmt.Println("Another run is in progress, skipping")
	case domain.OutcomeSkippedQuota:
		fmt.Println("Daily quota reached, skipping")
	default:
		fmt.Printf("Run %s finished: %s", rec.ID[:8], rec.Outcome)
		if rec.PRNumber > 0 {
			fmt.Printf(" (#%d)", rec.PRNumber)
		}
		fmt.Println()
	}
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := requireToken(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.General.RepoDir == "" {
		return fmt.Errorf("repo_dir is not configured")
	}

	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	// Each run re-loads the config so the reload callback and an
	// in-flight run never share mutable state across goroutines, and
	// edits to every setting (not just the schedule) take effect.
	run := func() error {
		cur, err := config.Load(path)
		if err != nil {
			return err
		}
		runner, closeFn, err := buildRunner(cur)
		if err != nil {
			return err
		}
		defer closeFn()
		_, err = runner.RunOnce()
		return err
	}
	reload := func() (string, error) {
		next, err := config.Load(path)
		if err != nil {
			return "", err
		}
		return next.Daemon.Cron, nil
	}

	d, err := daemon.New(path, cfg.Daemon.Cron, run, reload)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Daemon started, schedule %q, next run %s\n",
		cfg.Daemon.Cron, d.NextRun().Format(time.RFC3339))
	return d.Start(ctx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := worklog.New(cfg.WorklogPath())
	loc := time.UTC
	if l, err := time.LoadLocation(cfg.Quota.Timezone); err == nil {
		loc = l
	}
	tracker := quota.NewTracker(cfg.QuotaPath(), cfg.Quota.MinTarget, cfg.Quota.MaxTarget, loc, log)
	state, err := tracker.Load()
	if err != nil {
		return err
	}

	today := time.Now().In(loc).Format("2006-01-02")
	fmt.Println("Quota")
	if state.Date == today {
		fmt.Printf("  today: %d of %d actions consumed\n", state.Consumed, state.Target)
	} else {
		fmt.Println("  today: not started yet")
	}

	store, err := runstore.New(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRecent(10)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded yet")
		return nil
	}

	fmt.Println("\nRecent runs")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  WHEN\tOUTCOME\tBRANCH\tPR")
	for _, r := range runs {
		pr := "-"
		if r.PRNumber > 0 {
			pr = fmt.Sprintf("#%d", r.PRNumber)
		}
		branch := r.Branch
		if branch == "" {
			branch = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", humanize.Time(r.StartedAt), r.Outcome, branch, pr)
	}
	return w.Flush()
}

func runLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lines, err := worklog.Tail(cfg.WorklogPath(), logLines)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		fmt.Println("Activity log is empty")
		return nil
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return nil
}
