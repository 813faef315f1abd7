package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Xazziri/Trivy-dashboard/internal/config"
	"github.com/Xazziri/Trivy-dashboard/internal/executor"
	"github.com/Xazziri/Trivy-dashboard/internal/log"
	"github.com/Xazziri/Trivy-dashboard/pkg/connector"
	"github.com/Xazziri/Trivy-dashboard/pkg/enumerate"
	"github.com/Xazziri/Trivy-dashboard/pkg/metrics"
	"github.com/Xazziri/Trivy-dashboard/pkg/report"
	"github.com/Xazziri/Trivy-dashboard/pkg/runner"
	"github.com/Xazziri/Trivy-dashboard/pkg/scan"
	"github.com/Xazziri/Trivy-dashboard/pkg/types"
)

// errMissingInput marks a startup validation failure: the run aborts
// before any scanning.
var errMissingInput = errors.New("missing required input")

// Execute is the main entry point for the dashboard.
func Execute(args []string) {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command, which runs one full scan.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trivy-dashboard",
		Short: "Scan a fleet of Docker hosts with Trivy and build a static HTML dashboard.",
		Long: `trivy-dashboard enumerates the images on each configured Docker host
(local or SSH-reachable), scans every image once with Trivy, and writes
a static HTML dashboard summarizing the results.`,
		RunE:          runScan,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := exec.LookPath("trivy"); err != nil {
				return fmt.Errorf("%w: trivy is not installed: %w", errMissingInput, err)
			}
			return nil
		},
	}
	rootCmd.Version = buildVersion()
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().String("hosts-file", "", "Path to the host list file (one address per line, # comments)")
	rootCmd.PersistentFlags().String("template", "", "Path to the Trivy HTML report template")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "Directory for generated reports and the dashboard")
	rootCmd.PersistentFlags().String("local-marker", "", "Address treated as the local machine")
	rootCmd.PersistentFlags().String("ssh-user", "", "User for SSH connections to remote hosts")
	rootCmd.PersistentFlags().Int("probe-timeout", 0, "Connect timeout in seconds for the reachability probe")
	rootCmd.PersistentFlags().String("min-trivy-version", "", "Semver constraint the installed trivy must satisfy")

	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

// loadConfig merges the optional config file with flag overrides.
// Flags win over file values; defaults fill the rest.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New()
	if path, _ := cmd.Flags().GetString("config"); path != "" { //nolint:errcheck
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errMissingInput, err)
		}
		cfg = loaded
	}

	stringFlags := map[string]*string{
		"hosts-file":        &cfg.HostsFile,
		"template":          &cfg.Template,
		"output-dir":        &cfg.OutputDir,
		"local-marker":      &cfg.LocalMarker,
		"ssh-user":          &cfg.SSHUser,
		"min-trivy-version": &cfg.MinTrivyVersion,
	}
	for name, dst := range stringFlags {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name) //nolint:errcheck
		}
	}
	if cmd.Flags().Changed("probe-timeout") {
		cfg.ProbeTimeoutSeconds, _ = cmd.Flags().GetInt("probe-timeout") //nolint:errcheck
	}
	return cfg, nil
}

// runScan performs one full dashboard run. The process exits right
// after, so no metrics handler is wired; scheduled runs under serve
// carry one.
func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := log.NewLogger(ctx)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	run, hosts, err := buildRunner(ctx, logger, cfg, nil)
	if err != nil {
		return err
	}
	path, err := run.Run(ctx, hosts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dashboard written to %s\n", path)
	return nil
}

// buildRunner validates the startup inputs and wires the full scan
// pipeline. All validation failures abort before any scanning. The
// metrics handler may be nil when the run has no metrics endpoint.
func buildRunner(ctx context.Context, logger types.Logger, cfg *config.Config,
	m *metrics.Metrics) (*runner.Runner, []string, error) {
	if _, err := os.Stat(cfg.Template); err != nil {
		return nil, nil, fmt.Errorf("%w: template file %s: %w", errMissingInput, cfg.Template, err)
	}
	hosts, err := config.LoadHosts(cfg.HostsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errMissingInput, err)
	}
	if hasRemote(hosts, cfg.LocalMarker) {
		for _, bin := range []string{"ssh", "scp"} {
			if _, err := exec.LookPath(bin); err != nil {
				return nil, nil, fmt.Errorf("%w: %s is required for remote hosts: %w", errMissingInput, bin, err)
			}
		}
	}

	commandExecutor := executor.NewCommandExecutor()
	if err := scan.CheckVersion(ctx, commandExecutor, cfg.MinTrivyVersion); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errMissingInput, err)
	}

	conn := connector.New(commandExecutor, logger, cfg.LocalMarker, cfg.SSHUser,
		time.Duration(cfg.ProbeTimeoutSeconds)*time.Second)
	enum := enumerate.New(conn, logger)
	scanner := scan.NewExecutor(conn, logger, cfg.OutputDir, cfg.Template)
	renderer, err := report.NewRenderer(logger, cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}

	return runner.New(conn, enum, scanner, renderer, logger, m, cfg.OutputDir), hosts, nil
}

func hasRemote(hosts []string, localMarker string) bool {
	for _, h := range hosts {
		if h != localMarker {
			return true
		}
	}
	return false
}
