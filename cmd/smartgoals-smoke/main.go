package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartgoals/smartgoals/tests/e2e/config"
	"github.com/smartgoals/smartgoals/tests/e2e/helpers"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// checkRunner runs one check in its own browser session.
type checkRunner func(cfg *config.TestConfig, check helpers.Check) error

func main() {
	if err := newRootCmd(config.NewViper(), runInSession).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper, run checkRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartgoals-smoke",
		Short: "Run the smart goals browser smoke checks against a running frontend",
		Long: `Runs the smart goals smoke checks once, each in a fresh browser session:

  page loads             #navbar becomes visible on /smartgoals
  navbar link is active  the "smart goals" link has class exactly "active"

Settings come from flags, then the environment, then .env. A --base-url
passed on the command line also beats RAW_BASE_URL. Local port
autodetection only runs when no base URL was configured at all.
Exits non-zero when any check fails.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("base-url") {
				v.Set(config.KeyRawBaseURL, "")
			}
			err := runSmoke(cmd.OutOrStdout(), config.FromViper(v), run)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.String("base-url", "", "Frontend base URL the route is resolved against (default "+config.DefaultBaseURL+")")
	flags.String("browser", config.DefaultBrowser, "Browser engine: chromium, firefox or webkit")
	flags.Bool("headless", true, "Run the browser headless")
	flags.Bool("autodetect", true, "Try local ports when no base URL is configured and the default does not answer")
	flags.Bool("screenshots", true, "Save a screenshot when a check fails")
	flags.String("timeout", config.DefaultTimeout.String(), "Navigation and action timeout")
	flags.String("expect-timeout", config.DefaultExpectTimeout.String(), "Assertion polling timeout")
	flags.String("results-dir", config.DefaultResultsDir, "Directory for screenshots and videos")

	for key, name := range map[string]string{
		config.KeyBaseURL:       "base-url",
		config.KeyBrowser:       "browser",
		config.KeyHeadless:      "headless",
		config.KeyAutodetect:    "autodetect",
		config.KeyScreenshots:   "screenshots",
		config.KeyTimeout:       "timeout",
		config.KeyExpectTimeout: "expect-timeout",
		config.KeyResultsDir:    "results-dir",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

func runSmoke(w io.Writer, cfg *config.TestConfig, run checkRunner) error {
	pass := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)

	fmt.Fprintf(w, "smart goals smoke against %s (%s)\n", cfg.URL(helpers.SmartGoalsRoute), cfg.Browser)
	failed := 0
	for _, check := range helpers.SmartGoalsChecks {
		start := time.Now()
		err := run(cfg, check)
		elapsed := time.Since(start).Round(time.Millisecond)
		if err != nil {
			failed++
			fail.Fprint(w, "FAIL")
			fmt.Fprintf(w, " %s (%s)\n  %v\n", check.Name, elapsed, err)
			continue
		}
		pass.Fprint(w, "PASS")
		fmt.Fprintf(w, " %s (%s)\n", check.Name, elapsed)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d smoke checks failed", failed, len(helpers.SmartGoalsChecks))
	}
	return nil
}

func runInSession(cfg *config.TestConfig, check helpers.Check) error {
	session := helpers.NewSession(cfg, check.Name)
	defer session.TearDown()

	if err := session.Setup(); err != nil {
		return fmt.Errorf("failed to setup browser: %w", err)
	}
	if err := helpers.RunCheck(session, check); err != nil {
		session.MarkFailed()
		return err
	}
	return nil
}
