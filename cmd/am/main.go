package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/attention-matters/am/internal/config"
	"github.com/attention-matters/am/internal/logger"
)

// newCLIRand gives each one-shot CLI invocation its own seeded source;
// the daemon and tests seed deterministically instead.
func newCLIRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

var (
	projectDir string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "am",
		Short: "attention-matters: a persistent associative memory for AI coding assistants",
		Long:  "A physics-inspired geometric memory engine: words live on the unit 3-sphere, queries activate and drift them, and recall is composed from whatever settles near the query.",
	}

	rootCmd.PersistentFlags().StringVar(&projectDir, "project", "", "project directory (defaults to CWD / nearest .attention-matters)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd(),
		queryCmd(),
		ingestCmd(),
		statsCmd(),
		exportCmd(),
		importCmd(),
		inspectCmd(),
		syncCmd(),
		gcCmd(),
		forgetCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogging() {
	level := "info"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to init logger: %v\n", err)
	}
}

func loadConfig() (*config.Manager, error) {
	userDir, err := config.GetUserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user config dir: %w", err)
	}

	proj := projectDir
	if proj == "" {
		proj, err = config.GetProjectDir()
		if err != nil {
			return nil, fmt.Errorf("resolve project dir: %w", err)
		}
	}

	m := config.NewManager()
	if err := m.Load(userDir, proj); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return m, nil
}
