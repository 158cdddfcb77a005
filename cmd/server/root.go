package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/and161185/noteskeeper/internal/config"
)

// flagValues hold command-line overrides; only flags set explicitly replace file values.
type flagValues struct {
	configPath  string
	addr        string
	opsAddr     string
	dsn         string
	secret      string
	dev         bool
	interpreter string
	script      string
	timeout     time.Duration
	filesRoot   string
	maxUpload   int64
}

func newRootCmd() *cobra.Command { return buildRoot(&flagValues{}) }

func buildRoot(fv *flagValues) *cobra.Command {
	root := &cobra.Command{
		Use:          "noteskeeper",
		Short:        "Web gateway for the notes and tasks backend",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&fv.configPath, "config", "c", "", "path to the YAML config file")
	pf.StringVar(&fv.dsn, "dsn", "", "PostgreSQL DSN; sessions stay in memory when empty")

	root.AddCommand(newServeCmd(fv), newMigrateCmd(fv), newVersionCmd())
	return root
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd.Flags(), fv, &cfg)
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, fv *flagValues, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = fv.addr })
	set("ops-addr", func() { cfg.OpsAddr = fv.opsAddr })
	set("dsn", func() { cfg.DatabaseDSN = fv.dsn })
	set("secret", func() { cfg.Secret = fv.secret })
	set("dev", func() { cfg.Dev = fv.dev })
	set("interpreter", func() { cfg.Gateway.Interpreter = fv.interpreter })
	set("script", func() { cfg.Gateway.Script = fv.script })
	set("timeout", func() { cfg.Gateway.Timeout = fv.timeout })
	set("files-root", func() { cfg.Files.Root = fv.filesRoot })
	set("max-upload", func() { cfg.Upload.MaxSize = fv.maxUpload })
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "noteskeeper %s (built %s)\n", version, buildDate)
			return err
		},
	}
}
