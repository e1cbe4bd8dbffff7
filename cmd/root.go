package cmd

import (
	"context"
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcore "github.com/projecteru2/pullwatch/cmd/core"
	cmdimages "github.com/projecteru2/pullwatch/cmd/images"
	cmdothers "github.com/projecteru2/pullwatch/cmd/others"
	"github.com/projecteru2/pullwatch/config"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pullwatch",
		Short:         "pullwatch - image puller with per-layer progress",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(commandContext(cmd))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path")
	flags.String("root-dir", "", "root data directory")
	flags.Int("pool-size", 0, "concurrent layer fetches")
	flags.Int("max-tasks", 0, "max background progress tasks")
	flags.String("display", "", "progress display: auto, bar or log")
	flags.String("platform", "", "platform to pull, os/arch[/variant]")
	flags.String("log-level", "", "log level")

	_ = viper.BindPFlag("root_dir", flags.Lookup("root-dir"))
	_ = viper.BindPFlag("pool_size", flags.Lookup("pool-size"))
	_ = viper.BindPFlag("max_tasks", flags.Lookup("max-tasks"))
	_ = viper.BindPFlag("display", flags.Lookup("display"))
	_ = viper.BindPFlag("platform", flags.Lookup("platform"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))

	viper.SetEnvPrefix("PULLWATCH")
	viper.AutomaticEnv()

	base := cmdcore.BaseHandler{ConfProvider: func() *config.Config { return conf }}

	for _, c := range cmdimages.Commands(cmdimages.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}
	for _, c := range cmdothers.Commands(cmdothers.Handler{BaseHandler: base}) {
		cmd.AddCommand(c)
	}

	return cmd
}()

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	_ = viper.ReadInConfig() // optional; missing file is OK

	// Bound flags that were not given fall back to these, not to their
	// own zero defaults.
	viper.SetDefault("root_dir", conf.RootDir)
	viper.SetDefault("pool_size", conf.PoolSize)
	viper.SetDefault("max_tasks", conf.MaxTasks)
	viper.SetDefault("display", conf.Display)
	viper.SetDefault("platform", conf.Platform)
	viper.SetDefault("log.level", conf.Log.Level)

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := conf.Normalize(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return log.SetupLog(ctx, &conf.Log, "")
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := newCommandContext()
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
