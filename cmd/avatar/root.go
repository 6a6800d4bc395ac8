package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile string
	debug   bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "avatar",
		Short:         "Calibrate and animate humanoid avatar rigs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return err
			}
			if c.debug {
				cfg.Logger.Level = "debug"
			}
			log.Init(cfg.Logger)
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file (default is ./avatar.yaml)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable verbose debug logging")

	root.AddCommand(
		newRunCmd(c),
		newCalibrateCmd(c),
		newRigsCmd(),
	)
	return root
}

// rigFlags lets a subcommand override the configured rig.
type rigFlags struct {
	rig     string
	rigFile string
}

func (f *rigFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.rig, "rig", "", "Embedded rig template (see 'avatar rigs')")
	cmd.Flags().StringVar(&f.rigFile, "rig-file", "", "Rig description file, overrides --rig")
}

func (f *rigFlags) apply(cfg *config.Config) {
	if f.rig != "" {
		cfg.Render.Rig = f.rig
		cfg.Render.RigFile = ""
	}
	if f.rigFile != "" {
		cfg.Render.RigFile = f.rigFile
	}
}
