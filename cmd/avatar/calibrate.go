package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/pose"
	"github.com/teslashibe/go-avatar/pkg/rig"
)

func newCalibrateCmd(c *cli) *cobra.Command {
	var (
		rf     rigFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate a rig and print the chosen arm offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf.apply(c.cfg)
			return calibrate(cmd.OutOrStdout(), c.cfg, asJSON)
		},
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the calibration as JSON")
	return cmd
}

func calibrate(w io.Writer, cfg *config.Config, asJSON bool) error {
	def, err := cfg.LoadRig()
	if err != nil {
		return err
	}
	a, err := avatar.Load(def, cfg.AvatarOptions())
	if err != nil {
		return err
	}
	defer a.Dispose()

	cal := a.Calibration()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cal)
	}

	fmt.Fprintf(w, "rig %s\n", def.Name)
	for _, side := range rig.Sides {
		printArm(w, side, cal.Side(side))
	}
	return nil
}

func printArm(w io.Writer, side rig.Side, p pose.ArmPose) {
	if !p.Calibrated {
		fmt.Fprintf(w, "%-5s  not calibrated\n", side)
		return
	}
	fmt.Fprintf(w, "%-5s  elbow y %.3f -> %.3f\n", side, p.RestElbowY, p.ElbowY)
	for i, role := range rig.ArmRoles(side) {
		pitch, yaw, roll := p.Offsets.At(i).Degrees()
		fmt.Fprintf(w, "       %-14s pitch %7.2f  yaw %7.2f  roll %7.2f\n", role, pitch, yaw, roll)
	}
}
