package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/speech"
	"github.com/teslashibe/go-avatar/pkg/web"
)

// runOptions are the run command's flags.
type runOptions struct {
	rig    rigFlags
	web    bool
	port   string
	fps    float64
	say    string
	runFor time.Duration
}

func newRunCmd(c *cli) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a rig and run the render loop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.rig.apply(c.cfg)
			if cmd.Flags().Changed("web") {
				c.cfg.Web.Enabled = opts.web
			}
			if opts.port != "" {
				c.cfg.Web.Port = opts.port
			}
			if opts.fps > 0 {
				c.cfg.Render.FPS = opts.fps
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, c.cfg, opts)
		},
	}

	opts.rig.register(cmd)
	cmd.Flags().BoolVar(&opts.web, "web", false, "Serve the dashboard and frame stream")
	cmd.Flags().StringVar(&opts.port, "port", "", "Dashboard port")
	cmd.Flags().Float64Var(&opts.fps, "fps", 0, "Render loop rate")
	cmd.Flags().StringVar(&opts.say, "say", "", "Talk for as long as this text would take to speak")
	cmd.Flags().DurationVar(&opts.runFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	def, err := cfg.LoadRig()
	if err != nil {
		return err
	}

	a, err := avatar.Load(def, cfg.AvatarOptions())
	if err != nil {
		return err
	}
	defer a.Dispose()

	if cfg.Web.Enabled {
		srv := web.NewServer(cfg.Web)
		srv.Attach(a)
		a.SetRenderer(srv)
		srv.StartAsync()
		defer func() {
			if err := srv.Shutdown(); err != nil {
				log.Warn("web shutdown failed", "error", err)
			}
		}()
	}

	if opts.say != "" {
		session, err := a.StartTalking(speech.Duration(opts.say))
		if err != nil {
			return err
		}
		// Backstop in case the timed expiry is missed.
		safety := time.AfterFunc(speech.StopAfter(opts.say), func() {
			if err := a.StopTalking(); err != nil {
				log.Debug("safety stop skipped", "session", session, "error", err)
			}
		})
		defer safety.Stop()
		log.Info("talking", "session", session, "duration", speech.Duration(opts.say))
	}

	if opts.runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.runFor)
		defer cancel()
	}

	log.Info("render loop started", "id", a.ID(), "fps", cfg.Render.FPS, "web", cfg.Web.Enabled)
	err = a.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	st := a.Status()
	log.Info("render loop stopped", "id", st.ID, "frames", st.Frames)
	return err
}
