package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/codr/internal/languages"
	"github.com/skelly-dev/codr/internal/server"
)

func RunServe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd, "")
	if err != nil {
		return err
	}
	addr, err := OptionalStringFlag(cmd, "addr")
	if err != nil {
		return err
	}
	if addr != "" {
		e.cfg.Server.Addr = addr
	}
	watch, err := OptionalBoolFlag(cmd, "watch", false)
	if err != nil {
		return err
	}
	if watch {
		e.cfg.Server.Watch = true
	}
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	srv, err := server.New(e.cfg, e.root, languages.NewDefaultRegistry(), e.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
