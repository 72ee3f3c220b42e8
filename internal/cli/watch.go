package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kweber84/erpimport/internal/syncer"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the capture+normalize cycle on a cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s := syncer.New(a.log, a.cfg, a.handle.DB)
			if err := s.Start(ctx); err != nil {
				return err
			}
			fmt.Printf("Watching %d suppliers (cron %q). Ctrl-C to stop.\n", len(a.cfg.Suppliers), a.cfg.WatchCron)

			<-ctx.Done()
			s.Stop()
			return nil
		},
	}
}
