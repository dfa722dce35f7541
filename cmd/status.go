package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tracker/persist"
)

func statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show autosave and sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			watch, _ := cmd.Flags().GetBool("watch")
			return withSession(cmd.Context(), func(s *session) error {
				printState(s.pipeline.State())
				if !watch {
					return nil
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				unsubscribe := s.pipeline.OnStateChange(func(state persist.State) {
					_, _ = fmt.Fprintln(color.Output)
					printState(state)
				})
				defer unsubscribe()
				s.prober.Start()
				defer s.prober.Stop()

				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().BoolP("watch", "w", false, "keep probing the server and print every status change")
	return cmd
}

func syncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "push pending local changes to the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return withSession(cmd.Context(), func(s *session) error {
				if !s.signal.Online() {
					printState(s.pipeline.State())
					return fmt.Errorf("server %s is unreachable", cfg.RemoteURL)
				}
				err := s.pipeline.SyncOutbox(cmd.Context(), force)
				printState(s.pipeline.State())
				return err
			})
		},
	}
	cmd.Flags().Bool("force", false, "overwrite the server copy even when it changed")
	return cmd
}

func resolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "resolve a sync conflict",
		RunE: func(cmd *cobra.Command, args []string) error {
			acceptRemote, _ := cmd.Flags().GetBool("accept-remote")
			keepLocal, _ := cmd.Flags().GetBool("keep-local")
			return withSession(cmd.Context(), func(s *session) error {
				state := s.pipeline.State()
				if state.Conflict == nil {
					printState(state)
					return nil
				}
				if !acceptRemote && !keepLocal {
					printState(state)
					return errors.New("choose --accept-remote or --keep-local")
				}

				var err error
				if acceptRemote {
					err = s.pipeline.AcceptRemote(cmd.Context())
				} else {
					err = s.pipeline.KeepLocal(cmd.Context())
				}
				printState(s.pipeline.State())
				return err
			})
		},
	}
	cmd.Flags().Bool("accept-remote", false, "replace local segments with the cloud copy")
	cmd.Flags().Bool("keep-local", false, "overwrite the cloud copy with local segments")
	cmd.MarkFlagsMutuallyExclusive("accept-remote", "keep-local")
	return cmd
}
