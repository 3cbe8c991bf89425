package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

func auditCmd(cfgPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the most recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			s, err := cfg.Resolve()
			if err != nil {
				return err
			}
			st, err := storage.Open(storage.Config{
				Driver:      s.StorageDriver,
				Path:        s.StoragePath,
				BusyTimeout: s.StorageBusyTimeout,
			}, logx.Nop())
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("audit storage is disabled (storage.driver is none)")
			}
			defer st.Close()

			entries, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-24s owner=%d", e.At.In(s.Location).Format(time.DateTime), e.Type, e.Owner)
				if e.TaskID != 0 {
					fmt.Fprintf(out, " task=%d", e.TaskID)
				}
				if e.Minutes != 0 {
					fmt.Fprintf(out, " minutes=%d", e.Minutes)
				}
				if !e.FireAt.IsZero() {
					fmt.Fprintf(out, " fire_at=%s", e.FireAt.In(s.Location).Format(time.DateTime))
				}
				if e.Error != "" {
					fmt.Fprintf(out, " err=%q", e.Error)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show")
	return cmd
}
