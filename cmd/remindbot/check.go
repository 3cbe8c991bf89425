package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func checkConfigCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the config file and print the effective settings",
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
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config OK: %s\n", *cfgPath)
			fmt.Fprintf(out, "  timezone:         %s\n", s.Location)
			fmt.Fprintf(out, "  snooze choices:   %v\n", s.SnoozeChoices)
			fmt.Fprintf(out, "  pending ttl:      %s\n", s.PendingTTL)
			fmt.Fprintf(out, "  delivery workers: %d\n", s.DeliveryWorkers)
			fmt.Fprintf(out, "  allowed users:    %s\n", allowedLabel(s.AllowedUserIDs))
			fmt.Fprintf(out, "  notifier:         %d msg/s, timeout %s\n", s.RatePerSec, s.SendTimeout)
			fmt.Fprintf(out, "  storage:          %s %s\n", s.StorageDriver, s.StoragePath)
			fmt.Fprintf(out, "  log level:        %s\n", s.Logging.Level)
			return nil
		},
	}
}

func allowedLabel(ids []int64) string {
	if len(ids) == 0 {
		return "everyone"
	}
	return fmt.Sprint(ids)
}
