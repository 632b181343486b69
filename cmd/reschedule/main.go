package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-appointment-scheduling/internal/app"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logger"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Move a doctor's appointments out of a leave window",
		Long: "Moves every appointment of the doctor dated between --from and --to (inclusive)\n" +
			"to the first following day on which it fits, keeping its time of day.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, _ := cmd.Flags().GetUint32("doctor")
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			return run(cmd, doctor, from, to)
		},
	}
	cmd.Flags().Uint32("doctor", 0, "Doctor id going on leave")
	cmd.Flags().String("from", "", "First day of the leave, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Last day of the leave, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("doctor")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func run(cmd *cobra.Command, doctor uint32, from, to string) error {
	start, err := schedule.ParseDate(from)
	if err != nil {
		return fmt.Errorf("--from must be YYYY-MM-DD: %w", err)
	}
	end, err := schedule.ParseDate(to)
	if err != nil {
		return fmt.Errorf("--to must be YYYY-MM-DD: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	log = log.With().Str("service", "reschedule").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	moved, err := a.Service.MassReschedule(ctx, appointment.MassRescheduleCommand{
		DoctorID:  doctor,
		StartDate: start,
		EndDate:   end,
	})

	var rerr *appointment.RescheduleError
	if errors.As(err, &rerr) {
		printMoves(cmd, rerr.Committed)
		return err
	}
	if err != nil {
		return err
	}

	printMoves(cmd, moved)
	return nil
}

func printMoves(cmd *cobra.Command, moved []appointment.AppointmentDetail) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s %-20s %-20s %-6s %s\n", "ID", "START", "END", "ROOM", "TYPE")
	for _, d := range moved {
		fmt.Fprintf(out, "%-36s %-20s %-20s %-6d %s\n",
			d.ID,
			d.StartTime.Format(schedule.DateTimeLayout),
			d.EndTime.Format(schedule.DateTimeLayout),
			d.RoomNr,
			d.Type,
		)
	}
	fmt.Fprintf(out, "%d appointment(s) moved\n", len(moved))
}
