package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	appointmentsrepo "clinic/internal/appointments/repository"
	appointmentsservice "clinic/internal/appointments/service"
	bookingvalidator "clinic/internal/appointments/validator"
	discoveryrepo "clinic/internal/discovery/repository"
	discoveryservice "clinic/internal/discovery/service"
	discoveryvalidator "clinic/internal/discovery/validator"
	mongoMigration "clinic/internal/migrations/mongo"
	"clinic/internal/slots"
	"clinic/pkg/config"

	"github.com/spf13/cobra"
)

const (
	JobName        = "clinicctl"
	commandTimeout = 60 * time.Second
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Operator tooling for the clinic booking service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().Bool("json", false, "Print JSON instead of a table")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(occupiedCmd())
	rootCmd.AddCommand(discoveryCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect loads the job configuration and opens the Mongo client. The
// returned func releases it.
func connect() (*config.Config, func(), error) {
	cfg := config.LoadJob(JobName)
	if cfg.StoreBackend != config.StoreMongo {
		return nil, nil, fmt.Errorf("clinicctl needs %s=%s, got %q", config.EnvStoreBackend, config.StoreMongo, cfg.StoreBackend)
	}
	cfg.SetMongo()
	return cfg, cfg.GracefulShutdown, nil
}

func appointmentService(cfg *config.Config) (appointmentsservice.AppointmentService, *slots.Calendar) {
	calendar := slots.NewCalendar(cfg.Location, cfg.BookingWindowDays, cfg.SlotTimes)
	svc := appointmentsservice.NewAppointmentService(
		appointmentsrepo.NewMongoReservationRepository(cfg),
		nil,
		calendar,
		bookingvalidator.NewBookingValidator(cfg.Log),
		nil,
		nil,
		cfg,
	)
	return svc, calendar
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, schema validators and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Show the booking window with booked flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc, _ := appointmentService(cfg)
			days, err := svc.Availability(ctx)
			if err != nil {
				return err
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), days)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLOT\tDATE\tTIME\tSTATUS")
			for _, day := range days {
				for _, slot := range day.Slots {
					status := "open"
					if slot.Booked {
						status = "booked"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", slot.SlotID, day.DisplayDate, slot.Time, status)
				}
			}
			return tw.Flush()
		},
	}
}

func occupiedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "occupied",
		Short: "List occupied slot ids in the current window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc, calendar := appointmentService(cfg)
			ids, err := svc.OccupiedSlots(ctx)
			if err != nil {
				return err
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), ids)
			}
			from, to := calendar.Window()
			fmt.Fprintf(cmd.OutOrStdout(), "window %s .. %s (%s), %d occupied\n",
				from.Format(slots.DateLayout), to.Format(slots.DateLayout), calendar.Location(), len(ids))
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func discoveryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discovery",
		Short: "Inspect discovery call requests",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovery call requests, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			cfg, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			svc := discoveryservice.NewDiscoveryService(
				discoveryrepo.NewMongoDiscoveryRepository(cfg),
				discoveryvalidator.NewDiscoveryValidator(cfg.Log),
				nil,
				nil,
				cfg,
			)
			requests, total, err := svc.List(ctx, limit, offset)
			if err != nil {
				return err
			}

			if asJSON(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"data": requests, "total_count": total})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REQUESTED\tNAME\tEMAIL\tPREFERRED\tUPI REF\tSTATUS")
			for _, r := range requests {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.RequestedAt.In(cfg.Location).Format("2006-01-02 15:04"),
					r.Name, r.Email, r.PreferredDate, r.UPIReference, r.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d\n", len(requests), total)
			return nil
		},
	}
	listCmd.Flags().Int("limit", discoveryrepo.DefaultLimit, "Maximum number of requests to show")
	listCmd.Flags().Int("offset", 0, "Number of requests to skip")
	cmd.AddCommand(listCmd)

	return cmd
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
