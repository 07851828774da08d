package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/02loveslollipop/gymfence/services/api/db"
	"github.com/02loveslollipop/gymfence/services/api/geofence"
)

// newRootCmd wires the gymctl commands to their own viper instance.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "gymctl",
		Short:         "Query gyms, raids and team statistics from a MAD-style database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile == "" {
				return nil
			}
			v.SetConfigFile(configFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a config file (json, yaml or toml)")
	flags.String("driver", "postgres", "Database driver: postgres, mysql or sqlite")
	flags.String("database-url", "", "Database connection string")
	flags.Duration("timeout", 30*time.Second, "Query timeout")

	_ = v.BindPFlag("database.driver", flags.Lookup("driver"))
	_ = v.BindPFlag("database.url", flags.Lookup("database-url"))
	_ = v.BindPFlag("timeout", flags.Lookup("timeout"))

	v.SetEnvPrefix("gymctl")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	rootCmd.AddCommand(
		newFenceCmd(v),
		newRectangleCmd(v),
		newTeamsCmd(v),
		newGymCmd(v),
	)
	return rootCmd
}

// withStore opens the configured database for the duration of fn.
func withStore(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, store *db.Store) error) error {
	url := v.GetString("database.url")
	if url == "" {
		return errors.New("database url is required (--database-url or GYMCTL_DATABASE_URL)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()

	store, err := db.Open(ctx, v.GetString("database.driver"), url)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store)
}

func newFenceCmd(v *viper.Viper) *cobra.Command {
	var (
		excludeFile string
		spherical   bool
	)

	cmd := &cobra.Command{
		Use:   "fence <file>",
		Short: "Print the locations of the gyms inside a geofence file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := geofence.LoadFile(args[0], excludeFile)
			if err != nil {
				return err
			}
			var fence db.Geofence = def.Planar()
			if spherical {
				fence = def.Spherical()
			}

			return withStore(cmd, v, func(ctx context.Context, store *db.Store) error {
				locations, err := db.LocationsInFence(ctx, store, fence)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, loc := range locations {
					fmt.Fprintln(out, loc)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&excludeFile, "exclude", "x", "", "Geofence file whose areas are excluded")
	cmd.Flags().BoolVar(&spherical, "spherical", false, "Use geodesic polygon edges")
	return cmd
}

func newRectangleCmd(v *viper.Viper) *cobra.Command {
	var ne, sw, oldNE, oldSW string
	var since int64

	cmd := &cobra.Command{
		Use:   "rectangle",
		Short: "Print gyms with details and raids inside a rectangle as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				filter db.RectangleFilter
				err    error
			)
			if filter.Current, err = rectangleFlags("ne", ne, "sw", sw); err != nil {
				return err
			}
			if filter.Previous, err = rectangleFlags("old-ne", oldNE, "old-sw", oldSW); err != nil {
				return err
			}
			if since != 0 {
				t := time.Unix(since, 0).UTC()
				filter.Since = &t
			}

			return withStore(cmd, v, func(ctx context.Context, store *db.Store) error {
				gyms, err := db.GymsInRectangle(ctx, store, filter)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), gyms)
			})
		},
	}

	cmd.Flags().StringVar(&ne, "ne", "", "North-east corner as lat,lng")
	cmd.Flags().StringVar(&sw, "sw", "", "South-west corner as lat,lng")
	cmd.Flags().StringVar(&oldNE, "old-ne", "", "North-east corner of the previous rectangle")
	cmd.Flags().StringVar(&oldSW, "old-sw", "", "South-west corner of the previous rectangle")
	cmd.Flags().Int64Var(&since, "since", 0, "Only gyms scanned at or after this unix time (0 disables)")
	cmd.MarkFlagsRequiredTogether("ne", "sw")
	cmd.MarkFlagsRequiredTogether("old-ne", "old-sw")
	return cmd
}

func rectangleFlags(neName, ne, swName, sw string) (*db.Rectangle, error) {
	if ne == "" && sw == "" {
		return nil, nil
	}
	neLoc, err := geofence.ParseLocation(ne)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", neName, err)
	}
	swLoc, err := geofence.ParseLocation(sw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", swName, err)
	}
	return &db.Rectangle{NE: neLoc, SW: swLoc}, nil
}

func newTeamsCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "Print the number of gyms per team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, func(ctx context.Context, store *db.Store) error {
				counts, err := db.GymCountByTeam(ctx, store)
				if err != nil {
					return err
				}
				labels := make([]string, 0, len(counts))
				for label := range counts {
					labels = append(labels, label)
				}
				sort.Strings(labels)

				out := cmd.OutOrStdout()
				for _, label := range labels {
					fmt.Fprintf(out, "%s\t%s\n", label, strconv.FormatInt(counts[label], 10))
				}
				return nil
			})
		},
	}
}

func newGymCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "gym <id>",
		Short: "Print a single gym as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, v, func(ctx context.Context, store *db.Store) error {
				gym, err := db.GetGym(ctx, store, args[0])
				if err != nil {
					return err
				}
				if gym == nil {
					return fmt.Errorf("gym %s not found", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), gym)
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
