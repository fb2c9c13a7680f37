package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/gatekit/pkg/logger"
	"github.com/dmitrymomot/gatekit/pkg/redis"
	"github.com/dmitrymomot/gatekit/pkg/tier"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tierctl",
		Short:         "Inspect and write group subscription tiers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(getCmd(a))
	cmd.AddCommand(setCmd(a))
	cmd.AddCommand(watchCmd(a))
	cmd.AddCommand(snapshotCmd(a))
	cmd.AddCommand(pingCmd(a))
	return cmd
}

type recordView struct {
	Group     string    `json:"group"`
	Tier      tier.Tier `json:"subscriptionTier"`
	UpdatedAt time.Time `json:"tierUpdatedAt,omitzero"`
}

func (a *app) print(asJSON bool, v recordView) error {
	if asJSON {
		return json.NewEncoder(a.out).Encode(v)
	}
	if v.UpdatedAt.IsZero() {
		_, err := fmt.Fprintf(a.out, "%s\t%s\n", v.Group, v.Tier)
		return err
	}
	_, err := fmt.Fprintf(a.out, "%s\t%s\t%s\n", v.Group, v.Tier, v.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func getCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "get [group]",
		Short: "Print the stored tier of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers, _, closeFn, err := a.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rec, err := tiers.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(jsonOutput, recordView{Group: args[0], Tier: rec.Tier, UpdatedAt: rec.UpdatedAt})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func setCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set [group] [free|premium|family]",
		Short: "Write the tier of a group, as the payment webhook would",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tier.Parse(args[1])
			if err != nil {
				return err
			}
			tiers, _, closeFn, err := a.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			rec := tier.Record{Tier: t, UpdatedAt: time.Now()}
			if err := tiers.Update(cmd.Context(), args[0], rec); err != nil {
				return err
			}
			a.log.InfoContext(cmd.Context(), "tier written", logger.GroupID(args[0]), logger.Tier(t))
			return a.print(false, recordView{Group: args[0], Tier: t, UpdatedAt: rec.UpdatedAt})
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "watch [group]",
		Short: "Stream tier changes of a group until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tiers, _, closeFn, err := a.stores(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			records := make(chan tier.Record, 8)
			unsub, err := tiers.Watch(ctx, args[0], func(rec tier.Record) {
				select {
				case records <- rec:
				case <-ctx.Done():
				}
			})
			if err != nil {
				return err
			}
			defer unsub()

			for {
				select {
				case <-ctx.Done():
					return nil
				case rec := <-records:
					if err := a.print(jsonOutput, recordView{Group: args[0], Tier: rec.Tier, UpdatedAt: rec.UpdatedAt}); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func snapshotCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [uid]",
		Short: "Print the cached tier snapshot of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, snapshots, closeFn, err := a.stores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := snapshots.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(a.out).Encode(snap)
		},
	}
}

func pingCmd(a *app) *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check Redis and optionally count live tier watchers of a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, cfg, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer client.Close()

			health, err := redis.Healthcheck(client)(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(a.out, "ok\t%s\n", health.Latency.Round(time.Microsecond)); err != nil {
				return err
			}
			if group == "" {
				return nil
			}

			n, err := redis.NewTierStore(client, redis.WithKeyPrefix(cfg.KeyPrefix)).Watchers(cmd.Context(), group)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "%s\twatchers=%d\n", group, n)
			return err
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "group whose tier channel to inspect")
	return cmd
}
