package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var (
	// Query flags
	queryYear   int
	queryGroups []string
	queryKey    string
	queryFrom   int
	queryTo     int
)

var selectionsCmd = &cobra.Command{
	Use:   "selections",
	Short: "Print the sorted selection keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, _, svc, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Stop()

		keys, err := svc.Selections(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), keys)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Print the rating-bucketed comparison for one year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, svc, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Stop()

		year := cfg.SnapshotYear
		if cmd.Flags().Changed("year") {
			year = queryYear
		}
		groups := cfg.DefaultGroups
		if len(queryGroups) > 0 {
			groups = queryGroups
		}
		res, err := svc.Aggregate(cmd.Context(), year, groups)
		if err != nil {
			return err
		}
		errs := make(map[string]string, len(res.Errors))
		for name, gerr := range res.Errors {
			errs[name] = gerr.Error()
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"year":   res.Year,
			"order":  res.Order,
			"groups": res.Groups,
			"errors": errs,
		})
	},
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Print one country's metric series",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, svc, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Stop()

		from, to := cfg.SeriesFrom, cfg.SeriesTo
		if cmd.Flags().Changed("from") {
			from = queryFrom
		}
		if cmd.Flags().Changed("to") {
			to = queryTo
		}
		series, err := svc.Series(cmd.Context(), queryKey, from, to)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), series)
	},
}

func init() {
	compareCmd.Flags().IntVar(&queryYear, "year", 0, "snapshot year (default snapshot_year)")
	compareCmd.Flags().StringSliceVar(&queryGroups, "group", nil, "group to compare; repeatable (default default_groups)")

	seriesCmd.Flags().StringVar(&queryKey, "key", "", `selection key, e.g. "Africa - Kenya"`)
	seriesCmd.Flags().IntVar(&queryFrom, "from", 0, "first year (default series_from)")
	seriesCmd.Flags().IntVar(&queryTo, "to", 0, "last year (default series_to)")
	_ = seriesCmd.MarkFlagRequired("key")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
