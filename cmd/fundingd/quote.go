package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carelink/funding-engine/config"
	"github.com/carelink/funding-engine/factory"
	"github.com/carelink/funding-engine/funding"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var localLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

func quoteCmd() *cobra.Command {
	var start, end, ratio, category, customRate string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price one shift",
		Example: `  fundingd quote --start 2025-03-03T10:00 --end 2025-03-03T18:00
  fundingd quote --start 2025-03-03T22:00 --end 2025-03-04T07:00 --ratio 1:2 --category SIL`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			pricing, err := factory.LoadPricing(cfg.Pricing.File)
			if err != nil {
				return fmt.Errorf("failed to load pricing: %w", err)
			}

			s, err := parseLocal(start, loc)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			e, err := parseLocal(end, loc)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			var custom *decimal.Decimal
			if customRate != "" {
				d, err := decimal.NewFromString(customRate)
				if err != nil {
					return fmt.Errorf("--custom-rate: %w", err)
				}
				custom = &d
			}

			d := funding.NewCalculator(pricing).Calculate(funding.ShiftInterval{Start: s, End: e},
				funding.NormalizeRatio(ratio), funding.FundingCategory(category), custom, nil)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"shift_type":         d.ShiftType,
				"hours":              d.Hours.StringFixed(2),
				"ratio":              d.Ratio,
				"rate":               d.Rate.StringFixed(2),
				"rate_source":        d.RateSource,
				"ratio_multiplier":   d.RatioMultiplier.String(),
				"amount":             d.Amount.StringFixed(2),
				"amount_formatted":   funding.FormatCurrency(d.Amount),
				"category":           d.Category,
				"used_default_ratio": d.UsedDefaultRatio,
			})
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "shift start (RFC 3339 or local 2006-01-02T15:04)")
	cmd.Flags().StringVar(&end, "end", "", "shift end")
	cmd.Flags().StringVar(&ratio, "ratio", "1:1", "staff ratio")
	cmd.Flags().StringVar(&category, "category", string(funding.CategorySIL), "funding category")
	cmd.Flags().StringVar(&customRate, "custom-rate", "", "override the hourly rate")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")

	return cmd
}

func pricingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pricing",
		Short: "Print the effective pricing as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pricing, err := factory.LoadPricing(v.GetString("pricing.file"))
			if err != nil {
				return fmt.Errorf("failed to load pricing: %w", err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(factory.ToFile(pricing))
		},
	}
}

func parseLocal(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
