package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/stroysmeta/normcat-cli/internal/pricing"
)

var priceCmd = &cobra.Command{
	Use:   "price <code>",
	Short: "Calculate the current price for a catalog item",
	Long: `Calculate the current price for a catalog item.

Looks up the item by work or resource code, applies the index
coefficients for the target region and period, and adds overhead and
profit on the adjusted labor base.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		qtyStr, _ := cmd.Flags().GetString("quantity")
		qty, err := strconv.ParseFloat(qtyStr, 64)
		if err != nil {
			return eris.Wrapf(err, "price: parse quantity %q", qtyStr)
		}
		region, _ := cmd.Flags().GetString("region")
		period, _ := cmd.Flags().GetString("period")
		base, _ := cmd.Flags().GetBool("base")

		engine := buildEngine(st)
		breakdown, err := engine.CalculatePrice(ctx, pricing.Request{
			Code:             args[0],
			Quantity:         qty,
			RegionCode:       region,
			TargetPeriod:     period,
			SkipCoefficients: base,
		})
		if err != nil {
			var nf *pricing.NotFoundError
			if errors.As(err, &nf) {
				return eris.Errorf("no catalog item with code %s", nf.Code)
			}
			return eris.Wrap(err, "price")
		}

		out, err := json.MarshalIndent(breakdown, "", "  ")
		if err != nil {
			return eris.Wrap(err, "price: marshal")
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	priceCmd.Flags().String("quantity", "1", "quantity in the item's unit of measure")
	priceCmd.Flags().String("region", "", "region code for territorial coefficients")
	priceCmd.Flags().String("period", "", "target period (e.g., 2026-Q1)")
	priceCmd.Flags().Bool("base", false, "base price only, skip coefficient adjustment")
	rootCmd.AddCommand(priceCmd)
}
