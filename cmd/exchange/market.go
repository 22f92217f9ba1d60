package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Catches the market up and prints the current quotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		quotes, err := a.exchange.Market(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tBID\tVALUE\tASK")
		for _, q := range quotes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", q.Code, q.Name, price(q.Bid), price(q.Value), price(q.Ask))
		}
		return w.Flush()
	},
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "s"
}
