package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "demandcast",
		Short:         "Demand forecasting and customer activity analysis over sales records",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newForecastCmd(), newCohortsCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
