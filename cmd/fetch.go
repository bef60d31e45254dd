package main

import (
	"github.com/spf13/cobra"

	"github.com/citykit/dmur-cli/pkg/overpass"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <city>",
	Short: "Fetch business locations from OpenStreetMap",
	Long:  "Queries the Overpass API for commercial points of interest in a city and writes the dataset as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, _ := cmd.Flags().GetString("state")
		country, _ := cmd.Flags().GetString("country")
		bbox, _ := cmd.Flags().GetFloat64Slice("bbox")
		out, _ := cmd.Flags().GetString("out")

		spec := overpass.QuerySpec{
			City:    args[0],
			State:   state,
			Country: country,
			BBox:    bbox,
		}

		dataset, err := overpassClient().FetchBusinesses(cmd.Context(), spec)
		if err != nil {
			return err
		}
		return writeJSON(out, dataset)
	},
}

func init() {
	fetchCmd.Flags().String("state", "", "state or region name")
	fetchCmd.Flags().String("country", "", "country name")
	fetchCmd.Flags().Float64Slice("bbox", nil, "bounding box min_lat,min_lon,max_lat,max_lon (overrides area lookup)")
	fetchCmd.Flags().String("out", "-", "output file, - for stdout")
	rootCmd.AddCommand(fetchCmd)
}
