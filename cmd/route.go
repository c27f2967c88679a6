package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/factoryccu/core/routing"
	"github.com/kilianp07/factoryccu/infra/layoutfile"
	"github.com/kilianp07/factoryccu/infra/logger"
)

var routeOpts struct {
	layout  string
	from    string
	to      string
	vehicle string
}

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Plan a route on a layout and print the vehicle order",
	RunE:  runRoute,
}

func init() {
	routeCmd.Flags().StringVar(&routeOpts.layout, "layout", "layout.yaml", "layout file")
	routeCmd.Flags().StringVar(&routeOpts.from, "from", "", "start node id")
	routeCmd.Flags().StringVar(&routeOpts.to, "to", "", "target node id")
	routeCmd.Flags().StringVar(&routeOpts.vehicle, "vehicle", "FTS-1", "vehicle serial number")
	_ = routeCmd.MarkFlagRequired("from")
	_ = routeCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	layout, err := layoutfile.LoadLayout(routeOpts.layout)
	if err != nil {
		return err
	}
	g, err := layout.Graph()
	if err != nil {
		return err
	}
	planner := routing.NewPlanner(g, nil, logger.NopLogger{})
	path, err := planner.ShortestPath(routeOpts.from, routeOpts.to, routeOpts.vehicle)
	if err != nil {
		return fmt.Errorf("plan route: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "path: %v (distance %.0f)\n", planner.NodeIDs(path), path.Distance)
	if path.AtTarget() {
		return nil
	}
	order, err := planner.BuildCommandSequence(path, "cli", "cli-1", routeOpts.vehicle, "dock")
	if err != nil {
		return fmt.Errorf("build order: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}
