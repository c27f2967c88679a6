package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/core/model"
	"github.com/kilianp07/factoryccu/infra/mqtt"
)

var submitOpts struct {
	jobType     string
	workpiece   string
	workpieceID string
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Publish a job request to a running controller",
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitOpts.jobType, "type", string(model.JobProduction), "job type (PRODUCTION or STORAGE)")
	submitCmd.Flags().StringVar(&submitOpts.workpiece, "workpiece", "", "workpiece type (BLUE, RED or WHITE)")
	submitCmd.Flags().StringVar(&submitOpts.workpieceID, "workpiece-id", "", "optional workpiece id")
	_ = submitCmd.MarkFlagRequired("workpiece")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req := model.JobRequest{
		Type:          model.JobType(strings.ToUpper(submitOpts.jobType)),
		WorkpieceType: model.WorkpieceType(strings.ToUpper(submitOpts.workpiece)),
		WorkpieceID:   submitOpts.workpieceID,
		Timestamp:     time.Now().UTC(),
	}
	if !req.Type.Valid() || !req.WorkpieceType.Valid() {
		return fmt.Errorf("invalid job request %s %s", req.Type, req.WorkpieceType)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-submit-%d", mqttCfg.ClientID, time.Now().UnixNano())
	client, err := mqtt.NewPahoClient(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	pub := mqtt.NewPublisher(client, mqtt.Topics{Prefix: mqttCfg.TopicPrefix}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pub.PublishJobRequest(ctx, req); err != nil {
		return fmt.Errorf("publish job request: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted %s job for %s\n", req.Type, req.WorkpieceType)
	return nil
}
