package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mab0130/MGNBot/internal/orchestrator"
	"github.com/mab0130/MGNBot/internal/types"
)

// watchInterval is how often watch mode refreshes a batch snapshot
const watchInterval = 2 * time.Second

// GetBatchesCmd returns the batches command group
func GetBatchesCmd() *cobra.Command {
	batchesCmd := &cobra.Command{
		Use:   "batches",
		Short: "Manage bulk test instance operations",
	}

	batchesCmd.AddCommand(launchBatchCmd)
	batchesCmd.AddCommand(terminateBatchCmd)
	batchesCmd.AddCommand(listBatchesCmd)
	batchesCmd.AddCommand(getBatchCmd)
	batchesCmd.AddCommand(watchBatchCmd)
	batchesCmd.AddCommand(cancelBatchCmd)

	return batchesCmd
}

func init() {
	launchBatchCmd.Flags().StringSlice("server-ids", nil, "Source server IDs to launch test instances for")
	launchBatchCmd.Flags().StringP("file", "f", "", "JSON file containing the full batch request")
	launchBatchCmd.Flags().String("vpc-id", "", "VPC for the test instances")
	launchBatchCmd.Flags().String("subnet-id", "", "Subnet for the test instances")
	launchBatchCmd.Flags().StringSlice("security-group", nil, "Security group IDs for the test instances")
	launchBatchCmd.Flags().Bool("associate-public-ip", false, "Associate a public IP with each test instance")
	launchBatchCmd.Flags().String("instance-type", "", "EC2 instance type override")
	launchBatchCmd.Flags().String("key-pair", "", "EC2 key pair name")
	launchBatchCmd.Flags().String("iam-profile", "", "IAM instance profile name")
	launchBatchCmd.Flags().Bool("termination-protection", false, "Enable EC2 termination protection")
	launchBatchCmd.Flags().IntP("concurrency", "c", 0, "Maximum servers processed at once")
	launchBatchCmd.Flags().BoolP("watch", "w", false, "Watch progress until the batch completes")

	terminateBatchCmd.Flags().StringSlice("server-ids", nil, "Source server IDs to terminate test instances for")
	terminateBatchCmd.Flags().IntP("concurrency", "c", 0, "Maximum servers processed at once")
	terminateBatchCmd.Flags().BoolP("watch", "w", false, "Watch progress until the batch completes")
	_ = terminateBatchCmd.MarkFlagRequired("server-ids")

	getBatchCmd.Flags().StringP("id", "i", "", "Batch ID to fetch")
	_ = getBatchCmd.MarkFlagRequired("id")

	watchBatchCmd.Flags().StringP("id", "i", "", "Batch ID to watch")
	_ = watchBatchCmd.MarkFlagRequired("id")

	cancelBatchCmd.Flags().StringP("id", "i", "", "Batch ID to cancel")
	_ = cancelBatchCmd.MarkFlagRequired("id")
}

var launchBatchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch test instances for a set of source servers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := buildLaunchRequest(cmd)
		if err != nil {
			return err
		}

		snapshot, err := apiClient.SubmitBatch(context.Background(), req)
		if err != nil {
			return fmt.Errorf("error submitting batch: %w", err)
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return watchBatch(cmd, snapshot.BatchID)
		}
		return printJSON(cmd, snapshot)
	},
}

var terminateBatchCmd = &cobra.Command{
	Use:   "terminate",
	Short: "Terminate test instances for a set of source servers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		serverIDs, _ := cmd.Flags().GetStringSlice("server-ids")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		req := types.BatchRequest{
			Operation:      types.OperationTerminate,
			ServerIDs:      serverIDs,
			MaxConcurrency: concurrency,
		}

		snapshot, err := apiClient.SubmitBatch(context.Background(), req)
		if err != nil {
			return fmt.Errorf("error submitting batch: %w", err)
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return watchBatch(cmd, snapshot.BatchID)
		}
		return printJSON(cmd, snapshot)
	},
}

var listBatchesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all batches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		snapshots, err := apiClient.GetBatches(context.Background())
		if err != nil {
			return fmt.Errorf("error fetching batches: %w", err)
		}

		return printJSON(cmd, snapshots)
	},
}

var getBatchCmd = &cobra.Command{
	Use:   "get",
	Short: "Get the current snapshot of a batch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		batchID, _ := cmd.Flags().GetString("id")

		snapshot, err := apiClient.GetBatch(context.Background(), batchID)
		if err != nil {
			return fmt.Errorf("error fetching batch %s: %w", batchID, err)
		}

		return printJSON(cmd, snapshot)
	},
}

var watchBatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a batch until it completes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		batchID, _ := cmd.Flags().GetString("id")
		return watchBatch(cmd, batchID)
	},
}

var cancelBatchCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a batch; items already in flight run to completion",
	RunE: func(cmd *cobra.Command, _ []string) error {
		batchID, _ := cmd.Flags().GetString("id")

		snapshot, err := apiClient.CancelBatch(context.Background(), batchID)
		if err != nil {
			return fmt.Errorf("error cancelling batch %s: %w", batchID, err)
		}

		return printJSON(cmd, snapshot)
	},
}

// buildLaunchRequest assembles a launch request from either the request file
// or the individual flags
func buildLaunchRequest(cmd *cobra.Command) (types.BatchRequest, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return types.BatchRequest{}, fmt.Errorf("error reading request file: %w", err)
		}
		var req types.BatchRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return types.BatchRequest{}, fmt.Errorf("error parsing request file: %w", err)
		}
		return req, nil
	}

	serverIDs, _ := cmd.Flags().GetStringSlice("server-ids")
	vpcID, _ := cmd.Flags().GetString("vpc-id")
	subnetID, _ := cmd.Flags().GetString("subnet-id")
	securityGroups, _ := cmd.Flags().GetStringSlice("security-group")
	instanceType, _ := cmd.Flags().GetString("instance-type")
	keyPair, _ := cmd.Flags().GetString("key-pair")
	iamProfile, _ := cmd.Flags().GetString("iam-profile")
	terminationProtection, _ := cmd.Flags().GetBool("termination-protection")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	req := types.BatchRequest{
		Operation: types.OperationLaunch,
		ServerIDs: serverIDs,
		NetworkConfig: &types.NetworkConfig{
			VpcID:            vpcID,
			SubnetID:         subnetID,
			SecurityGroupIDs: securityGroups,
		},
		InstanceConfig: &types.InstanceConfig{
			InstanceType:          instanceType,
			KeyPair:               keyPair,
			IAMProfile:            iamProfile,
			TerminationProtection: terminationProtection,
		},
		MaxConcurrency: concurrency,
	}

	if cmd.Flags().Changed("associate-public-ip") {
		publicIP, _ := cmd.Flags().GetBool("associate-public-ip")
		req.NetworkConfig.PublicIPOverride = &publicIP
	}

	return req, nil
}

// watchBatch polls a batch and prints a progress line until every item is terminal
func watchBatch(cmd *cobra.Command, batchID string) error {
	for {
		snapshot, err := apiClient.GetBatch(context.Background(), batchID)
		if err != nil {
			return fmt.Errorf("error fetching batch %s: %w", batchID, err)
		}

		cmd.Println(progressLine(snapshot))
		if snapshot.Done {
			return printJSON(cmd, snapshot)
		}

		time.Sleep(watchInterval)
	}
}

// progressLine formats a one-line progress summary for watch mode
func progressLine(snapshot orchestrator.BatchSnapshot) string {
	inFlight := 0
	for phase, count := range snapshot.Counts {
		if !phase.Terminal() && phase != orchestrator.PhasePending {
			inFlight += count
		}
	}

	return fmt.Sprintf("%s: %d total | %d pending | %d in flight | %d succeeded | %d failed | %d cancelled",
		snapshot.BatchID,
		len(snapshot.Items),
		snapshot.Counts[orchestrator.PhasePending],
		inFlight,
		snapshot.Succeeded(),
		snapshot.Failed(),
		snapshot.Cancelled(),
	)
}
