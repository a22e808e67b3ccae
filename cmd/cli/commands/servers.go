package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mab0130/MGNBot/internal/db/models"
)

// serverOutput represents the filtered output for a source server
type serverOutput struct {
	SourceServerID      string `json:"source_server_id"`
	Hostname            string `json:"hostname"`
	LifecycleState      string `json:"lifecycle_state"`
	ReplicationState    string `json:"replication_state"`
	RecommendedInstance string `json:"recommended_instance,omitempty"`
	TestInstanceID      string `json:"test_instance_id,omitempty"`
	TestInstanceState   string `json:"test_instance_state,omitempty"`
}

func serverToOutput(server models.SourceServer) serverOutput {
	return serverOutput{
		SourceServerID:      server.SourceServerID,
		Hostname:            server.Hostname,
		LifecycleState:      server.LifecycleState.String(),
		ReplicationState:    server.ReplicationState,
		RecommendedInstance: server.RecommendedInstance,
		TestInstanceID:      server.TestInstanceID,
		TestInstanceState:   server.TestInstanceState,
	}
}

// GetServersCmd returns the servers command group
func GetServersCmd() *cobra.Command {
	serversCmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage the source server inventory",
	}

	serversCmd.AddCommand(listServersCmd)
	serversCmd.AddCommand(getServerCmd)
	serversCmd.AddCommand(syncServersCmd)

	return serversCmd
}

func init() {
	listServersCmd.Flags().String("state", "", "Filter by lifecycle state (e.g. ready_for_test)")
	listServersCmd.Flags().String("search", "", "Match against hostname or source server ID")
	listServersCmd.Flags().Bool("with-test-instance", false, "Only servers with a test instance")
	listServersCmd.Flags().Bool("without-test-instance", false, "Only servers without a test instance")
	listServersCmd.Flags().Bool("include-archived", false, "Include archived servers")
	listServersCmd.Flags().IntP("limit", "l", 0, "Limit the number of servers returned")
	listServersCmd.Flags().Int("offset", 0, "Offset into the listing")

	getServerCmd.Flags().StringP("id", "i", "", "Source server ID to fetch")
	_ = getServerCmd.MarkFlagRequired("id")
}

var listServersCmd = &cobra.Command{
	Use:   "list",
	Short: "List source servers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := &models.ServerListOptions{}

		if state, _ := cmd.Flags().GetString("state"); state != "" {
			parsed, err := models.ParseLifecycleState(state)
			if err != nil {
				return err
			}
			opts.LifecycleState = &parsed
		}
		opts.Search, _ = cmd.Flags().GetString("search")
		opts.IncludeArchived, _ = cmd.Flags().GetBool("include-archived")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		opts.Offset, _ = cmd.Flags().GetInt("offset")

		withTest, _ := cmd.Flags().GetBool("with-test-instance")
		withoutTest, _ := cmd.Flags().GetBool("without-test-instance")
		if withTest && withoutTest {
			return fmt.Errorf("--with-test-instance and --without-test-instance are mutually exclusive")
		}
		if withTest || withoutTest {
			opts.HasTestInstance = &withTest
		}

		servers, err := apiClient.GetServers(context.Background(), opts)
		if err != nil {
			return fmt.Errorf("error fetching servers: %w", err)
		}

		output := make([]serverOutput, len(servers))
		for i, server := range servers {
			output[i] = serverToOutput(server)
		}

		return printJSON(cmd, output)
	},
}

var getServerCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a source server by its MGN ID",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sourceServerID, _ := cmd.Flags().GetString("id")

		server, err := apiClient.GetServer(context.Background(), sourceServerID)
		if err != nil {
			return fmt.Errorf("error fetching server %s: %w", sourceServerID, err)
		}

		return printJSON(cmd, serverToOutput(server))
	},
}

var syncServersCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the inventory from the MGN API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := apiClient.SyncServers(context.Background())
		if err != nil {
			return fmt.Errorf("error syncing inventory: %w", err)
		}

		return printJSON(cmd, result)
	},
}
