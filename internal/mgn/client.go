package mgn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	awsmgn "github.com/aws/aws-sdk-go-v2/service/mgn"
	mgntypes "github.com/aws/aws-sdk-go-v2/service/mgn/types"

	"github.com/mab0130/MGNBot/internal/logger"
	"github.com/mab0130/MGNBot/internal/types"
)

// Options configures the AWS MGN client
type Options struct {
	// Region is the AWS region; empty means the SDK default chain decides
	Region string
	// Profile is the shared config profile; empty means the default chain
	Profile string
}

// Client is the AWS implementation of the Lifecycle and Inventory
// interfaces, backed by the MGN and EC2 APIs
type Client struct {
	mgn *awsmgn.Client
	ec2 *ec2.Client
}

var (
	_ Lifecycle = (*Client)(nil)
	_ Inventory = (*Client)(nil)
)

// NewClient creates an MGN client using the default AWS credential chain,
// optionally pinned to a region and shared config profile
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		mgn: awsmgn.NewFromConfig(awsCfg),
		ec2: ec2.NewFromConfig(awsCfg),
	}, nil
}

// StartTest applies the launch configuration overrides to the server's EC2
// launch template, then starts the test and returns the remote job ID
func (c *Client) StartTest(ctx context.Context, serverID string, network *types.NetworkConfig, instance *types.InstanceConfig) (string, error) {
	if err := c.applyLaunchConfig(ctx, serverID, network, instance); err != nil {
		return "", err
	}

	out, err := c.mgn.StartTest(ctx, &awsmgn.StartTestInput{
		SourceServerIDs: []string{serverID},
	})
	if err != nil {
		return "", wrapAPIError(err)
	}
	if out.Job == nil || out.Job.JobID == nil {
		return "", fmt.Errorf("StartTest for %s returned no job", serverID)
	}

	logger.Debugf("Started test for server %s, job %s", serverID, *out.Job.JobID)
	return *out.Job.JobID, nil
}

// GetLaunchStatus polls the launch job and reports the participating
// server's launch outcome
func (c *Client) GetLaunchStatus(ctx context.Context, jobID string) (LaunchStatus, error) {
	job, err := c.describeJob(ctx, jobID)
	if err != nil {
		return LaunchStatus{}, err
	}

	status := LaunchStatus{State: JobPending}
	for _, server := range job.ParticipatingServers {
		switch server.LaunchStatus {
		case mgntypes.LaunchStatusLaunched:
			status.State = JobSucceeded
			if server.LaunchedEc2InstanceID != nil {
				status.InstanceID = *server.LaunchedEc2InstanceID
			}
		case mgntypes.LaunchStatusFailed:
			status.State = JobFailed
			status.FailureReason = fmt.Sprintf("launch failed for server %s", aws.ToString(server.SourceServerID))
		}
	}

	// A completed job whose server never reached LAUNCHED is a failure.
	if job.Status == mgntypes.JobStatusCompleted && status.State == JobPending {
		status.State = JobFailed
		status.FailureReason = "job completed without launching an instance"
	}

	return status, nil
}

// StopTest terminates the server's test instance and returns the remote job ID
func (c *Client) StopTest(ctx context.Context, serverID string) (string, error) {
	out, err := c.mgn.TerminateTargetInstances(ctx, &awsmgn.TerminateTargetInstancesInput{
		SourceServerIDs: []string{serverID},
	})
	if err != nil {
		return "", wrapAPIError(err)
	}
	if out.Job == nil || out.Job.JobID == nil {
		return "", fmt.Errorf("TerminateTargetInstances for %s returned no job", serverID)
	}

	logger.Debugf("Terminating test for server %s, job %s", serverID, *out.Job.JobID)
	return *out.Job.JobID, nil
}

// GetTerminationStatus polls the termination job
func (c *Client) GetTerminationStatus(ctx context.Context, jobID string) (TerminationStatus, error) {
	job, err := c.describeJob(ctx, jobID)
	if err != nil {
		return TerminationStatus{}, err
	}

	for _, server := range job.ParticipatingServers {
		if server.LaunchStatus == mgntypes.LaunchStatusFailed {
			return TerminationStatus{
				State:         JobFailed,
				FailureReason: fmt.Sprintf("termination failed for server %s", aws.ToString(server.SourceServerID)),
			}, nil
		}
	}

	if job.Status == mgntypes.JobStatusCompleted {
		return TerminationStatus{State: JobSucceeded}, nil
	}
	return TerminationStatus{State: JobPending}, nil
}

// DescribeSourceServers lists all non-archived source servers registered
// with MGN, including each server's current test instance state from EC2
func (c *Client) DescribeSourceServers(ctx context.Context) ([]SourceServerInfo, error) {
	var servers []SourceServerInfo

	paginator := awsmgn.NewDescribeSourceServersPaginator(c.mgn, &awsmgn.DescribeSourceServersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAPIError(err)
		}
		for _, item := range page.Items {
			servers = append(servers, parseSourceServer(item))
		}
	}

	if err := c.fillTestInstanceStates(ctx, servers); err != nil {
		// Inventory is still useful without EC2 state; log and move on.
		logger.Warnf("Failed to resolve test instance states: %v", err)
	}

	return servers, nil
}

// applyLaunchConfig pushes the batch's network and instance settings into
// the server's launch configuration and EC2 launch template
func (c *Client) applyLaunchConfig(ctx context.Context, serverID string, network *types.NetworkConfig, instance *types.InstanceConfig) error {
	if network == nil && instance == nil {
		return nil
	}

	// An explicit instance type disables MGN rightsizing; launching into a
	// specific subnet requires the STOPPED disposition.
	_, err := c.mgn.UpdateLaunchConfiguration(ctx, &awsmgn.UpdateLaunchConfigurationInput{
		SourceServerID:                      aws.String(serverID),
		LaunchDisposition:                   mgntypes.LaunchDispositionStopped,
		TargetInstanceTypeRightSizingMethod: mgntypes.TargetInstanceTypeRightSizingMethodNone,
	})
	if err != nil {
		return wrapAPIError(err)
	}

	launchCfg, err := c.mgn.GetLaunchConfiguration(ctx, &awsmgn.GetLaunchConfigurationInput{
		SourceServerID: aws.String(serverID),
	})
	if err != nil {
		return wrapAPIError(err)
	}
	if launchCfg.Ec2LaunchTemplateID == nil {
		return fmt.Errorf("server %s has no EC2 launch template", serverID)
	}

	data := &ec2types.RequestLaunchTemplateData{}
	if instance != nil {
		data.InstanceType = ec2types.InstanceType(instance.InstanceType)
		if instance.KeyPair != "" {
			data.KeyName = aws.String(instance.KeyPair)
		}
		if instance.IAMProfile != "" {
			data.IamInstanceProfile = &ec2types.LaunchTemplateIamInstanceProfileSpecificationRequest{
				Name: aws.String(instance.IAMProfile),
			}
		}
		data.DisableApiTermination = aws.Bool(instance.TerminationProtection)
	}
	if network != nil {
		nic := ec2types.LaunchTemplateInstanceNetworkInterfaceSpecificationRequest{
			DeviceIndex: aws.Int32(0),
			SubnetId:    aws.String(network.SubnetID),
			Groups:      network.SecurityGroupIDs,
		}
		if network.PublicIPOverride != nil {
			nic.AssociatePublicIpAddress = network.PublicIPOverride
		}
		data.NetworkInterfaces = []ec2types.LaunchTemplateInstanceNetworkInterfaceSpecificationRequest{nic}
	}

	version, err := c.ec2.CreateLaunchTemplateVersion(ctx, &ec2.CreateLaunchTemplateVersionInput{
		LaunchTemplateId:   launchCfg.Ec2LaunchTemplateID,
		SourceVersion:      aws.String("$Latest"),
		LaunchTemplateData: data,
	})
	if err != nil {
		return wrapAPIError(err)
	}
	if version.LaunchTemplateVersion == nil || version.LaunchTemplateVersion.VersionNumber == nil {
		return fmt.Errorf("no launch template version created for server %s", serverID)
	}

	_, err = c.ec2.ModifyLaunchTemplate(ctx, &ec2.ModifyLaunchTemplateInput{
		LaunchTemplateId: launchCfg.Ec2LaunchTemplateID,
		DefaultVersion:   aws.String(fmt.Sprintf("%d", *version.LaunchTemplateVersion.VersionNumber)),
	})
	if err != nil {
		return wrapAPIError(err)
	}

	return nil
}

// describeJob fetches a single job by ID
func (c *Client) describeJob(ctx context.Context, jobID string) (*mgntypes.Job, error) {
	out, err := c.mgn.DescribeJobs(ctx, &awsmgn.DescribeJobsInput{
		Filters: &mgntypes.DescribeJobsRequestFilters{
			JobIDs: []string{jobID},
		},
	})
	if err != nil {
		return nil, wrapAPIError(err)
	}
	if len(out.Items) == 0 {
		return nil, &APIError{
			Code:    "ResourceNotFoundException",
			Message: fmt.Sprintf("job %s not found", jobID),
		}
	}
	return &out.Items[0], nil
}

// fillTestInstanceStates resolves EC2 instance states for servers with a
// launched test instance, in one DescribeInstances call
func (c *Client) fillTestInstanceStates(ctx context.Context, servers []SourceServerInfo) error {
	var instanceIDs []string
	for _, s := range servers {
		if s.TestInstanceID != "" {
			instanceIDs = append(instanceIDs, s.TestInstanceID)
		}
	}
	if len(instanceIDs) == 0 {
		return nil
	}

	out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: instanceIDs,
	})
	if err != nil {
		return wrapAPIError(err)
	}

	states := make(map[string]string)
	for _, reservation := range out.Reservations {
		for _, inst := range reservation.Instances {
			if inst.InstanceId != nil && inst.State != nil {
				states[*inst.InstanceId] = string(inst.State.Name)
			}
		}
	}

	for i := range servers {
		if state, ok := states[servers[i].TestInstanceID]; ok {
			servers[i].TestInstanceState = state
		}
	}
	return nil
}

// parseSourceServer maps an MGN source server record to the inventory view
func parseSourceServer(server mgntypes.SourceServer) SourceServerInfo {
	info := SourceServerInfo{
		SourceServerID: aws.ToString(server.SourceServerID),
		IsArchived:     aws.ToBool(server.IsArchived),
		Tags:           server.Tags,
	}

	if server.LifeCycle != nil {
		info.LifecycleState = string(server.LifeCycle.State)
	}
	if server.DataReplicationInfo != nil {
		info.ReplicationState = string(server.DataReplicationInfo.DataReplicationState)
	}
	if server.SourceProperties != nil {
		info.RecommendedInstance = aws.ToString(server.SourceProperties.RecommendedInstanceType)
		if server.SourceProperties.IdentificationHints != nil {
			info.Hostname = aws.ToString(server.SourceProperties.IdentificationHints.Hostname)
		}
	}
	if server.LaunchedInstance != nil {
		info.TestInstanceID = aws.ToString(server.LaunchedInstance.Ec2InstanceID)
	}

	// Fall back through tags then the server ID for a display name.
	if info.Hostname == "" {
		if name, ok := server.Tags["Name"]; ok {
			info.Hostname = name
		} else {
			info.Hostname = info.SourceServerID
		}
	}

	return info
}
