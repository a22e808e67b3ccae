package mgn

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	mgntypes "github.com/aws/aws-sdk-go-v2/service/mgn/types"
	"github.com/stretchr/testify/assert"
)

func TestParseSourceServer(t *testing.T) {
	server := mgntypes.SourceServer{
		SourceServerID: aws.String("s-1234567890abcdef0"),
		IsArchived:     aws.Bool(false),
		Tags:           map[string]string{"Name": "web-01", "Wave": "1"},
		LifeCycle: &mgntypes.LifeCycle{
			State: mgntypes.LifeCycleStateReadyForTest,
		},
		DataReplicationInfo: &mgntypes.DataReplicationInfo{
			DataReplicationState: mgntypes.DataReplicationStateContinuous,
		},
		SourceProperties: &mgntypes.SourceProperties{
			RecommendedInstanceType: aws.String("m5.large"),
			IdentificationHints: &mgntypes.IdentificationHints{
				Hostname: aws.String("web-01.corp.example"),
			},
		},
		LaunchedInstance: &mgntypes.LaunchedInstance{
			Ec2InstanceID: aws.String("i-0abc"),
		},
	}

	info := parseSourceServer(server)
	assert.Equal(t, "s-1234567890abcdef0", info.SourceServerID)
	assert.Equal(t, "web-01.corp.example", info.Hostname)
	assert.Equal(t, string(mgntypes.LifeCycleStateReadyForTest), info.LifecycleState)
	assert.Equal(t, string(mgntypes.DataReplicationStateContinuous), info.ReplicationState)
	assert.Equal(t, "m5.large", info.RecommendedInstance)
	assert.Equal(t, "i-0abc", info.TestInstanceID)
	assert.False(t, info.IsArchived)
	assert.Equal(t, "1", info.Tags["Wave"])
}

func TestParseSourceServerHostnameFallback(t *testing.T) {
	server := mgntypes.SourceServer{
		SourceServerID: aws.String("s-1"),
		Tags:           map[string]string{"Name": "db-01"},
	}
	info := parseSourceServer(server)
	assert.Equal(t, "db-01", info.Hostname)

	bare := mgntypes.SourceServer{SourceServerID: aws.String("s-2")}
	info = parseSourceServer(bare)
	assert.Equal(t, "s-2", info.Hostname)
	assert.Empty(t, info.LifecycleState)
}
