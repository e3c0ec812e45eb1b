//go:build integration

package redis

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"gpetl/internal/model"
	"gpetl/internal/storage"
)

func TestRedisSinkAgainstContainer(t *testing.T) {
	ctx := context.Background()
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if exec.CommandContext(probe, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	s, err := Open(ctx, fmt.Sprintf("redis://%s:%s/0", host, port.Port()), "")
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.Write(ctx, "patients", []model.PatientDocument{{PatientID: "1"}, {PatientID: "2"}}, storage.StrategyReplace)
	require.NoError(t, err)
	_, err = s.Write(ctx, "patients", []model.PatientDocument{{PatientID: "3"}}, storage.StrategyReplace)
	require.NoError(t, err)

	keys, err := s.client.Keys(ctx, "patients:*").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"patients:3"}, keys)
}
