package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	chstore "arcade-pot/internal/storage/clickhouse"
	"arcade-pot/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse container and returns a migrated connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Application: Ready for connections").
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
			Env: map[string]string{
				"CLICKHOUSE_USER":                      "default",
				"CLICKHOUSE_PASSWORD":                  "",
				"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1",
			},
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	// the attempts database does not exist yet; migrations create it
	dsn := fmt.Sprintf("clickhouse://%s:%s/arcade_attempts", host, port.Port())
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err, "failed to apply migrations")

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}
	return conn, cleanup
}
