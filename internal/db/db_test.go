package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/altron-go/internal/metrics"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testMetrics = metrics.NewCollector()

// TestMain starts a SurrealDB container shared by the integration tests.
// In -short mode no container is started and only MemoryStore is exercised.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Ryuk cannot start in some CI sandboxes.
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil, testMetrics)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)

	os.Exit(code)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	if testDB == nil {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	if err := testDB.InitSchema(ctx); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
	result, err := testDB.Query(ctx, "INFO FOR DB", nil)
	if err != nil {
		t.Fatalf("INFO FOR DB failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected database info")
	}
}

func TestClientRecordsQueryMetrics(t *testing.T) {
	if testDB == nil {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := testDB.Query(context.Background(), "RETURN 1", nil); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	op := testMetrics.Snapshot().Operations[metrics.OpDBQuery]
	if op == nil || op.Count == 0 {
		t.Fatal("expected db_query timings to be recorded")
	}
}
