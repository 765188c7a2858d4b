//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const postgresImage = "postgres:16-alpine"

// startPostgres returns a connection string for a throwaway database. When
// CLINIC_TEST_DATABASE_URL is set that database is used as is (it must be
// empty and the user a superuser); otherwise a container is started with
// the Docker CLI on a port Docker picks.
func startPostgres(ctx context.Context) (string, func(), error) {
	if url := os.Getenv("CLINIC_TEST_DATABASE_URL"); url != "" {
		return url, func() {}, waitForPostgres(ctx, url, 10*time.Second)
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=clinic",
		"-e", "POSTGRES_PASSWORD=clinic",
		"-e", "POSTGRES_DB=clinictest",
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	stop := func() { _ = exec.Command("docker", "stop", id).Run() }

	hostPort, err := mappedPort(ctx, id)
	if err != nil {
		stop()
		return "", nil, err
	}
	url := fmt.Sprintf("postgres://clinic:clinic@%s/clinictest?sslmode=disable", hostPort)
	if err := waitForPostgres(ctx, url, 30*time.Second); err != nil {
		stop()
		return "", nil, err
	}
	return url, stop, nil
}

// mappedPort asks Docker which host address it bound to the container's 5432.
func mappedPort(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	// One line per binding, e.g. "127.0.0.1:49153".
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", fmt.Errorf("container %s exposes no port for 5432", id)
	}
	return line, nil
}

// waitForPostgres polls until a query succeeds or timeout passes.
func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()

	var lastErr error
	for {
		conn, err := pgx.Connect(ctx, url)
		if err == nil {
			var one int
			err = conn.QueryRow(ctx, "SELECT 1").Scan(&one)
			conn.Close(ctx)
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %s: %v", timeout, lastErr)
		case <-tick.C:
		}
	}
}
