//go:build integration

package firestore

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	pconfig "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/config"
	pfirestore "github.com/mrpixelvns-oss/vntech-sub000/internal/platform/firestore"
)

// newEmulatorProvider binds a provider to the emulator named by FIRESTORE_EMULATOR_HOST,
// e.g. one started with `gcloud emulators firestore start --host-port=127.0.0.1:8085`.
// Each test gets its own project so documents never leak between tests.
func newEmulatorProvider(t *testing.T, projectID string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	host := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	conn, err := net.DialTimeout("tcp", host, 2*time.Second)
	if err != nil {
		t.Fatalf("firestore emulator at %s unreachable: %v", host, err)
	}
	_ = conn.Close()

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    fmt.Sprintf("%s-%d", projectID, time.Now().UnixNano()),
		EmulatorHost: host,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}
