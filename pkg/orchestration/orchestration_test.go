package orchestration_test

import (
	"context"
	"testing"

	"github.com/fluxorio/orchestrator/pkg/orchestration"
	"github.com/fluxorio/orchestrator/pkg/store"
)

func newTestService(t *testing.T) *orchestration.Service {
	t.Helper()
	svc, _ := newTestServiceAndStore(t)
	return svc
}

// newTestServiceAndStore also returns the underlying store, for tests that
// need to inspect rows (e.g. queue contents) that the Service API doesn't
// expose directly.
func newTestServiceAndStore(t *testing.T) (*orchestration.Service, *store.Store) {
	t.Helper()
	s, err := store.OpenTestDB(t.Name(), nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return orchestration.New(s, nil), s
}
