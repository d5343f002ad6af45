package catalog

import (
	"sync"
	"testing"
)

func TestRegistry_Snapshot_isIndependentCopy(t *testing.T) {
	r, err := NewRegistry(Standard(loadTime))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	snap := r.Snapshot()
	if len(snap) != 8 {
		t.Fatalf("Snapshot() = %d requirements, want 8", len(snap))
	}
	snap[0].RequiredRoles[0] = "mutated"
	snap[0].MinimumApprovals = 99

	again, _ := r.Get(snap[0].ID)
	if again.RequiredRoles[0] == "mutated" || again.MinimumApprovals == 99 {
		t.Error("mutating a snapshot leaked into the registry")
	}
}

func TestRegistry_Get(t *testing.T) {
	r, err := NewRegistry(Standard(loadTime))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ops, ok := r.Get("OPS_001")
	if !ok {
		t.Fatal("Get(OPS_001) not found")
	}
	if len(ops.Dependencies) != 2 {
		t.Errorf("OPS_001 dependencies = %v, want 2", ops.Dependencies)
	}
	if _, ok := r.Get("UNKNOWN"); ok {
		t.Error("Get(UNKNOWN) should not be found")
	}
	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
}

func TestRegistry_Replace(t *testing.T) {
	r, err := NewRegistry(Standard(loadTime))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	before := r.Checksum()

	if err := r.Replace(Standard(loadTime)[:2]); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if r.Checksum() == before {
		t.Error("Checksum() unchanged after Replace")
	}
}

func TestRegistry_Replace_invalidKeepsPrevious(t *testing.T) {
	r, err := NewRegistry(Standard(loadTime))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	bad := Standard(loadTime)
	bad[1].ApprovalType = bad[0].ApprovalType
	if err := r.Replace(bad); err == nil {
		t.Fatal("Replace() with shared approval type should fail")
	}
	if r.Len() != 8 {
		t.Errorf("Len() = %d after failed Replace, want 8", r.Len())
	}
}

func TestRegistry_concurrentReads(t *testing.T) {
	r, err := NewRegistry(Standard(loadTime))
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%10 == 0 {
				_ = r.Replace(Standard(loadTime))
				return
			}
			_ = r.Snapshot()
			_, _ = r.Get("SEC_001")
		}(i)
	}
	wg.Wait()
}
