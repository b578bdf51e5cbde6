package session

import (
	"sync"
	"testing"
)

func TestGetOrCreateReturnsSameState(t *testing.T) {
	store := NewStore()
	a := store.GetOrCreate("ses_1")
	b := store.GetOrCreate("ses_1")
	if a != b {
		t.Fatal("GetOrCreate must return the same state for the same id")
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestGetMissing(t *testing.T) {
	store := NewStore()
	if st := store.Get("ses_missing"); st != nil {
		t.Fatalf("Get on unknown id = %v, want nil", st)
	}
}

func TestGetOrCreateConcurrent(t *testing.T) {
	store := NewStore()
	const workers = 16

	var wg sync.WaitGroup
	results := make([]*State, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = store.GetOrCreate("ses_race")
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent GetOrCreate produced distinct states")
		}
	}
	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}
