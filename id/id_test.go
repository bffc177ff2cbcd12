package id

import (
	"sync"
	"testing"
	"time"
)

func TestNewEntityIDSortedAndUnique(t *testing.T) {
	const n = 1000
	prev := ""
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		v := NewEntityID()
		if len(v) != 26 {
			t.Fatalf("unexpected entity id length: %d", len(v))
		}
		if !ValidEntityID(v) {
			t.Fatalf("generated id does not parse: %s", v)
		}
		if v <= prev {
			t.Fatalf("entity ids must be strictly increasing: %s <= %s", v, prev)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate entity id: %s", v)
		}
		seen[v] = struct{}{}
		prev = v
	}
}

func TestNewEntityIDConcurrent(t *testing.T) {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v := NewEntityID()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 1600 {
		t.Fatalf("expected 1600 unique ids, got %d", len(seen))
	}
}

func TestEntityIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := EntityIDTime(NewEntityID())
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	if ts.Before(before) {
		t.Fatalf("unexpected id time: %v", ts)
	}
	if _, err := EntityIDTime("not-a-ulid"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRunIDGenerator(t *testing.T) {
	if _, err := NewRunIDGenerator(MaxNodeID + 1); err == nil {
		t.Fatalf("expected error for out of range node id")
	}

	gen, err := NewRunIDGenerator(7)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	a, b := gen.Next(), gen.Next()
	if b <= a {
		t.Fatalf("run ids must increase: %d <= %d", b, a)
	}
	if RunIDTime(b).Before(time.Now().Add(-time.Minute)) {
		t.Fatalf("unexpected run id time")
	}
}

func TestRunIDGeneratorFromEnv(t *testing.T) {
	t.Setenv(EnvNodeID, "abc")
	if _, err := NewRunIDGeneratorFromEnv(); err == nil {
		t.Fatalf("expected error for invalid env node id")
	}
	t.Setenv(EnvNodeID, "12")
	if _, err := NewRunIDGeneratorFromEnv(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMessageKey(t *testing.T) {
	if a, b := NewMessageKey(), NewMessageKey(); a == b || len(a) != 36 {
		t.Fatalf("unexpected message keys: %q %q", a, b)
	}
}
