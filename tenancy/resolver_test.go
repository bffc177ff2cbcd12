package tenancy

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/logger"
)

func newTestDirectory(t *testing.T) *GormDirectory {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dir := NewGormDirectory(db)
	if err := dir.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	for _, tn := range []Tenant{
		{ID: "t1", Name: "Acme", Status: StatusActive},
		{ID: "t2", Name: "Globex", Status: StatusTrial},
		{ID: "t3", Name: "Initech", Status: StatusInactive},
		{ID: "t4", Name: "Umbrella", Status: StatusSuspended},
	} {
		tn := tn
		if err := dir.SaveTenant(ctx, &tn); err != nil {
			t.Fatalf("save tenant: %v", err)
		}
	}
	for actor, tenant := range map[string]string{"alice": "t1", "bob": "t2", "carol": "t3", "dave": "t4", "erin": "t9"} {
		if err := dir.AddMembership(ctx, actor, tenant); err != nil {
			t.Fatalf("add membership: %v", err)
		}
	}
	return dir
}

func newTestResolver(t *testing.T) (*Resolver, *GormDirectory) {
	dir := newTestDirectory(t)
	return NewResolver(dir, dir, logger.NewNop()), dir
}

func TestResolveUnauthenticated(t *testing.T) {
	r, _ := newTestResolver(t)
	st, err := r.Resolve(context.Background(), Actor{ID: "anon"}, "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.HasTenant() {
		t.Fatalf("unauthenticated actor must not get a tenant: %+v", st)
	}
	if _, ok := st.BypassInfo(); ok {
		t.Fatalf("unauthenticated actor must not get a bypass")
	}
}

func TestResolveOrdinaryActor(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	st, err := r.Resolve(ctx, Actor{ID: "alice", Authenticated: true}, "")
	if err != nil {
		t.Fatalf("resolve alice: %v", err)
	}
	if st.TenantID != "t1" || st.ActorID != "alice" || st.Privileged {
		t.Fatalf("unexpected state: %+v", st)
	}

	if st, err := r.Resolve(ctx, Actor{ID: "bob", Authenticated: true}, ""); err != nil || st.TenantID != "t2" {
		t.Fatalf("trial tenant must resolve: %+v %v", st, err)
	}

	cases := []struct {
		actor string
		want  error
	}{
		{"carol", errors.ErrTenantInactive},
		{"dave", errors.ErrTenantSuspended},
		{"erin", errors.ErrNoTenantAssociation},
		{"nobody", errors.ErrNoTenantAssociation},
	}
	for _, tc := range cases {
		_, err := r.Resolve(ctx, Actor{ID: tc.actor, Authenticated: true}, "")
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.actor, tc.want, err)
		}
	}
}

func TestResolveOrdinaryActorForeignTenant(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Resolve(context.Background(), Actor{ID: "alice", Authenticated: true}, "t2")
	if errors.Code(err) != errors.ErrCodePermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
}

func TestResolvePrivilegedActor(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()
	ops := Actor{ID: "ops-1", Authenticated: true, Privileged: true}

	if _, err := r.Resolve(ctx, ops, ""); !errors.Is(err, errors.ErrTenantIDRequired) {
		t.Fatalf("expected tenant id required, got %v", err)
	}

	st, err := r.Resolve(ctx, ops, "t2")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if st.TenantID != "t2" || !st.Privileged {
		t.Fatalf("unexpected state: %+v", st)
	}
	if _, ok := st.BypassInfo(); ok {
		t.Fatalf("resolution must never produce a bypass")
	}

	if _, err := r.Resolve(ctx, ops, "t4"); !errors.Is(err, errors.ErrTenantSuspended) {
		t.Fatalf("expected suspended, got %v", err)
	}
	if _, err := r.Resolve(ctx, ops, "missing"); !errors.Is(err, errors.ErrNoTenantAssociation) {
		t.Fatalf("expected no association for unknown tenant, got %v", err)
	}
}

func TestBindRunsWithResolvedState(t *testing.T) {
	r, dir := newTestResolver(t)
	ctx := context.Background()

	called := false
	err := r.Bind(ctx, Actor{ID: "alice", Authenticated: true}, "", func(ctx context.Context) error {
		called = true
		if id, _ := TenantID(ctx); id != "t1" {
			t.Fatalf("unexpected tenant %q", id)
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("bind: called=%v err=%v", called, err)
	}

	if err := dir.SetStatus(ctx, "t1", StatusSuspended); err != nil {
		t.Fatalf("set status: %v", err)
	}
	err = r.Bind(ctx, Actor{ID: "alice", Authenticated: true}, "", func(ctx context.Context) error {
		t.Fatalf("fn must not run for a suspended tenant")
		return nil
	})
	if !errors.Is(err, errors.ErrTenantSuspended) {
		t.Fatalf("expected suspended, got %v", err)
	}

	if err := dir.SetStatus(ctx, "missing", StatusActive); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
