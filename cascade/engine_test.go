package cascade

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/errors"
	"github.com/aisgo/ais-tenancy/filestore"
	"github.com/aisgo/ais-tenancy/filestore/outbox"
	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/repository"
	"github.com/aisgo/ais-tenancy/tenancy"
)

type fakeTagger struct {
	mu   sync.Mutex
	tags []filestore.DeletionTag
	err  error
}

func (f *fakeTagger) Name() string { return "fake" }

func (f *fakeTagger) Tag(_ context.Context, tag filestore.DeletionTag) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.tags = append(f.tags, tag)
	return nil
}

type fixture struct {
	db     *gorm.DB
	hier   *model.Hierarchy
	tagger *fakeTagger
	engine *Engine
}

func newFixture(t *testing.T, sink PendingSink) *fixture {
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

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	scope := repository.NewInterceptor(model.NewRegistry(), logger.NewNop())
	tagger := &fakeTagger{}
	return &fixture{
		db:     db,
		hier:   model.NewHierarchy(model.HierarchyParams{DB: db, Scope: scope}),
		tagger: tagger,
		engine: NewEngine(EngineParams{
			DB:     db,
			Scope:  scope,
			Tagger: tagger,
			Sink:   sink,
			Logger: logger.NewNop(),
		}),
	}
}

func inTenant(t *testing.T, tenantID string, fn func(ctx context.Context)) {
	t.Helper()
	err := tenancy.Run(context.Background(), tenancy.State{TenantID: tenantID, ActorID: "u-" + tenantID}, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func deleted(t *testing.T, db *gorm.DB, table, id string) bool {
	t.Helper()
	var flags []int
	if err := db.Table(table).Where("id = ?", id).Pluck("is_deleted", &flags).Error; err != nil {
		t.Fatalf("read %s/%s: %v", table, id, err)
	}
	if len(flags) != 1 {
		t.Fatalf("row %s/%s not found", table, id)
	}
	return flags[0] == 1
}

// siteTree 一个园区，两栋楼，其中一栋有一层楼，楼层上有一个带文件的设备
type siteTree struct {
	customer  *model.Customer
	site      *model.Site
	other     *model.Site
	b1, b2    *model.Building
	floor     *model.Floor
	asset     *model.Asset
	otherBldg *model.Building
}

func buildSite(t *testing.T, ctx context.Context, h *model.Hierarchy) siteTree {
	t.Helper()
	var (
		tr  siteTree
		err error
	)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	tr.customer, err = h.CreateCustomer(ctx, "Acme")
	must(err)
	tr.site, err = h.AddSite(ctx, tr.customer.ID, "North")
	must(err)
	tr.other, err = h.AddSite(ctx, tr.customer.ID, "South")
	must(err)
	tr.b1, err = h.AddBuilding(ctx, tr.site.ID, "B1")
	must(err)
	tr.b2, err = h.AddBuilding(ctx, tr.site.ID, "B2")
	must(err)
	tr.otherBldg, err = h.AddBuilding(ctx, tr.other.ID, "S1")
	must(err)
	tr.floor, err = h.AddFloor(ctx, tr.b1.ID, 1, "L1")
	must(err)
	tr.asset, err = h.AddFloorAsset(ctx, tr.floor.ID, "Chiller", model.FileRef{FileBucket: "assets", FileKey: "acme/chiller.pdf"})
	must(err)
	return tr
}

func TestDeleteSiteCascades(t *testing.T) {
	f := newFixture(t, nil)

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if report.State != StateCompleted {
			t.Fatalf("expected completed, got %s", report.State)
		}
		if report.TenantID != "t1" || !report.RootMarked {
			t.Fatalf("unexpected report: %+v", report)
		}

		for _, row := range []struct{ table, id string }{
			{model.TableSites, tr.site.ID},
			{model.TableBuildings, tr.b1.ID},
			{model.TableBuildings, tr.b2.ID},
			{model.TableFloors, tr.floor.ID},
			{model.TableAssets, tr.asset.ID},
		} {
			if !deleted(t, f.db, row.table, row.id) {
				t.Fatalf("expected %s/%s deleted", row.table, row.id)
			}
		}
		if deleted(t, f.db, model.TableSites, tr.other.ID) || deleted(t, f.db, model.TableBuildings, tr.otherBldg.ID) {
			t.Fatalf("sibling site must stay live")
		}
		if deleted(t, f.db, model.TableCustomers, tr.customer.ID) {
			t.Fatalf("parent customer must stay live")
		}

		marked := report.Marked()
		if marked[model.KindBuilding] != 2 || marked[model.KindFloor] != 1 || marked[model.KindAsset] != 1 || marked[model.KindSite] != 1 {
			t.Fatalf("unexpected marked counts: %v", marked)
		}

		if len(f.tagger.tags) != 1 {
			t.Fatalf("expected exactly one tag, got %d", len(f.tagger.tags))
		}
		tag := f.tagger.tags[0]
		if tag.BucketRef != "assets" || tag.ObjectKey != "acme/chiller.pdf" || tag.RetentionDays != filestore.DefaultRetentionDays {
			t.Fatalf("unexpected tag: %+v", tag)
		}
		if tag.TenantID != "t1" || tag.EntityID != tr.asset.ID || tag.EntityKind != string(model.KindAsset) {
			t.Fatalf("unexpected tag owner: %+v", tag)
		}
	})
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		if _, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if report.State != StateCompleted {
			t.Fatalf("expected completed, got %s", report.State)
		}
		for kind, n := range report.Marked() {
			if n != 0 {
				t.Fatalf("second run marked %d %s rows", n, kind)
			}
		}
		if report.RootMarked {
			t.Fatalf("root was already deleted")
		}
		if len(f.tagger.tags) != 1 || report.Tagged != 0 {
			t.Fatalf("second run must not tag again: total=%d run=%d", len(f.tagger.tags), report.Tagged)
		}
	})
}

func TestDeleteMarksDeepestLayerFirst(t *testing.T) {
	f := newFixture(t, nil)

	var (
		mu     sync.Mutex
		tables []string
	)
	err := f.db.Callback().Update().After("gorm:update").Register("test:record_table", func(tx *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		tables = append(tables, tx.Statement.Table)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)
		if _, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	want := []string{model.TableAssets, model.TableFloors, model.TableBuildings, model.TableSites}
	if len(tables) != len(want) {
		t.Fatalf("unexpected update sequence: %v", tables)
	}
	for n := range want {
		if tables[n] != want[n] {
			t.Fatalf("unexpected update sequence: %v", tables)
		}
	}
}

func TestDeleteFailureKeepsCompletedLayers(t *testing.T) {
	f := newFixture(t, nil)
	*failFloors(t, f.db) = true

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err == nil {
			t.Fatalf("expected failure")
		}
		if errors.Code(err) != errors.ErrCodeInternal {
			t.Fatalf("unexpected code: %d", errors.Code(err))
		}
		if report == nil || report.State != StateFailed {
			t.Fatalf("expected failed report, got %+v", report)
		}
		if report.LastCompleted != StateDescendantsEnumerated || report.Error == "" {
			t.Fatalf("unexpected progress: last=%s err=%q", report.LastCompleted, report.Error)
		}
		if !report.Layers[0].Done || report.Layers[0].Kind != model.KindAsset || report.Layers[0].Marked != 1 {
			t.Fatalf("deepest layer should be recorded as done: %+v", report.Layers[0])
		}

		if !deleted(t, f.db, model.TableAssets, tr.asset.ID) {
			t.Fatalf("completed layer must stay marked")
		}
		if deleted(t, f.db, model.TableFloors, tr.floor.ID) || deleted(t, f.db, model.TableBuildings, tr.b1.ID) || deleted(t, f.db, model.TableSites, tr.site.ID) {
			t.Fatalf("layers above the failure must stay live")
		}
		if len(f.tagger.tags) != 1 || f.tagger.tags[0].EntityID != tr.asset.ID {
			t.Fatalf("files of a committed layer must be tagged, got %+v", f.tagger.tags)
		}
	})
}

// failFloors 打开后，floors 表上的更新全部失败
func failFloors(t *testing.T, db *gorm.DB) *bool {
	t.Helper()
	on := new(bool)
	err := db.Callback().Update().Before("gorm:update").Register("test:fail_floors", func(tx *gorm.DB) {
		if *on && tx.Statement.Table == model.TableFloors {
			_ = tx.AddError(stderrors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return on
}

func TestRetryAfterFailureTagsEachFileOnce(t *testing.T) {
	f := newFixture(t, nil)
	failing := failFloors(t, f.db)

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		*failing = true
		if _, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID); err == nil {
			t.Fatalf("expected first run to fail")
		}

		*failing = false
		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err != nil {
			t.Fatalf("retry: %v", err)
		}
		if report.State != StateCompleted || !deleted(t, f.db, model.TableSites, tr.site.ID) {
			t.Fatalf("retry should complete: %+v", report)
		}

		if len(f.tagger.tags) != 1 {
			t.Fatalf("expected the file tagged exactly once across runs, got %d", len(f.tagger.tags))
		}
		if tag := f.tagger.tags[0]; tag.ObjectKey != "acme/chiller.pdf" || tag.EntityID != tr.asset.ID {
			t.Fatalf("unexpected tag: %+v", tag)
		}
	})
}

func TestFailedRunLeavesTagIntentForReconciler(t *testing.T) {
	f := newFixture(t, nil)
	failing := failFloors(t, f.db)

	store := outbox.NewStore(f.db)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("migrate outbox: %v", err)
	}
	f.engine.sink = store

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		*failing = true
		f.tagger.err = stderrors.New("storage unavailable")
		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err == nil {
			t.Fatalf("expected first run to fail")
		}
		if len(report.TagFailures) != 1 || !report.TagFailures[0].Queued {
			t.Fatalf("expected the committed file queued, got %+v", report.TagFailures)
		}

		*failing = false
		f.tagger.err = nil
		if _, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if len(f.tagger.tags) != 0 {
			t.Fatalf("retry must not tag rows it did not mark, got %+v", f.tagger.tags)
		}
		if n, _ := store.CountPending(ctx); n != 1 {
			t.Fatalf("expected the intent still pending, got %d", n)
		}

		rec := outbox.NewReconciler(store, f.tagger, outbox.Config{}, logger.NewNop())
		res, err := rec.RunOnce(ctx)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Done != 1 || len(f.tagger.tags) != 1 || f.tagger.tags[0].EntityID != tr.asset.ID {
			t.Fatalf("reconciler should deliver the tag: %+v tags=%+v", res, f.tagger.tags)
		}
		if n, _ := store.CountPending(ctx); n != 0 {
			t.Fatalf("expected no pending intents, got %d", n)
		}
	})
}

func TestDeleteClosesIntentAfterTagging(t *testing.T) {
	f := newFixture(t, nil)

	store := outbox.NewStore(f.db)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("migrate outbox: %v", err)
	}
	f.engine.sink = store

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)
		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err != nil || report.Tagged != 1 {
			t.Fatalf("delete: tagged=%d err=%v", report.Tagged, err)
		}
		if n, _ := store.CountPending(ctx); n != 0 {
			t.Fatalf("delivered tags must not stay pending, got %d", n)
		}
	})
}

func TestDeleteForeignRootIsNotFound(t *testing.T) {
	f := newFixture(t, nil)

	var siteID string
	inTenant(t, "t1", func(ctx context.Context) {
		siteID = buildSite(t, ctx, f.hier).site.ID
	})

	inTenant(t, "t2", func(ctx context.Context) {
		report, err := f.engine.Delete(ctx, model.KindSite, siteID)
		if !errors.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if report.State != StateFailed || report.LastCompleted != StateStarted {
			t.Fatalf("unexpected report: %+v", report)
		}
	})

	if deleted(t, f.db, model.TableSites, siteID) {
		t.Fatalf("foreign tenant must not delete the site")
	}
}

func TestDeleteWithoutTenantFailsClosed(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Delete(context.Background(), model.KindSite, "01J000000000000000000000AA")
	if !errors.Is(err, errors.ErrTenantContextMissing) {
		t.Fatalf("expected tenant context missing, got %v", err)
	}
}

func TestDeleteRejectsBadArguments(t *testing.T) {
	f := newFixture(t, nil)

	inTenant(t, "t1", func(ctx context.Context) {
		if _, err := f.engine.Delete(ctx, model.Kind("planet"), "x"); errors.Code(err) != errors.ErrCodeInvalidArgument {
			t.Fatalf("expected invalid argument for kind, got %v", err)
		}
		if _, err := f.engine.Delete(ctx, model.KindSite, ""); errors.Code(err) != errors.ErrCodeInvalidArgument {
			t.Fatalf("expected invalid argument for id, got %v", err)
		}
	})
}

func TestDeleteIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, nil)

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		report, err := f.engine.Delete(cctx, model.KindSite, tr.site.ID)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if report.State != StateCompleted || !deleted(t, f.db, model.TableBuildings, tr.b2.ID) {
			t.Fatalf("cascade must finish after cancellation: %+v", report)
		}
	})
}

func TestDeleteBuildingCoversDirectChildren(t *testing.T) {
	f := newFixture(t, nil)

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		direct, err := f.hier.AddBuildingAsset(ctx, tr.b1.ID, "Generator", model.FileRef{FileBucket: "assets", FileKey: "acme/gen.pdf"})
		if err != nil {
			t.Fatalf("building asset: %v", err)
		}
		doc, err := f.hier.AddDocument(ctx, tr.floor.ID, "Plan", model.FileRef{FileBucket: "docs", FileKey: "acme/plan.dwg"})
		if err != nil {
			t.Fatalf("document: %v", err)
		}
		occ, err := f.hier.AddBuildingOccupant(ctx, tr.b1.ID, "Lobby Cafe")
		if err != nil {
			t.Fatalf("occupant: %v", err)
		}

		report, err := f.engine.Delete(ctx, model.KindBuilding, tr.b1.ID)
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		for _, row := range []struct{ table, id string }{
			{model.TableAssets, direct.ID},
			{model.TableAssets, tr.asset.ID},
			{model.TableDocuments, doc.ID},
			{model.TableOccupantTenants, occ.ID},
			{model.TableFloors, tr.floor.ID},
			{model.TableBuildings, tr.b1.ID},
		} {
			if !deleted(t, f.db, row.table, row.id) {
				t.Fatalf("expected %s/%s deleted", row.table, row.id)
			}
		}
		if deleted(t, f.db, model.TableBuildings, tr.b2.ID) {
			t.Fatalf("sibling building must stay live")
		}
		if got := report.Marked()[model.KindAsset]; got != 2 {
			t.Fatalf("expected 2 assets marked once each, got %d", got)
		}
		if len(f.tagger.tags) != 3 {
			t.Fatalf("expected 3 tags, got %d", len(f.tagger.tags))
		}
	})
}

func TestDeleteQueuesFailedTags(t *testing.T) {
	f := newFixture(t, nil)

	store := outbox.NewStore(f.db)
	if err := store.AutoMigrate(); err != nil {
		t.Fatalf("migrate outbox: %v", err)
	}
	f.engine.sink = store
	f.tagger.err = stderrors.New("credentials revoked")

	inTenant(t, "t1", func(ctx context.Context) {
		tr := buildSite(t, ctx, f.hier)

		report, err := f.engine.Delete(ctx, model.KindSite, tr.site.ID)
		if err != nil {
			t.Fatalf("tag failures must not fail the cascade: %v", err)
		}
		if report.State != StateCompleted || !report.RootMarked {
			t.Fatalf("unexpected report: %+v", report)
		}
		if len(report.TagFailures) != 1 || !report.TagFailures[0].Queued {
			t.Fatalf("expected one queued failure, got %+v", report.TagFailures)
		}

		n, err := store.CountPending(ctx)
		if err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 pending tag, got %d", n)
		}
	})
}

func TestDeleteWithBypassStaysInTargetTenant(t *testing.T) {
	f := newFixture(t, nil)

	var siteID, otherTenantSite string
	inTenant(t, "t1", func(ctx context.Context) {
		siteID = buildSite(t, ctx, f.hier).site.ID
	})
	inTenant(t, "t2", func(ctx context.Context) {
		otherTenantSite = buildSite(t, ctx, f.hier).site.ID
	})

	st := tenancy.State{TenantID: "t1", ActorID: "ops", Privileged: true}
	err := tenancy.Run(context.Background(), st, func(ctx context.Context) error {
		bctx, err := tenancy.Bypass(ctx, "customer offboarding")
		if err != nil {
			return err
		}
		report, err := f.engine.Delete(bctx, model.KindSite, siteID)
		if err != nil {
			return err
		}
		if report.TenantID != "t1" {
			t.Fatalf("unexpected tenant: %s", report.TenantID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("bypass delete: %v", err)
	}

	if !deleted(t, f.db, model.TableSites, siteID) {
		t.Fatalf("expected target site deleted")
	}
	if deleted(t, f.db, model.TableSites, otherTenantSite) {
		t.Fatalf("other tenant must be untouched")
	}
}

func TestHierarchyValidation(t *testing.T) {
	if _, err := NewHierarchy(DefaultEdges); err != nil {
		t.Fatalf("default edges: %v", err)
	}
	if len(MustHierarchy(DefaultEdges).ChildrenOf(model.KindFloor)) != 3 {
		t.Fatalf("floor should have three child edges")
	}

	cyclic := []Edge{
		{Parent: model.KindSite, Child: model.KindBuilding, ForeignKey: "site_id"},
		{Parent: model.KindBuilding, Child: model.KindSite, ForeignKey: "building_id"},
	}
	if _, err := NewHierarchy(cyclic); err == nil {
		t.Fatalf("expected cycle error")
	}
	if _, err := NewHierarchy([]Edge{{Parent: "planet", Child: model.KindSite, ForeignKey: "x"}}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
	if _, err := NewHierarchy([]Edge{{Parent: model.KindSite, Child: model.KindBuilding}}); err == nil {
		t.Fatalf("expected missing foreign key error")
	}
}

func TestChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	parts := chunk(ids, 2)
	if len(parts) != 3 || len(parts[2]) != 1 {
		t.Fatalf("unexpected chunks: %v", parts)
	}
	if chunk(nil, 2) != nil {
		t.Fatalf("empty input should produce no chunks")
	}
}
