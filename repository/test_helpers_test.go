package repository

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aisgo/ais-tenancy/logger"
	"github.com/aisgo/ais-tenancy/tenancy"
)

type widget struct {
	TenantModel
	Name  string `gorm:"column:name;type:varchar(64)"`
	Color string `gorm:"column:color;type:varchar(32)"`
}

func (widget) TableName() string { return "widgets" }

// setting 租户无关表
type setting struct {
	Name  string `gorm:"column:name;type:varchar(64);primaryKey"`
	Value string `gorm:"column:value;type:varchar(255)"`
}

func (setting) TableName() string { return "settings" }

// gadget 未注册表
type gadget struct {
	TenantModel
	Name string `gorm:"column:name;type:varchar(64)"`
}

func (gadget) TableName() string { return "gadgets" }

func newTestDB(t *testing.T) *gorm.DB {
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

	if err := db.AutoMigrate(&widget{}, &setting{}, &gadget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestInterceptor() *Interceptor {
	return NewInterceptor(MustRegistry([]string{"widgets"}, []string{"settings"}), logger.NewNop())
}

func newWidgetRepo(t *testing.T) Repository[widget] {
	t.Helper()
	return NewRepository[widget](newTestDB(t), newTestInterceptor())
}

// inTenant 在绑定 tenantID 的上下文中执行 fn
func inTenant(t *testing.T, tenantID string, fn func(ctx context.Context)) {
	t.Helper()
	st := tenancy.State{TenantID: tenantID, ActorID: "user-" + tenantID}
	if err := tenancy.Run(context.Background(), st, func(ctx context.Context) error {
		fn(ctx)
		return nil
	}); err != nil {
		t.Fatalf("run in tenant %s: %v", tenantID, err)
	}
}

func mustCreateWidget(t *testing.T, ctx context.Context, repo Repository[widget], name string) *widget {
	t.Helper()
	w := &widget{Name: name, Color: "red"}
	if err := repo.Create(ctx, w); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return w
}
