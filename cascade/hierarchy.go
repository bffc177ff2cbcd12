package cascade

import (
	"fmt"

	"github.com/aisgo/ais-tenancy/model"
	"github.com/aisgo/ais-tenancy/repository"
)

/* ========================================================================
 * Hierarchy Table - 声明式层级表
 * ========================================================================
 * 职责: 描述 父种类 -> 子种类 的外键关系，由一个通用遍历函数使用
 * 规则: 新增实体种类只需在 DefaultEdges 中加一行
 * ======================================================================== */

// Edge 一条父子关系
type Edge struct {
	Parent     model.Kind
	Child      model.Kind
	ForeignKey string
	// Where 附加的静态条件（如 floor_id IS NULL）
	Where repository.Filter
}

// DefaultEdges 固定层级
var DefaultEdges = []Edge{
	{Parent: model.KindCustomer, Child: model.KindSite, ForeignKey: "customer_id"},
	{Parent: model.KindSite, Child: model.KindBuilding, ForeignKey: "site_id"},
	{Parent: model.KindBuilding, Child: model.KindFloor, ForeignKey: "building_id"},
	{Parent: model.KindBuilding, Child: model.KindAsset, ForeignKey: "building_id", Where: repository.Filter{"floor_id": nil}},
	{Parent: model.KindBuilding, Child: model.KindOccupantTenant, ForeignKey: "building_id", Where: repository.Filter{"floor_id": nil}},
	{Parent: model.KindFloor, Child: model.KindAsset, ForeignKey: "floor_id"},
	{Parent: model.KindFloor, Child: model.KindOccupantTenant, ForeignKey: "floor_id"},
	{Parent: model.KindFloor, Child: model.KindDocument, ForeignKey: "floor_id"},
}

// Hierarchy 校验后的层级表
type Hierarchy struct {
	children map[model.Kind][]Edge
}

// NewHierarchy 校验边并建立索引，拒绝未知种类与环
func NewHierarchy(edges []Edge) (*Hierarchy, error) {
	h := &Hierarchy{children: make(map[model.Kind][]Edge)}
	for _, e := range edges {
		if !e.Parent.Valid() || !e.Child.Valid() {
			return nil, fmt.Errorf("unknown kind in edge %s -> %s", e.Parent, e.Child)
		}
		if e.ForeignKey == "" {
			return nil, fmt.Errorf("edge %s -> %s has no foreign key", e.Parent, e.Child)
		}
		h.children[e.Parent] = append(h.children[e.Parent], e)
	}

	for kind := range h.children {
		if h.reaches(kind, kind, map[model.Kind]bool{}) {
			return nil, fmt.Errorf("hierarchy contains a cycle through %s", kind)
		}
	}
	return h, nil
}

// MustHierarchy 创建层级表，失败时 panic
func MustHierarchy(edges []Edge) *Hierarchy {
	h, err := NewHierarchy(edges)
	if err != nil {
		panic(err)
	}
	return h
}

// ChildrenOf 返回 kind 的所有子边
func (h *Hierarchy) ChildrenOf(kind model.Kind) []Edge {
	return h.children[kind]
}

func (h *Hierarchy) reaches(from, target model.Kind, seen map[model.Kind]bool) bool {
	for _, e := range h.children[from] {
		if e.Child == target {
			return true
		}
		if seen[e.Child] {
			continue
		}
		seen[e.Child] = true
		if h.reaches(e.Child, target, seen) {
			return true
		}
	}
	return false
}
