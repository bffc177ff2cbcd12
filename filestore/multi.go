package filestore

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// MultiTagger 依次调用所有后端，汇总全部失败
type MultiTagger struct {
	taggers []Tagger
}

// NewMultiTagger 组合多个标记器
func NewMultiTagger(taggers ...Tagger) *MultiTagger {
	return &MultiTagger{taggers: taggers}
}

// Name 后端名称
func (m *MultiTagger) Name() string { return "multi" }

// Tag 任一后端失败即返回错误，但不会跳过其余后端
func (m *MultiTagger) Tag(ctx context.Context, tag DeletionTag) error {
	var result *multierror.Error
	for _, t := range m.taggers {
		if err := t.Tag(ctx, tag); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", t.Name(), err))
		}
	}
	return result.ErrorOrNil()
}
