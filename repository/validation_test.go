package repository

import (
	"testing"

	"github.com/aisgo/ais-tenancy/errors"
)

func TestValidateOrderBy(t *testing.T) {
	tests := []struct {
		orderBy string
		wantErr bool
	}{
		{"", false},
		{"create_time ASC", false},
		{"level desc", false},
		{"name", false},
		{"level ASC, name DESC", false},

		{"floors.level ASC", true},
		{"id; DROP TABLE sites", true},
		{"id--", true},
		{"id RANDOM", true},
		{"id ASC DESC", true},
		{"COUNT(*)", true},
		{"(SELECT tenant_id FROM customers)", true},
	}

	for _, tt := range tests {
		err := ValidateOrderBy(tt.orderBy)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ValidateOrderBy(%q) error = %v, wantErr %v", tt.orderBy, err, tt.wantErr)
		}
		if err != nil && errors.Code(err) != errors.ErrCodeInvalidArgument {
			t.Fatalf("ValidateOrderBy(%q) should be InvalidArgument, got %v", tt.orderBy, err)
		}
	}
}

func TestValidateSelect(t *testing.T) {
	tests := []struct {
		selects []string
		wantErr bool
	}{
		{nil, false},
		{[]string{"id", "name", "tenant_id"}, false},

		{[]string{"sites.id"}, true},
		{[]string{"COUNT(*) AS count"}, true},
		{[]string{"id", "name; DROP TABLE sites"}, true},
		{[]string{""}, true},
	}

	for _, tt := range tests {
		if err := ValidateSelect(tt.selects); (err != nil) != tt.wantErr {
			t.Fatalf("ValidateSelect(%v) error = %v, wantErr %v", tt.selects, err, tt.wantErr)
		}
	}
}

func TestInvalidOptionIsRecorded(t *testing.T) {
	opt := ApplyOptions([]Option{WithOrderBy("level DESC"), WithSelect("id", "floors.name")})
	if opt.OrderBy != "level DESC" {
		t.Fatalf("valid order should be kept, got %q", opt.OrderBy)
	}
	if len(opt.Select) != 0 || opt.Err() == nil {
		t.Fatalf("invalid select should be rejected: %v %v", opt.Select, opt.Err())
	}
	biz, ok := errors.AsBizError(opt.Err())
	if !ok || biz.Details["option"] != "select" {
		t.Fatalf("unexpected error: %v", opt.Err())
	}
}
