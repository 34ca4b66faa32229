package repository

import (
	"testing"

	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name      string
		filter    model.UnboxFilter
		wantWhere string
		wantArgs  pgx.NamedArgs
	}{
		{
			name:      "no filter",
			filter:    model.UnboxFilter{UnboxerID: "ignored"},
			wantWhere: "",
			wantArgs:  pgx.NamedArgs{},
		},
		{
			name:      "only coverts",
			filter:    model.UnboxFilter{OnlyCoverts: true},
			wantWhere: " WHERE rarity = ANY(@rarities)",
			wantArgs:  pgx.NamedArgs{"rarities": model.HighRarities},
		},
		{
			name:      "only personal",
			filter:    model.UnboxFilter{OnlyPersonal: true, UnboxerID: "u-1"},
			wantWhere: " WHERE unboxer_id = @unboxer_id",
			wantArgs:  pgx.NamedArgs{"unboxer_id": "u-1"},
		},
		{
			name:      "both combine with AND",
			filter:    model.UnboxFilter{OnlyCoverts: true, OnlyPersonal: true, UnboxerID: "u-1"},
			wantWhere: " WHERE rarity = ANY(@rarities) AND unboxer_id = @unboxer_id",
			wantArgs:  pgx.NamedArgs{"rarities": model.HighRarities, "unboxer_id": "u-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildFilter(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
