package repository

import (
	"testing"

	"github.com/stemsi/quizsync/internal/model"
	"github.com/stretchr/testify/require"
)

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `100\%`, escapeLike("100%"))
	require.Equal(t, `snake\_case`, escapeLike("snake_case"))
	require.Equal(t, `a\\b`, escapeLike(`a\b`))
	require.Equal(t, "plain", escapeLike("plain"))
}

func TestFilterClause(t *testing.T) {
	tests := []struct {
		name      string
		filter    model.QuizFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "public only",
			wantWhere: " WHERE is_public",
		},
		{
			name:      "category",
			filter:    model.QuizFilter{Category: "Science"},
			wantWhere: " WHERE is_public AND category = $1",
			wantArgs:  []any{"Science"},
		},
		{
			name:      "category and query",
			filter:    model.QuizFilter{Category: "Math", Query: "  50%  "},
			wantWhere: " WHERE is_public AND category = $1 AND (name ILIKE $2 OR description ILIKE $2)",
			wantArgs:  []any{"Math", `%50\%%`},
		},
		{
			name:      "blank query ignored",
			filter:    model.QuizFilter{Query: "   "},
			wantWhere: " WHERE is_public",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterClause(tt.filter)
			require.Equal(t, tt.wantWhere, where)
			require.Equal(t, tt.wantArgs, args)
		})
	}
}
