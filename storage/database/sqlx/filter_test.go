package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jobify/jobify/core/application"
)

func TestFilterClause(t *testing.T) {
	tests := []struct {
		name      string
		filter    application.QueryFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{name: "no filter", filter: application.QueryFilter{}},
		{
			name:      "account",
			filter:    application.QueryFilter{AccountID: "a1"},
			wantWhere: " WHERE account_id = $1",
			wantArgs:  []interface{}{"a1"},
		},
		{
			name:      "all",
			filter:    application.QueryFilter{AccountID: "a1", JobPreference: "Physics", Search: "amina"},
			wantWhere: " WHERE account_id = $1 AND LOWER(job_preference) = LOWER($2) AND (LOWER(full_name) LIKE $3 OR email LIKE $3)",
			wantArgs:  []interface{}{"a1", "Physics", "%amina%"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := filterClause(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
