package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want []DBOrdering
	}{
		{name: "empty", val: ""},
		{name: "ascending", val: "domain", want: []DBOrdering{{Field: "domain", Ascending: true}}},
		{
			name: "mixed",
			val:  " -started_at , domain",
			want: []DBOrdering{{Field: "started_at"}, {Field: "domain", Ascending: true}},
		},
		{name: "blank fields", val: ",-,, status", want: []DBOrdering{{Field: "status", Ascending: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.val))
		})
	}
}

func TestDBOrdering_String(t *testing.T) {
	assert.Equal(t, `"started_at" DESC`, DBOrdering{Field: "started_at"}.String())
	assert.Equal(t, `"rows_ingested" ASC`, DBOrdering{Field: "rows_ingested", Ascending: true}.String())
	assert.Equal(t, `"a""b" ASC`, DBOrdering{Field: `a"b`, Ascending: true}.String())
}
