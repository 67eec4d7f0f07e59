package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/theoremus-urban-solutions/smartbus/gtfsrt"
)

func ids(entities []gtfsrt.VehicleEntity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func TestFilterByRoutePrefix(t *testing.T) {
	entities := []gtfsrt.VehicleEntity{
		{ID: "a", RouteID: "4820_1"},
		{ID: "b", RouteID: "1234_1"},
		{ID: "c", RouteID: ""},
		{ID: "d", RouteID: "4820"},
		{ID: "e", RouteID: "48"},
		{ID: "a", RouteID: "4820_1"},
		{ID: "f", RouteID: "x4820"},
	}
	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{name: "operator prefix", prefix: "4820", want: []string{"a", "d", "a"}},
		{name: "case sensitive", prefix: "X48", want: []string{}},
		{name: "empty prefix keeps routed entities", prefix: "", want: []string{"a", "b", "d", "e", "a", "f"}},
		{name: "no match", prefix: "9", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(FilterByRoutePrefix(entities, tt.prefix)))
		})
	}
}

func TestFilterByRoutePrefix_DoesNotAlias(t *testing.T) {
	entities := []gtfsrt.VehicleEntity{{ID: "a", RouteID: "4820_1"}}
	out := FilterByRoutePrefix(entities, "4820")
	out[0].ID = "changed"
	assert.Equal(t, "a", entities[0].ID)
	assert.NotNil(t, FilterByRoutePrefix(nil, "4820"))
}
