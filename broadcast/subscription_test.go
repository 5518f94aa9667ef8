package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberrange/simnet-backend/model"
)

func TestParseFilterType_WireNames(t *testing.T) {
	cases := map[string]FilterType{
		"ALL":             FilterAll,
		"BY_DEVICE":       FilterByDevice,
		"BY_OWNER":        FilterByOwner,
		"BY_CRITICALITY":  FilterByCriticality,
		"BY_FILTER_VALUE": FilterByValue,
	}
	for name, want := range cases {
		got, err := ParseFilterType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseFilterType_ShortAliases(t *testing.T) {
	cases := map[string]FilterType{
		"DEVICE":       FilterByDevice,
		"OWNER":        FilterByOwner,
		"CRITICALITY":  FilterByCriticality,
		"FILTER_VALUE": FilterByValue,
	}
	for name, want := range cases {
		got, err := ParseFilterType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseFilterType_UnknownRejected(t *testing.T) {
	_, err := ParseFilterType("BY_VIBES")
	require.Error(t, err)

	var invalidErr *InvalidFilterTypeError
	assert.ErrorAs(t, err, &invalidErr)
}

func TestSubscription_Matches(t *testing.T) {
	scope := model.EventScope{
		DeviceKey:   "d1",
		Owner:       "ops-team",
		Criticality: "HIGH",
		FilterValue: "scenario-7",
	}

	cases := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"all matches everything", Subscription{Type: FilterAll}, true},
		{"device hit", Subscription{Type: FilterByDevice, Value: "d1"}, true},
		{"device miss", Subscription{Type: FilterByDevice, Value: "d2"}, false},
		{"owner hit", Subscription{Type: FilterByOwner, Value: "ops-team"}, true},
		{"owner miss", Subscription{Type: FilterByOwner, Value: "dev-team"}, false},
		{"criticality case insensitive", Subscription{Type: FilterByCriticality, Value: "high"}, true},
		{"criticality miss", Subscription{Type: FilterByCriticality, Value: "LOW"}, false},
		{"filter value hit", Subscription{Type: FilterByValue, Value: "scenario-7"}, true},
		{"filter value miss", Subscription{Type: FilterByValue, Value: "scenario-8"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.sub.Matches(scope))
		})
	}
}

func TestSubscription_MatchesEmptyScope(t *testing.T) {
	// Scoped subscriptions never match an event that carries no scoping keys.
	empty := model.EventScope{}

	assert.True(t, (&Subscription{Type: FilterAll}).Matches(empty))
	assert.False(t, (&Subscription{Type: FilterByDevice, Value: "d1"}).Matches(empty))
	assert.False(t, (&Subscription{Type: FilterByOwner, Value: "ops"}).Matches(empty))
}
