package broadcast

import (
	"fmt"
	"strings"

	"github.com/cyberrange/simnet-backend/model"
)

// FilterType is the closed set of subscription filter kinds. Adding a kind is
// a compile-time-checked change: every switch over FilterType must handle it.
type FilterType int

const (
	// FilterAll delivers every published event regardless of topic or scope.
	FilterAll FilterType = iota
	// FilterByDevice delivers events scoped to a specific device key.
	FilterByDevice
	// FilterByOwner delivers events for devices owned by a specific owner.
	FilterByOwner
	// FilterByCriticality delivers events for devices in a criticality bucket.
	FilterByCriticality
	// FilterByValue delivers events whose generic filter value matches.
	FilterByValue
)

// String returns the wire name of the filter type.
func (f FilterType) String() string {
	switch f {
	case FilterAll:
		return "ALL"
	case FilterByDevice:
		return "BY_DEVICE"
	case FilterByOwner:
		return "BY_OWNER"
	case FilterByCriticality:
		return "BY_CRITICALITY"
	case FilterByValue:
		return "BY_FILTER_VALUE"
	}
	return fmt.Sprintf("FilterType(%d)", int(f))
}

// InvalidFilterTypeError reports a subscribe request with an unknown filter
// type. The subscription is rejected and never stored.
type InvalidFilterTypeError struct {
	Requested string
}

func (e *InvalidFilterTypeError) Error() string {
	return fmt.Sprintf("invalid filter type %q", e.Requested)
}

// ParseFilterType resolves a wire-level filter type name. BY_DEVICE is also
// accepted as DEVICE for compatibility with older clients.
func ParseFilterType(name string) (FilterType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ALL":
		return FilterAll, nil
	case "BY_DEVICE", "DEVICE":
		return FilterByDevice, nil
	case "BY_OWNER", "OWNER":
		return FilterByOwner, nil
	case "BY_CRITICALITY", "CRITICALITY":
		return FilterByCriticality, nil
	case "BY_FILTER_VALUE", "FILTER_VALUE":
		return FilterByValue, nil
	}
	return 0, &InvalidFilterTypeError{Requested: name}
}

// Subscription is a tagged filter variant: one filter type plus its value.
// A session holds at most one subscription at a time.
type Subscription struct {
	Type  FilterType
	Value string
}

// Matches reports whether an event with the given scope should be delivered
// to this subscription.
func (s *Subscription) Matches(scope model.EventScope) bool {
	switch s.Type {
	case FilterAll:
		return true
	case FilterByDevice:
		return scope.DeviceKey != "" && scope.DeviceKey == s.Value
	case FilterByOwner:
		return scope.Owner != "" && scope.Owner == s.Value
	case FilterByCriticality:
		return scope.Criticality != "" && strings.EqualFold(scope.Criticality, s.Value)
	case FilterByValue:
		return scope.FilterValue != "" && scope.FilterValue == s.Value
	}
	return false
}
