package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	MeasurementListeners      = "listeners"
	MeasurementListenersTotal = "listenerstotal"

	TagHost  = "host"
	TagMount = "mount"

	// FieldValue is the single integer field written for every point.
	FieldValue = "value"
)

// MetricPoint is one time-series observation produced by a collection cycle.
type MetricPoint struct {
	Name      string
	Tags      map[string]string
	Value     int64
	Timestamp int64 // nanoseconds since the Unix epoch
}

// String renders the point as name{k=v, ...} value=N @ts with tags sorted by key.
func (p MetricPoint) String() string {
	keys := make([]string, 0, len(p.Tags))
	for k := range p.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+p.Tags[k])
	}
	return fmt.Sprintf("%s{%s} value=%d @%d", p.Name, strings.Join(pairs, ", "), p.Value, p.Timestamp)
}
