package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricPoint_String(t *testing.T) {
	p := MetricPoint{
		Name:      MeasurementListeners,
		Tags:      map[string]string{TagMount: "jazz", TagHost: "radio1"},
		Value:     5,
		Timestamp: 1700000000000000000,
	}
	assert.Equal(t, "listeners{host=radio1, mount=jazz} value=5 @1700000000000000000", p.String())
}

func TestMountRecord_MountName(t *testing.T) {
	name := "/live"
	empty := ""

	got, ok := MountRecord{Mount: &name}.MountName()
	assert.True(t, ok)
	assert.Equal(t, "/live", got)

	_, ok = MountRecord{}.MountName()
	assert.False(t, ok)

	_, ok = MountRecord{Mount: &empty}.MountName()
	assert.False(t, ok)
}
