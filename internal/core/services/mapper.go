package services

import (
	"fmt"

	"iceflux/internal/core/domain"
	apperrors "iceflux/pkg/errors"
)

// MissingMountPolicy decides what happens to a record without a mount identifier.
type MissingMountPolicy string

const (
	// MissingMountFail rejects the whole snapshot.
	MissingMountFail MissingMountPolicy = "fail"
	// MissingMountSkip drops the record's per-mount point but keeps its listeners in the total.
	MissingMountSkip MissingMountPolicy = "skip"
)

// MappedBatch is the output of one mapping pass.
type MappedBatch struct {
	Points         []domain.MetricPoint
	TotalListeners int64
	// SkippedMounts counts records dropped under MissingMountSkip.
	SkippedMounts int
}

// Mapper turns a status snapshot into metric points. It performs no I/O and never
// reads a clock; the timestamp is always supplied by the caller.
type Mapper struct {
	policy MissingMountPolicy
}

func NewMapper(policy MissingMountPolicy) *Mapper {
	if policy == "" {
		policy = MissingMountFail
	}
	return &Mapper{policy: policy}
}

// Map emits one listeners point per record, in snapshot order, followed by exactly one
// listenerstotal point. Every point carries the given timestamp.
func (m *Mapper) Map(snapshot domain.StatusSnapshot, host string, timestamp int64) (MappedBatch, error) {
	batch := MappedBatch{
		Points: make([]domain.MetricPoint, 0, snapshot.Len()+1),
	}

	for i, record := range snapshot.Mounts {
		batch.TotalListeners += record.Listeners

		mount, ok := record.MountName()
		if !ok {
			if m.policy == MissingMountSkip {
				batch.SkippedMounts++
				continue
			}
			return MappedBatch{}, apperrors.NewMapError(
				domain.ErrMissingMount, fmt.Sprintf("record %d has no mount", i),
			).WithContext("index", i).WithContext("content_type", record.ContentType)
		}

		batch.Points = append(batch.Points, domain.MetricPoint{
			Name: domain.MeasurementListeners,
			Tags: map[string]string{
				domain.TagHost:  host,
				domain.TagMount: mount,
			},
			Value:     record.Listeners,
			Timestamp: timestamp,
		})
	}

	batch.Points = append(batch.Points, domain.MetricPoint{
		Name:      domain.MeasurementListenersTotal,
		Tags:      map[string]string{domain.TagHost: host},
		Value:     batch.TotalListeners,
		Timestamp: timestamp,
	})

	return batch, nil
}
