package domain

// MountRecord is the status of one stream endpoint as reported in a single poll.
type MountRecord struct {
	// Mount is nil when the server reported no identifier for the entry.
	Mount       *string
	Fallback    *string
	Listeners   int64
	ContentType string
}

// MountName returns the mount identifier and whether one was reported.
func (r MountRecord) MountName() (string, bool) {
	if r.Mount == nil || *r.Mount == "" {
		return "", false
	}
	return *r.Mount, true
}

// StatusSnapshot holds every mount record of one poll, in document order.
type StatusSnapshot struct {
	Mounts []MountRecord
}

// Len returns the number of mount records.
func (s StatusSnapshot) Len() int {
	return len(s.Mounts)
}
