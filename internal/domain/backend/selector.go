package backend

// Select picks the backend for a new call from a directory snapshot.
// It is a pure policy function: filter to Active, take the minimum
// capacity score, break ties by lexical backend ID so the choice is
// deterministic for a given snapshot. An empty eligible set returns
// ErrNoCapacity.
func Select(snapshot []Info) (Info, error) {
	var best Info
	found := false
	for _, info := range snapshot {
		if info.Status != StatusActive {
			continue
		}
		if !found {
			best = info
			found = true
			continue
		}
		if info.CapacityScore < best.CapacityScore ||
			(info.CapacityScore == best.CapacityScore && info.ID < best.ID) {
			best = info
		}
	}
	if !found {
		return Info{}, ErrNoCapacity
	}
	return best, nil
}
