package library

// plan is the outcome of comparing discovered files against the stored
// snapshot.
type plan struct {
	unchanged []Track  // stored and still present
	fresh     []string // present but not stored
	missing   []Track  // stored but gone
	forgotten []string // suppression rows whose file is gone
}

// reconcile partitions discovered URIs against the owned part of the store.
// A URI suppressed by deduplication is skipped while its survivor remains;
// once the survivor goes missing the URI is treated as fresh again.
func reconcile(snapshot map[string]Track, suppressed map[string]string, discovered []string) plan {
	var p plan
	present := make(map[string]bool, len(discovered))
	for _, uri := range discovered {
		present[uri] = true
	}

	missingIDs := make(map[string]bool)
	for uri, t := range snapshot {
		if !present[uri] {
			p.missing = append(p.missing, t)
			missingIDs[t.ID] = true
		}
	}

	for _, uri := range discovered {
		if t, ok := snapshot[uri]; ok {
			p.unchanged = append(p.unchanged, t)
			continue
		}
		if survivor, ok := suppressed[uri]; ok && !missingIDs[survivor] {
			continue
		}
		p.fresh = append(p.fresh, uri)
	}

	for uri := range suppressed {
		if !present[uri] {
			p.forgotten = append(p.forgotten, uri)
		}
	}
	return p
}
