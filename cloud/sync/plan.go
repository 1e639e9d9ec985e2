package sync

import (
	"sort"

	"github.com/ndx-io/NDX/errors"
)

// Plan is the set of transfers a sync run will perform, computed from the
// local tree, the remote tree, and the last-sync index. All slices are
// sorted.
type Plan struct {
	Mode Mode `json:"mode"`

	Uploads      []string `json:"uploads,omitempty"`       // create remotely
	Downloads    []string `json:"downloads,omitempty"`     // create locally
	DeleteLocal  []string `json:"delete_local,omitempty"`  // deleted remotely, propagate
	DeleteRemote []string `json:"delete_remote,omitempty"` // deleted locally, propagate
	UpdateRemote []string `json:"update_remote,omitempty"` // content differs, local wins
	UpdateLocal  []string `json:"update_local,omitempty"`  // content differs, remote wins

	// Conflicts are documents changed on both sides since the last sync
	// (or added on both sides with different content). They are skipped.
	Conflicts []string `json:"conflicts,omitempty"`

	// SkippedTypes are document types whose group digests matched, so
	// their documents were never compared individually.
	SkippedTypes []string `json:"skipped_types,omitempty"`
}

// Empty reports whether the plan performs no transfers.
func (p Plan) Empty() bool {
	return p.Actions() == 0
}

// Actions counts the transfers the plan will perform. Conflicts and
// skipped types are not actions.
func (p Plan) Actions() int {
	return len(p.Uploads) + len(p.Downloads) +
		len(p.DeleteLocal) + len(p.DeleteRemote) +
		len(p.UpdateRemote) + len(p.UpdateLocal)
}

// ComputePlan derives the transfer plan for one sync mode.
//
// The two mirror modes ignore the index: they force one side to match the
// other. UploadNew and DownloadNew only create documents missing from one
// side. TwoWay compares both sides against the index to tell additions
// from deletions: a document present remotely but not locally is a
// download if the index never saw it, but a remote deletion to propagate
// if the index saw it locally.
func ComputePlan(mode Mode, local, remote *Tree, idx Index) (Plan, error) {
	if local == nil || remote == nil {
		return Plan{}, errors.NewInvalidRequestError("both sides of a sync plan are required")
	}

	localLeaves := local.Leaves()
	remoteLeaves := remote.Leaves()
	p := Plan{Mode: mode}

	switch mode {
	case UploadNew:
		p.Uploads = missingFrom(localLeaves, remoteLeaves, nil)
		return p, nil

	case DownloadNew:
		p.Downloads = missingFrom(remoteLeaves, localLeaves, nil)
		return p, nil

	case MirrorToRemote:
		p.Uploads = missingFrom(localLeaves, remoteLeaves, nil)
		p.DeleteRemote = missingFrom(remoteLeaves, localLeaves, nil)

	case MirrorFromRemote:
		p.Downloads = missingFrom(remoteLeaves, localLeaves, nil)
		p.DeleteLocal = missingFrom(localLeaves, remoteLeaves, nil)

	case TwoWay:
		lastLocal := toSet(idx.LocalIDs)
		lastRemote := toSet(idx.RemoteIDs)

		addedLocal := addedSince(localLeaves, lastLocal)
		addedRemote := addedSince(remoteLeaves, lastRemote)

		conflicts := make(map[string]struct{})
		for id := range addedLocal {
			if _, ok := addedRemote[id]; !ok {
				continue
			}
			// Added on both sides. Identical content is convergence, not
			// a conflict.
			if localLeaves[id] != remoteLeaves[id] {
				conflicts[id] = struct{}{}
			}
		}

		// A document the index saw on one side but that side no longer
		// has was deleted there; propagate unless the other side just
		// re-added it.
		deleteLocal := make(map[string]struct{})
		for id := range lastRemote {
			if _, stillRemote := remoteLeaves[id]; stillRemote {
				continue
			}
			if _, justAdded := addedLocal[id]; justAdded {
				continue
			}
			if _, existsLocally := localLeaves[id]; existsLocally {
				deleteLocal[id] = struct{}{}
			}
		}
		deleteRemote := make(map[string]struct{})
		for id := range lastLocal {
			if _, stillLocal := localLeaves[id]; stillLocal {
				continue
			}
			if _, justAdded := addedRemote[id]; justAdded {
				continue
			}
			if _, existsRemotely := remoteLeaves[id]; existsRemotely {
				deleteRemote[id] = struct{}{}
			}
		}

		// New on one side only. Documents scheduled for deletion must not
		// be copied back to the side that deleted them.
		skip := union(conflicts, deleteLocal, deleteRemote)
		p.Uploads = missingFrom(localLeaves, remoteLeaves, skip)
		p.Downloads = missingFrom(remoteLeaves, localLeaves, skip)
		p.DeleteLocal = sortedIDs(deleteLocal)
		p.DeleteRemote = sortedIDs(deleteRemote)
		p.Conflicts = sortedIDs(conflicts)

	default:
		return Plan{}, errors.NewInvalidRequestError("unknown sync mode %q", mode)
	}

	contentPhase(mode, local, remote, idx, &p)
	return p, nil
}

// contentPhase finds documents present on both sides with different
// content. Whole types are skipped when their group digests match.
func contentPhase(mode Mode, local, remote *Tree, idx Index, p *Plan) {
	remoteGroups := remote.GroupHashes()

	localGroups := local.GroupHashes()
	var divergentTypes []string
	for docType, localHash := range localGroups {
		remoteHash, ok := remoteGroups[docType]
		if !ok {
			continue
		}
		if localHash == remoteHash {
			p.SkippedTypes = append(p.SkippedTypes, docType)
			continue
		}
		divergentTypes = append(divergentTypes, docType)
	}
	sort.Strings(p.SkippedTypes)
	sort.Strings(divergentTypes)

	conflicted := toSet(p.Conflicts)

	for _, docType := range divergentTypes {
		localLeaves := local.GroupLeaves(docType)
		remoteLeaves := remote.GroupLeaves(docType)

		ids := make([]string, 0, len(localLeaves))
		for id := range localLeaves {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			localHash := localLeaves[id]
			remoteHash, shared := remoteLeaves[id]
			if !shared || localHash == remoteHash {
				continue
			}
			if _, ok := conflicted[id]; ok {
				continue
			}

			switch mode {
			case MirrorToRemote:
				p.UpdateRemote = append(p.UpdateRemote, id)
			case MirrorFromRemote:
				p.UpdateLocal = append(p.UpdateLocal, id)
			case TwoWay:
				// The index digest tells which side moved. Without a
				// baseline the change cannot be attributed, so it is
				// treated as a conflict.
				last, ok := idx.DigestOf(id)
				switch {
				case ok && localHash != last && remoteHash == last:
					p.UpdateRemote = append(p.UpdateRemote, id)
				case ok && remoteHash != last && localHash == last:
					p.UpdateLocal = append(p.UpdateLocal, id)
				default:
					p.Conflicts = append(p.Conflicts, id)
				}
			}
		}
	}

	sort.Strings(p.Conflicts)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// missingFrom returns, sorted, the ids in a that are absent from b and
// not in skip.
func missingFrom(a map[string]Hash, b map[string]Hash, skip map[string]struct{}) []string {
	var out []string
	for id := range a {
		if _, ok := b[id]; ok {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// addedSince returns the ids in current that the last-sync set lacks.
func addedSince(current map[string]Hash, last map[string]struct{}) map[string]struct{} {
	added := make(map[string]struct{})
	for id := range current {
		if _, ok := last[id]; !ok {
			added[id] = struct{}{}
		}
	}
	return added
}

func union(sets ...map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, set := range sets {
		for id := range set {
			out[id] = struct{}{}
		}
	}
	return out
}

func sortedIDs(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
