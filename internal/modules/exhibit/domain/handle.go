package domain

import (
	datasetdomain "onsetscore/internal/modules/dataset/domain"
)

// Handle is a playback resource for one fetched exhibit. Release frees it;
// calling Release more than once is harmless.
type Handle interface {
	Name() string
	Location() string
	Release() error
}

// Key is where an exhibit lives in the data store, which doubles as its
// canonical location when nothing is cached.
func Key(ds datasetdomain.Dataset, participantID, exhibitName string) string {
	return datasetdomain.ExhibitURL(ds.ExhibitPath, participantID, exhibitName)
}

// Names lists the distinct resolved exhibit names of a participant, in trial
// order. Trials without a recording are skipped.
func Names(p *datasetdomain.Participant) []string {
	seen := make(map[string]struct{}, len(p.Trials))
	out := make([]string, 0, len(p.Trials))
	for _, t := range p.Trials {
		if t.ExhibitName == "" {
			continue
		}
		if _, ok := seen[t.ExhibitName]; ok {
			continue
		}
		seen[t.ExhibitName] = struct{}{}
		out = append(out, t.ExhibitName)
	}
	return out
}
