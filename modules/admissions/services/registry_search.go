package services

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type SearchHit struct {
	Name    string
	Country string
	Rank    int
	// Alias is set when the hit came through an alias spelling.
	Alias    string
	Distance int
}

// Search ranks canonical names and aliases containing the letters of query in order.
// A non-empty country restricts the hits.
func (r *Registry) Search(query, country string, limit int) []SearchHit {
	var targets []string
	type origin struct {
		name  string
		alias string
	}
	origins := map[string][]origin{}
	for _, inst := range r.institutions {
		if country != "" && inst.Country() != country {
			continue
		}
		if _, seen := origins[inst.Name()]; !seen {
			targets = append(targets, inst.Name())
		}
		origins[inst.Name()] = append(origins[inst.Name()], origin{name: inst.Name()})
	}
	for _, a := range r.aliasOrder {
		if _, seen := origins[a]; !seen {
			targets = append(targets, a)
		}
		origins[a] = append(origins[a], origin{name: r.aliases[a], alias: a})
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	var hits []SearchHit
	seen := map[string]bool{}
	for _, rk := range ranks {
		for _, o := range origins[rk.Target] {
			for _, inst := range r.institutions {
				if inst.Name() != o.name || (country != "" && inst.Country() != country) {
					continue
				}
				key := inst.Name() + "\x00" + inst.Country()
				if seen[key] {
					continue
				}
				seen[key] = true
				hits = append(hits, SearchHit{
					Name:     inst.Name(),
					Country:  inst.Country(),
					Rank:     inst.Rank(),
					Alias:    o.alias,
					Distance: rk.Distance,
				})
			}
		}
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
