// Package merge resolves conflicting canonical items across sources,
// keeping the highest-priority record per catalog entry and a provenance
// trail of everything it displaced.
package merge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/stroysmeta/normcat-cli/internal/model"
)

// Merge deduplicates items by catalog code and region. Records for the
// same code in distinct regions are distinct catalog entries and all
// survive. A record without a region is federal scope and competes
// against every regional record for its code, so a federal price
// supersedes the territorial ones. Within a conflict the survivor is
// chosen by category precedence (federal beats territorial beats derived
// norms), then by the newest validity start, then by source name and
// region ascending. Losers are recorded in the winner's provenance,
// never discarded silently.
//
// The function is pure and order-independent: permuting the input yields
// the same result in the same order.
func Merge(items []*model.CanonicalItem) []*model.CanonicalItem {
	if len(items) <= 1 {
		return items
	}

	groups := make(map[string][]*model.CanonicalItem)
	codes := make([]string, 0, len(items))
	for _, item := range items {
		if _, seen := groups[item.Code]; !seen {
			codes = append(codes, item.Code)
		}
		groups[item.Code] = append(groups[item.Code], item)
	}
	// Output ordering must not depend on input ordering.
	sort.Strings(codes)

	out := make([]*model.CanonicalItem, 0, len(codes))
	for _, code := range codes {
		out = append(out, resolveCode(groups[code])...)
	}
	return out
}

// resolveCode splits one code group by region. When a federal-scope
// record (empty region) is present the whole group collapses to one
// winner; otherwise each region resolves on its own, in region order.
func resolveCode(group []*model.CanonicalItem) []*model.CanonicalItem {
	for _, item := range group {
		if item.Region == "" {
			return []*model.CanonicalItem{resolve(group)}
		}
	}

	byRegion := make(map[string][]*model.CanonicalItem)
	regions := make([]string, 0, len(group))
	for _, item := range group {
		if _, seen := byRegion[item.Region]; !seen {
			regions = append(regions, item.Region)
		}
		byRegion[item.Region] = append(byRegion[item.Region], item)
	}
	sort.Strings(regions)

	out := make([]*model.CanonicalItem, 0, len(regions))
	for _, region := range regions {
		out = append(out, resolve(byRegion[region]))
	}
	return out
}

// resolve picks the winner of one conflict group and attaches provenance
// for the records it supersedes.
func resolve(group []*model.CanonicalItem) *model.CanonicalItem {
	if len(group) == 1 {
		return group[0]
	}

	sort.SliceStable(group, func(a, b int) bool {
		return precedes(group[a], group[b])
	})

	winner := group[0]
	for _, loser := range group[1:] {
		winner.Provenance.Supersedes = append(winner.Provenance.Supersedes, model.SupersededRecord{
			SourceName: loser.SourceName,
			Category:   loser.Category,
			Region:     loser.Region,
			ValidFrom:  loser.ValidFrom,
			TotalCost:  loser.TotalCost,
		})
	}

	zap.L().Debug("merge: resolved conflict",
		zap.String("code", winner.Code),
		zap.String("winner_source", winner.SourceName),
		zap.Int("superseded", len(group)-1),
	)
	return winner
}

// precedes reports whether a outranks b: higher category priority first,
// then later validFrom, then source name and region ascending so the
// ordering is total over distinct records.
func precedes(a, b *model.CanonicalItem) bool {
	if pa, pb := a.Category.Priority(), b.Category.Priority(); pa != pb {
		return pa > pb
	}
	if !a.ValidFrom.Equal(b.ValidFrom) {
		return a.ValidFrom.After(b.ValidFrom)
	}
	if a.SourceName != b.SourceName {
		return a.SourceName < b.SourceName
	}
	return a.Region < b.Region
}
