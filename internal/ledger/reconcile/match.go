package reconcile

import (
	"fmt"
	"sort"

	"github.com/meridian-books/meridian/internal/ledger/shared"
)

type candidate struct {
	line  Line
	split SplitCandidate
	score int
	exact bool
	days  int
}

// matchProposals derives the proposal set for the given unmatched lines and
// splits. Candidates must agree on amount within the tolerance and on date
// within the window. Exact-amount pairs always outrank tolerance pairs:
// a tolerance pair's score starts past the worst possible exact score.
// Ties break on (score, line id, split id), then one side is consumed per
// pair greedily, so the output is deterministic for a given input.
func matchProposals(lines []Line, splits []SplitCandidate, p Params) []Proposal {
	var cands []candidate
	for _, line := range lines {
		for _, split := range splits {
			days := shared.DaysApart(line.PostedDate, split.TxDate)
			if days > p.DateWindowDays {
				continue
			}
			diff := line.Amount.Sub(split.Amount).Abs()
			if diff.GreaterThan(p.AmountTolerance) {
				continue
			}
			exact := diff.IsZero()
			score := days
			if !exact {
				score += p.DateWindowDays + 1
			}
			cands = append(cands, candidate{line: line, split: split, score: score, exact: exact, days: days})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score < cands[j].score
		}
		if cands[i].line.ID != cands[j].line.ID {
			return cands[i].line.ID < cands[j].line.ID
		}
		return cands[i].split.ID < cands[j].split.ID
	})

	usedLines := map[int64]struct{}{}
	usedSplits := map[int64]struct{}{}
	var out []Proposal
	for _, c := range cands {
		if _, taken := usedLines[c.line.ID]; taken {
			continue
		}
		if _, taken := usedSplits[c.split.ID]; taken {
			continue
		}
		usedLines[c.line.ID] = struct{}{}
		usedSplits[c.split.ID] = struct{}{}
		out = append(out, Proposal{
			ID:          len(out) + 1,
			LineID:      c.line.ID,
			SplitID:     c.split.ID,
			Score:       c.score,
			Reason:      reasonFor(c),
			LineDate:    c.line.PostedDate,
			SplitDate:   c.split.TxDate,
			LineAmount:  c.line.Amount,
			SplitAmount: c.split.Amount,
		})
	}
	return out
}

func reasonFor(c candidate) string {
	if c.exact {
		return fmt.Sprintf("exact amount %s, %dd apart", c.line.Amount.StringFixed(2), c.days)
	}
	diff := c.line.Amount.Sub(c.split.Amount).Abs()
	return fmt.Sprintf("amount within tolerance (diff %s), %dd apart", diff.StringFixed(2), c.days)
}
