// Package matching proposes and commits links between bank transactions and
// internal payment/expense records. Scoring and auto-match planning are pure
// functions over in-memory sets; handlers load the sets and persist the plan.
package matching

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"LedgerCorpSuite/api/constants"
	"LedgerCorpSuite/api/recon/reconerr"
	"LedgerCorpSuite/api/recon/transactions"
	"LedgerCorpSuite/internal/config"
	"LedgerCorpSuite/internal/textnorm"
)

// Matchable is an internal record eligible to settle a bank transaction.
// Outstanding starts at Amount and shrinks as matches commit.
type Matchable struct {
	MatchableID string          `json:"matchable_id"`
	Kind        string          `json:"kind"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Reference   string          `json:"reference"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding_balance"`
}

// Candidate is a scored pairing of one matchable against one transaction.
type Candidate struct {
	Matchable
	Score     float64 `json:"score"`
	MatchType string  `json:"match_type"`
}

// Planned is one auto-match decision awaiting persistence.
type Planned struct {
	TransactionID string
	MatchableID   string
	MatchableKind string
	MatchType     string
	Amount        decimal.Decimal
	Score         float64
}

// scoreEpsilon absorbs float rounding when comparing scores against the
// configured floor and margin.
const scoreEpsilon = 1e-9

// CheckMatchAmount validates a manual match amount against the matchable's
// outstanding balance: positive, and never more than what is left to settle.
func CheckMatchAmount(amount, outstanding decimal.Decimal) error {
	if !amount.IsPositive() {
		return reconerr.Validation(constants.ErrInvalidRequest)
	}
	if amount.GreaterThan(outstanding) {
		return reconerr.Validation(constants.ErrAmountExceedsBalance)
	}
	return nil
}

func dateDistanceDays(a, b time.Time) int {
	d := int(a.Sub(b).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// ScoreCandidates returns every qualifying matchable for the transaction,
// best first. Qualification: same currency, outstanding balance equal to the
// transaction amount, date within the tuning window. Reference equality
// upgrades a candidate to an exact match at score 1.0; otherwise the score
// decays from 0.9 toward 0.5 with date distance.
func ScoreCandidates(txn transactions.BankTransaction, currency string, pool []Matchable, tuning config.MatchTuning) []Candidate {
	txnRef := textnorm.Normalize(txn.Reference)
	var out []Candidate
	for _, m := range pool {
		if m.Currency != currency {
			continue
		}
		if !m.Outstanding.Equal(txn.Amount) {
			continue
		}
		dd := dateDistanceDays(txn.Date, m.Date)
		if dd > tuning.DateWindowDays {
			continue
		}

		c := Candidate{Matchable: m}
		ref := textnorm.Normalize(m.Reference)
		if txnRef != "" && ref != "" && txnRef == ref {
			c.Score = 1.0
			c.MatchType = constants.MatchExact
		} else {
			score := 0.9
			if tuning.DateWindowDays > 0 {
				score -= 0.4 * float64(dd) / float64(tuning.DateWindowDays)
			}
			// Float decay lands a hair under the floor at the window
			// edge (0.4999...), so the gate needs an epsilon.
			if score < tuning.MinScore-scoreEpsilon {
				continue
			}
			c.Score = score
			c.MatchType = constants.MatchFuzzy
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		si := descriptionAffinity(txn.Description, out[i].Description)
		sj := descriptionAffinity(txn.Description, out[j].Description)
		if si != sj {
			return si > sj
		}
		return out[i].MatchableID < out[j].MatchableID
	})
	return out
}

// descriptionAffinity breaks ties between equally-scored candidates. Edit
// distance alone punishes reordered narrations, so token overlap is blended
// in.
func descriptionAffinity(a, b string) float64 {
	return 0.7*textnorm.Similarity(a, b) + 0.3*textnorm.TokenOverlap(a, b)
}

// pickWinner applies the uniqueness rules to a ranked candidate list. An
// exact candidate wins only if it is the sole exact candidate. A fuzzy
// candidate wins only if its score clears the runner-up by the configured
// margin. Ambiguity returns false: the transaction stays unmatched and the
// candidates surface as suggestions.
func pickWinner(candidates []Candidate, tuning config.MatchTuning) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	exacts := 0
	for _, c := range candidates {
		if c.MatchType == constants.MatchExact {
			exacts++
		}
	}
	if exacts == 1 {
		return candidates[0], true
	}
	if exacts > 1 {
		return Candidate{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	if candidates[0].Score-candidates[1].Score >= tuning.ScoreMargin {
		return candidates[0], true
	}
	return Candidate{}, false
}

// PlanAutoMatches walks the unmatched transactions and decides which to match
// without operator input. A matchable consumed by one decision is out of the
// pool for the rest of the pass, so re-running over the remaining unmatched
// set never displaces an earlier result.
func PlanAutoMatches(txns []transactions.BankTransaction, currency string, pool []Matchable, tuning config.MatchTuning) []Planned {
	remaining := make(map[string]Matchable, len(pool))
	order := make([]string, 0, len(pool))
	for _, m := range pool {
		remaining[m.MatchableID] = m
		order = append(order, m.MatchableID)
	}

	var plan []Planned
	for _, txn := range txns {
		if txn.Ignored || txn.Matched {
			continue
		}
		avail := make([]Matchable, 0, len(order))
		for _, id := range order {
			if m, ok := remaining[id]; ok {
				avail = append(avail, m)
			}
		}
		winner, ok := pickWinner(ScoreCandidates(txn, currency, avail, tuning), tuning)
		if !ok {
			continue
		}
		plan = append(plan, Planned{
			TransactionID: txn.TransactionID,
			MatchableID:   winner.MatchableID,
			MatchableKind: winner.Kind,
			MatchType:     winner.MatchType,
			Amount:        txn.Amount,
			Score:         winner.Score,
		})
		m := remaining[winner.MatchableID]
		m.Outstanding = m.Outstanding.Sub(txn.Amount)
		if m.Outstanding.IsPositive() {
			remaining[winner.MatchableID] = m
		} else {
			delete(remaining, winner.MatchableID)
		}
	}
	return plan
}
