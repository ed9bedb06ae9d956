// Package query exposes filtered views over a user's transactions and
// simple aggregate totals. Filtering is by set membership across four
// independent dimensions; "select all" is modeled by passing the full
// universe of observed values for a dimension.
package query

import (
	"github.com/noahpengding/peng-finance/internal/domain"
)

// Options holds the observed value universes for each filter dimension.
// Categories always include the empty-string sentinel so that uncategorized
// transactions survive a select-all filter.
type Options struct {
	Accounts   []string
	PostDates  []string
	Categories []string
	Merchants  []string
}

// Totals is the aggregate over a transaction subset.
type Totals struct {
	Count int
	Sum   float64
}

// Filter returns the transactions whose account, post date, category, and
// merchant are each members of the corresponding set. All four tests must
// pass; empty sets therefore select nothing.
func Filter(txs []*domain.Transaction, accounts, postDates, categories, merchants []string) []*domain.Transaction {
	accountSet := toSet(accounts)
	postDateSet := toSet(postDates)
	categorySet := toSet(categories)
	merchantSet := toSet(merchants)

	var out []*domain.Transaction
	for _, t := range txs {
		if accountSet[t.Account] &&
			postDateSet[t.PostDate] &&
			categorySet[t.Category] &&
			merchantSet[t.MerchantName] {
			out = append(out, t)
		}
	}
	return out
}

// FilterOptions extracts the distinct observed values per dimension, in
// first-seen order. The category universe gains "" when absent so callers
// can pass it straight back to Filter as a select-all.
func FilterOptions(txs []*domain.Transaction) Options {
	var opts Options
	seenAccounts := make(map[string]bool)
	seenPostDates := make(map[string]bool)
	seenCategories := make(map[string]bool)
	seenMerchants := make(map[string]bool)

	for _, t := range txs {
		if !seenAccounts[t.Account] {
			seenAccounts[t.Account] = true
			opts.Accounts = append(opts.Accounts, t.Account)
		}
		if !seenPostDates[t.PostDate] {
			seenPostDates[t.PostDate] = true
			opts.PostDates = append(opts.PostDates, t.PostDate)
		}
		if !seenCategories[t.Category] {
			seenCategories[t.Category] = true
			opts.Categories = append(opts.Categories, t.Category)
		}
		if !seenMerchants[t.MerchantName] {
			seenMerchants[t.MerchantName] = true
			opts.Merchants = append(opts.Merchants, t.MerchantName)
		}
	}

	if !seenCategories[""] {
		opts.Categories = append(opts.Categories, "")
	}
	return opts
}

// Aggregate returns the count and amount sum over txs.
func Aggregate(txs []*domain.Transaction) Totals {
	totals := Totals{Count: len(txs)}
	for _, t := range txs {
		totals.Sum += t.Amount
	}
	return totals
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
