// Package finance computes the back-office financial tablo: account
// balances, totals and period summaries.
package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/pkg/logging"
)

const (
	TableAccounts     = "financial_accounts"
	TableTransactions = "financial_transactions"

	KindIncome  = "income"
	KindExpense = "expense"

	DateLayout = "2006-01-02"
)

var ErrInvalidPeriod = errors.New("finance: period start is after its end")

type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Kind        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// AccountBalance is opening + income - expense over all transactions.
type AccountBalance struct {
	Account
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type Totals struct {
	Opening decimal.Decimal `json:"opening"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

type CategoryTotal struct {
	Category string          `json:"category"`
	Kind     string          `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
}

// Summary covers transactions with From <= occurred_at < To+1 day.
type Summary struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// Filter narrows a transaction listing. Zero values match everything.
type Filter struct {
	AccountID string
	From      time.Time
	To        time.Time
}

// Source reads finance tables.
type Source interface {
	Select(ctx context.Context, table string, q *backend.Query, out any) error
}

type Service struct {
	source Source
	logger *logging.Logger
}

func NewService(source Source, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{source: source, logger: logger}
}

// Balances returns every account with its computed balance and the totals.
func (s *Service) Balances(ctx context.Context) ([]AccountBalance, Totals, error) {
	var accounts []Account
	if err := s.source.Select(ctx, TableAccounts, backend.NewQuery().Order("name", true), &accounts); err != nil {
		return nil, Totals{}, fmt.Errorf("finance: load accounts: %w", err)
	}
	txs, err := s.Transactions(ctx, Filter{})
	if err != nil {
		return nil, Totals{}, err
	}
	balances, totals := ComputeBalances(accounts, txs)
	return balances, totals, nil
}

// ComputeBalances folds transactions into their accounts. Transactions for
// unknown accounts are ignored.
func ComputeBalances(accounts []Account, txs []Transaction) ([]AccountBalance, Totals) {
	index := make(map[string]int, len(accounts))
	out := make([]AccountBalance, len(accounts))
	for i, a := range accounts {
		out[i] = AccountBalance{Account: a, Income: decimal.Zero, Expense: decimal.Zero}
		index[a.ID] = i
	}
	for _, tx := range txs {
		i, ok := index[tx.AccountID]
		if !ok {
			continue
		}
		switch tx.Kind {
		case KindIncome:
			out[i].Income = out[i].Income.Add(tx.Amount)
		case KindExpense:
			out[i].Expense = out[i].Expense.Add(tx.Amount)
		}
	}
	totals := Totals{Opening: decimal.Zero, Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero}
	for i := range out {
		out[i].Balance = out[i].OpeningBalance.Add(out[i].Income).Sub(out[i].Expense)
		totals.Opening = totals.Opening.Add(out[i].OpeningBalance)
		totals.Income = totals.Income.Add(out[i].Income)
		totals.Expense = totals.Expense.Add(out[i].Expense)
		totals.Balance = totals.Balance.Add(out[i].Balance)
	}
	return out, totals
}

// Transactions lists transactions newest first.
func (s *Service) Transactions(ctx context.Context, f Filter) ([]Transaction, error) {
	q := backend.NewQuery().Order("occurred_at", false)
	if f.AccountID != "" {
		q.Eq("account_id", f.AccountID)
	}
	if !f.From.IsZero() {
		q.Gte("occurred_at", f.From.Format(DateLayout))
	}
	if !f.To.IsZero() {
		q.Lt("occurred_at", f.To.AddDate(0, 0, 1).Format(DateLayout))
	}
	var txs []Transaction
	if err := s.source.Select(ctx, TableTransactions, q, &txs); err != nil {
		return nil, fmt.Errorf("finance: load transactions: %w", err)
	}
	return txs, nil
}

// Summary totals income and expense for the inclusive date range.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (Summary, error) {
	if from.After(to) {
		return Summary{}, ErrInvalidPeriod
	}
	txs, err := s.Transactions(ctx, Filter{From: from, To: to})
	if err != nil {
		return Summary{}, err
	}
	sum := Summarize(txs)
	sum.From = from.Format(DateLayout)
	sum.To = to.Format(DateLayout)
	return sum, nil
}

// Summarize totals txs; categories are sorted by kind then amount descending.
func Summarize(txs []Transaction) Summary {
	sum := Summary{Income: decimal.Zero, Expense: decimal.Zero, ByCategory: []CategoryTotal{}}
	byKey := make(map[[2]string]decimal.Decimal)
	for _, tx := range txs {
		switch tx.Kind {
		case KindIncome:
			sum.Income = sum.Income.Add(tx.Amount)
		case KindExpense:
			sum.Expense = sum.Expense.Add(tx.Amount)
		default:
			continue
		}
		sum.Count++
		key := [2]string{tx.Kind, tx.Category}
		byKey[key] = byKey[key].Add(tx.Amount)
	}
	sum.Net = sum.Income.Sub(sum.Expense)
	for key, amount := range byKey {
		sum.ByCategory = append(sum.ByCategory, CategoryTotal{Kind: key[0], Category: key[1], Amount: amount})
	}
	sort.Slice(sum.ByCategory, func(i, j int) bool {
		a, b := sum.ByCategory[i], sum.ByCategory[j]
		if a.Kind != b.Kind {
			return a.Kind == KindIncome
		}
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	return sum
}

// MonthRange returns the first and last day of now's month.
func MonthRange(now time.Time) (time.Time, time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first, first.AddDate(0, 1, -1)
}
