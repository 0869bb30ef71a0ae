package finance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smiledent/clinic-site/internal/backend"
	"github.com/smiledent/clinic-site/internal/http/middleware"
	"github.com/smiledent/clinic-site/pkg/logging"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeBalances(t *testing.T) {
	accounts := []Account{
		{ID: "cash", Name: "Касса", OpeningBalance: d("1000")},
		{ID: "bank", Name: "Расчётный счёт", OpeningBalance: d("50000.50")},
	}
	txs := []Transaction{
		{AccountID: "cash", Kind: KindIncome, Amount: d("2500")},
		{AccountID: "cash", Kind: KindExpense, Amount: d("300.25")},
		{AccountID: "bank", Kind: KindExpense, Amount: d("10000")},
		{AccountID: "ghost", Kind: KindIncome, Amount: d("999")},
	}

	balances, totals := ComputeBalances(accounts, txs)
	require.Len(t, balances, 2)
	assert.True(t, balances[0].Balance.Equal(d("3199.75")), balances[0].Balance.String())
	assert.True(t, balances[1].Balance.Equal(d("40000.50")), balances[1].Balance.String())
	assert.True(t, totals.Income.Equal(d("2500")))
	assert.True(t, totals.Expense.Equal(d("10300.25")))
	assert.True(t, totals.Balance.Equal(d("43200.25")))
	assert.True(t, totals.Opening.Equal(d("51000.50")))
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Kind: KindIncome, Category: "Лечение", Amount: d("12000")},
		{Kind: KindIncome, Category: "Гигиена", Amount: d("4000")},
		{Kind: KindIncome, Category: "Лечение", Amount: d("3000")},
		{Kind: KindExpense, Category: "Аренда", Amount: d("9000")},
		{Kind: "transfer", Category: "Перевод", Amount: d("100")},
	}

	sum := Summarize(txs)
	assert.True(t, sum.Income.Equal(d("19000")))
	assert.True(t, sum.Expense.Equal(d("9000")))
	assert.True(t, sum.Net.Equal(d("10000")))
	assert.Equal(t, 4, sum.Count)
	require.Len(t, sum.ByCategory, 3)
	assert.Equal(t, "Лечение", sum.ByCategory[0].Category)
	assert.True(t, sum.ByCategory[0].Amount.Equal(d("15000")))
	assert.Equal(t, "Гигиена", sum.ByCategory[1].Category)
	assert.Equal(t, KindExpense, sum.ByCategory[2].Kind)
}

func TestSummarizeEmptyPeriod(t *testing.T) {
	sum := Summarize(nil)
	assert.True(t, sum.Net.IsZero())
	assert.Empty(t, sum.ByCategory)
}

func TestMonthRange(t *testing.T) {
	from, to := MonthRange(time.Date(2026, 2, 17, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-02-01", from.Format(DateLayout))
	assert.Equal(t, "2026-02-28", to.Format(DateLayout))
}

type recorded struct {
	path  string
	query map[string][]string
}

func newBackend(t *testing.T, calls *[]recorded) *backend.Client {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls = append(*calls, recorded{path: r.URL.Path, query: r.URL.Query()})
		switch r.URL.Path {
		case "/rest/v1/" + TableAccounts:
			_, _ = w.Write([]byte(`[{"id":"cash","name":"Касса","currency":"RUB","opening_balance":"100.00"}]`))
		case "/rest/v1/" + TableTransactions:
			_, _ = w.Write([]byte(`[
				{"id":"t1","account_id":"cash","type":"income","amount":"250.50","category":"Лечение","occurred_at":"2026-03-03T10:00:00Z"},
				{"id":"t2","account_id":"cash","type":"expense","amount":40,"category":"Материалы","occurred_at":"2026-03-02T10:00:00Z"}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.Close)
	return backend.NewClient(ts.URL, "anon", logging.New("error"))
}

func TestSummaryQueriesInclusiveRange(t *testing.T) {
	var calls []recorded
	svc := NewService(newBackend(t, &calls), logging.New("error"))

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	sum, err := svc.Summary(context.Background(), from, to)
	require.NoError(t, err)
	assert.True(t, sum.Net.Equal(d("210.50")), sum.Net.String())

	require.Len(t, calls, 1)
	assert.Equal(t, []string{"gte.2026-03-01"}, calls[0].query["occurred_at"][:1])
	assert.Contains(t, calls[0].query["occurred_at"], "lt.2026-04-01")
}

func TestSummaryRejectsInvertedPeriod(t *testing.T) {
	svc := NewService(nil, logging.New("error"))
	_, err := svc.Summary(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

const testSecret = "finance-secret"

func serve(t *testing.T, h *Handler, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := middleware.IssueStaffToken(testSecret, "staff-1", role, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	middleware.StaffJWT(testSecret, middleware.RoleAccountant)(h.Routes()).ServeHTTP(rec, req)
	return rec
}

func TestHandlerAccounts(t *testing.T) {
	var calls []recorded
	h := NewHandler(NewService(newBackend(t, &calls), nil), nil)

	rec := serve(t, h, "/accounts", middleware.RoleAccountant)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data   []AccountBalance `json:"data"`
		Totals Totals           `json:"totals"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 1)
	assert.True(t, body.Data[0].Balance.Equal(d("310.50")))
	assert.True(t, body.Totals.Balance.Equal(d("310.50")))
}

func TestHandlerRoleAndValidation(t *testing.T) {
	var calls []recorded
	h := NewHandler(NewService(newBackend(t, &calls), nil), nil)
	h.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, http.StatusForbidden, serve(t, h, "/accounts", middleware.RoleStaff).Code)
	assert.Equal(t, http.StatusOK, serve(t, h, "/accounts", middleware.RoleAdmin).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, h, "/summary?from=03.01.2026", middleware.RoleAccountant).Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, h, "/summary?from=2026-04-01", middleware.RoleAccountant).Code)

	rec := serve(t, h, "/summary", middleware.RoleAccountant)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data Summary `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "2026-03-01", body.Data.From)
	assert.Equal(t, "2026-03-31", body.Data.To)
}

func TestHandlerBackendFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)
	h := NewHandler(NewService(backend.NewClient(ts.URL, "anon", logging.New("error")), nil), logging.New("error"))

	rec := serve(t, h, "/transactions?account_id=cash", middleware.RoleAccountant)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
