package interpret

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicedesk/internal/domain"
	"voicedesk/internal/ports"
)

type fakeLedger struct {
	entries []domain.LedgerEntry
	err     error

	lastLimit int
	appended  []domain.LedgerEntry
}

func (f *fakeLedger) RecentEntries(_ context.Context, limit int) ([]domain.LedgerEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func (f *fakeLedger) Append(_ context.Context, entry domain.LedgerEntry) error {
	f.appended = append(f.appended, entry)
	return nil
}

func testContext(ledger ports.Ledger) ports.SessionContext {
	return ports.SessionContext{Ledger: ledger, RecentLimit: 5}
}

func TestInterpretNavigation(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	cases := []struct {
		utterance string
		wantView  string
	}{
		{"go to configuration", "CONFIGURATION"},
		{"go to config", "CONFIGURATION"},
		{"take me to the dashboard", "DASHBOARD"},
		{"open settings", "CONFIGURATION"},
		{"SHOW ME ANALYTICS", "ANALYTICS"},
		{"show history", "TRANSACTIONS"},
		{"launch reports!", "REPORTS"},
		{"view accounts", "ACCOUNTS"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.utterance, func(t *testing.T) {
			t.Parallel()
			result := interp.Interpret(context.Background(), tc.utterance, testContext(&fakeLedger{}))
			assert.Equal(t, domain.ActionNavigate, result.Action)
			assert.Equal(t, tc.wantView, result.TargetView)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestInterpretNavigationUnknownTargetFallsThrough(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "open the pod bay doors", testContext(&fakeLedger{}))
	assert.Equal(t, domain.ActionError, result.Action)
	assert.Empty(t, result.TargetView)
	assert.NotEmpty(t, result.Message)
}

func TestInterpretPaymentValid(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "pay bob 500 for rent", testContext(&fakeLedger{}))

	require.Equal(t, domain.ActionTransaction, result.Action)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, "BOB", result.Transaction.Recipient)
	assert.Equal(t, 500.0, result.Transaction.Amount)
	assert.Equal(t, CategoryUncategorized, result.Transaction.Category)
	assert.Equal(t, domain.TransactionSourceVoice, result.Transaction.Source)
	assert.NotEmpty(t, result.Message)
}

func TestInterpretPaymentVariants(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	cases := []struct {
		utterance     string
		wantRecipient string
		wantAmount    float64
		wantCategory  string
	}{
		{"send alice $12.50", "ALICE", 12.5, CategoryUncategorized},
		{"pay maria for 80 for dinner", "MARIA", 80, CategoryPersonal},
		{"pay the electric company 120 for the bill", "THE ELECTRIC COMPANY", 120, CategoryExpense},
		{"send carlos amount of $250 invoice", "CARLOS", 250, CategoryExpense},
		{"pay sam 42 food run", "SAM", 42, CategoryPersonal},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.utterance, func(t *testing.T) {
			t.Parallel()
			result := interp.Interpret(context.Background(), tc.utterance, testContext(&fakeLedger{}))
			require.Equal(t, domain.ActionTransaction, result.Action, "message: %s", result.Message)
			require.NotNil(t, result.Transaction)
			assert.Equal(t, tc.wantRecipient, result.Transaction.Recipient)
			assert.Equal(t, tc.wantAmount, result.Transaction.Amount)
			assert.Equal(t, tc.wantCategory, result.Transaction.Category)
		})
	}
}

func TestInterpretPaymentRejected(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	cases := []string{
		"pay bob -50",
		"pay bob 0",
		"pay bob lunch",
		"pay bob 2000000",
		"pay bob NaN",
		"pay bob Inf",
		"pay 50",
		"send alice",
	}

	for _, utt := range cases {
		utt := utt
		t.Run(utt, func(t *testing.T) {
			t.Parallel()
			result := interp.Interpret(context.Background(), utt, testContext(&fakeLedger{}))
			assert.Equal(t, domain.ActionError, result.Action)
			assert.Nil(t, result.Transaction)
			assert.NotEmpty(t, result.Message)
		})
	}
}

func TestInterpretPaymentAtCeilingAccepted(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "pay bob 1000000", testContext(&fakeLedger{}))
	require.Equal(t, domain.ActionTransaction, result.Action)
	assert.Equal(t, float64(MaxAmount), result.Transaction.Amount)
}

func TestInterpretRecentActivity(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{entries: []domain.LedgerEntry{
		{Recipient: "BOB", Amount: 500, CreatedAt: time.Now()},
		{Recipient: "ALICE", Amount: 25, CreatedAt: time.Now()},
	}}

	interp := New(nil)
	result := interp.Interpret(context.Background(), "what are my last five transactions", testContext(ledger))

	assert.Equal(t, domain.ActionQuery, result.Action)
	assert.Contains(t, result.Message, "500 dollars to BOB")
	assert.Contains(t, result.Message, "25 dollars to ALICE")
	assert.Equal(t, 5, ledger.lastLimit)
}

func TestInterpretRecentActivityEmptyLedger(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "show my recent transactions", testContext(&fakeLedger{}))
	assert.Equal(t, domain.ActionQuery, result.Action)
	assert.NotEmpty(t, result.Message)
}

func TestInterpretRecentActivityLedgerError(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "recent transactions please",
		testContext(&fakeLedger{err: errors.New("db locked")}))
	assert.Equal(t, domain.ActionError, result.Action)
	assert.NotEmpty(t, result.Message)
}

func TestInterpretMetrics(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{entries: []domain.LedgerEntry{
		{Recipient: "BOB", Amount: 100},
		{Recipient: "ALICE", Amount: 50},
	}}

	interp := New(nil)
	result := interp.Interpret(context.Background(), "how is our performance this week", testContext(ledger))

	assert.Equal(t, domain.ActionQuery, result.Action)
	assert.Contains(t, result.Message, "150 dollars")
	assert.Contains(t, result.Message, "75 dollars")
}

func TestInterpretStatus(t *testing.T) {
	t.Parallel()

	interp := New(nil)

	healthy := interp.Interpret(context.Background(), "what's the system status", testContext(&fakeLedger{}))
	assert.Equal(t, domain.ActionQuery, healthy.Action)
	assert.NotEmpty(t, healthy.Message)

	degraded := interp.Interpret(context.Background(), "system status",
		testContext(&fakeLedger{err: errors.New("down")}))
	assert.Equal(t, domain.ActionError, degraded.Action)
	assert.NotEmpty(t, degraded.Message)
}

func TestInterpretDismiss(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	result := interp.Interpret(context.Background(), "never mind", testContext(&fakeLedger{}))
	assert.Equal(t, domain.ActionNoop, result.Action)
	assert.NotEmpty(t, result.Message)
}

func TestInterpretFallback(t *testing.T) {
	t.Parallel()

	interp := New(nil)
	cases := []string{
		"",
		"   ",
		"?!...",
		"sing me a song",
		"purple monkey dishwasher",
	}
	for _, utt := range cases {
		utt := utt
		t.Run("fallback", func(t *testing.T) {
			t.Parallel()
			result := interp.Interpret(context.Background(), utt, testContext(&fakeLedger{}))
			assert.Equal(t, domain.ActionError, result.Action)
			assert.NotEmpty(t, result.Message)
			assert.Nil(t, result.Transaction)
		})
	}
}

func TestInterpretNavigationBeatsQueryTriggers(t *testing.T) {
	t.Parallel()

	// "show history" resolves as navigation even though "history" appears in
	// query trigger phrases; priority order is navigation first.
	interp := New(nil)
	result := interp.Interpret(context.Background(), "show transactions", testContext(&fakeLedger{}))
	assert.Equal(t, domain.ActionNavigate, result.Action)
	assert.Equal(t, "TRANSACTIONS", result.TargetView)
}
