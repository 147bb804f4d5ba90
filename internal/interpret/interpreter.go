// Package interpret owns the fixed command grammar: an ordered list of rules
// evaluated top to bottom, first match wins.
package interpret

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"voicedesk/internal/domain"
	"voicedesk/internal/normalize"
	"voicedesk/internal/ports"
)

// MaxAmount is the payment ceiling. Anything above it is assumed to be a
// dictation error rather than a real instruction.
const MaxAmount = 1_000_000

const defaultRecentLimit = 5

// Transaction categories resolved by keyword match on the utterance.
const (
	CategoryPersonal      = "personal"
	CategoryExpense       = "expense"
	CategoryUncategorized = "uncategorized"
)

// Interpreter implements ports.CommandInterpreter.
type Interpreter struct {
	views *ViewRegistry
	rules []grammarRule
}

type grammarRule struct {
	name  string
	match func(ctx context.Context, u utterance, sctx ports.SessionContext) (domain.CommandResult, bool)
}

// utterance is the pre-processed input shared by every rule. norm is the
// fully normalized text used for phrase matching; tokens keep intra-token
// punctuation so amount extraction can see signs and currency markers.
type utterance struct {
	raw    string
	norm   string
	tokens []string
}

// New builds an interpreter over the given view registry. A nil registry
// falls back to the defaults.
func New(views *ViewRegistry) *Interpreter {
	if views == nil {
		views = DefaultViewRegistry()
	}
	i := &Interpreter{views: views}
	i.rules = []grammarRule{
		{name: "navigation", match: i.matchNavigation},
		{name: "payment", match: i.matchPayment},
		{name: "recent_activity", match: i.matchRecentActivity},
		{name: "metrics", match: i.matchMetrics},
		{name: "status", match: i.matchStatus},
		{name: "dismiss", match: i.matchDismiss},
	}
	return i
}

// Interpret evaluates the grammar in priority order. It is total: every
// input, including empty text, yields a result with a non-empty message.
func (i *Interpreter) Interpret(ctx context.Context, raw string, sctx ports.SessionContext) domain.CommandResult {
	u := utterance{
		raw:    raw,
		norm:   normalize.Text(raw),
		tokens: normalize.Tokens(raw),
	}

	for _, rule := range i.rules {
		if result, ok := rule.match(ctx, u, sctx); ok {
			return result
		}
	}

	return domain.CommandResult{
		Action:  domain.ActionError,
		Message: "Sorry, I didn't understand that command. Try something like 'open transactions' or 'pay someone an amount'.",
	}
}

// Navigation verbs ordered longest-first so "show me" wins over "show".
var navigationVerbs = []string{
	"TAKE ME TO", "GO TO", "SHOW ME", "SHOW", "OPEN", "VIEW", "ACCESS", "LAUNCH",
}

func (i *Interpreter) matchNavigation(_ context.Context, u utterance, _ ports.SessionContext) (domain.CommandResult, bool) {
	for _, verb := range navigationVerbs {
		if !strings.HasPrefix(u.norm, verb+" ") {
			continue
		}
		target := strings.TrimSpace(strings.TrimPrefix(u.norm, verb+" "))
		target = strings.TrimPrefix(target, "THE ")

		view, ok := i.views.Resolve(target)
		if !ok {
			// Unknown target: the rule does not fire and evaluation
			// continues down the grammar.
			return domain.CommandResult{}, false
		}
		return domain.CommandResult{
			Action:     domain.ActionNavigate,
			Message:    fmt.Sprintf("Opening %s.", strings.ToLower(view)),
			TargetView: view,
		}, true
	}
	return domain.CommandResult{}, false
}

var recipientConnectors = map[string]bool{
	"TO": true, "FOR": true, "OF": true, "AMOUNT": true,
}

func (i *Interpreter) matchPayment(_ context.Context, u utterance, _ ports.SessionContext) (domain.CommandResult, bool) {
	if len(u.tokens) == 0 {
		return domain.CommandResult{}, false
	}
	verb := normalize.Text(u.tokens[0])
	if verb != "PAY" && verb != "SEND" {
		return domain.CommandResult{}, false
	}

	amountIdx := -1
	var amountToken string
	for idx, token := range u.tokens[1:] {
		if cleaned, ok := cleanAmountToken(token); ok {
			amountIdx = idx + 1
			amountToken = cleaned
			break
		}
	}
	if amountIdx < 0 {
		return errorResult("I heard a payment but couldn't make out the amount."), true
	}

	amount, err := strconv.ParseFloat(amountToken, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return errorResult("That amount didn't sound like a usable number."), true
	}
	if amount <= 0 {
		return errorResult("Payment amounts must be positive."), true
	}
	if amount > MaxAmount {
		return errorResult(fmt.Sprintf("That amount is above the %d limit for voice payments.", MaxAmount)), true
	}

	recipientTokens := u.tokens[1:amountIdx]
	for len(recipientTokens) > 0 && recipientConnectors[normalize.Text(recipientTokens[len(recipientTokens)-1])] {
		recipientTokens = recipientTokens[:len(recipientTokens)-1]
	}
	recipient := normalize.Text(strings.Join(recipientTokens, " "))
	if recipient == "" {
		return errorResult("I couldn't tell who that payment is for."), true
	}

	category := resolveCategory(u.norm)
	return domain.CommandResult{
		Action:  domain.ActionTransaction,
		Message: fmt.Sprintf("Recorded a payment of %s to %s.", formatAmount(amount), recipient),
		Transaction: &domain.TransactionPayload{
			Recipient: recipient,
			Amount:    amount,
			Category:  category,
			Source:    domain.TransactionSourceVoice,
		},
	}, true
}

var recentTriggers = []string{
	"RECENT TRANSACTIONS",
	"LAST FIVE",
	"LATEST TRANSACTIONS",
	"RECENT ACTIVITY",
	"TRANSACTION HISTORY",
	"RECENT PAYMENTS",
}

func (i *Interpreter) matchRecentActivity(ctx context.Context, u utterance, sctx ports.SessionContext) (domain.CommandResult, bool) {
	if !containsAny(u.norm, recentTriggers) {
		return domain.CommandResult{}, false
	}

	entries, err := recentEntries(ctx, sctx)
	if err != nil {
		return errorResult("The transaction ledger is not available right now."), true
	}
	if len(entries) == 0 {
		return domain.CommandResult{
			Action:  domain.ActionQuery,
			Message: "You have no recorded transactions yet.",
		}, true
	}

	items := make([]string, 0, len(entries))
	for _, entry := range entries {
		items = append(items, fmt.Sprintf("%s to %s", formatAmount(entry.Amount), entry.Recipient))
	}
	return domain.CommandResult{
		Action:  domain.ActionQuery,
		Message: fmt.Sprintf("Your last %d transactions: %s.", len(entries), strings.Join(items, "; ")),
	}, true
}

var metricsPhrases = []string{"PERFORMANCE", "HOW ARE WE DOING", "BURN RATE"}

func (i *Interpreter) matchMetrics(ctx context.Context, u utterance, sctx ports.SessionContext) (domain.CommandResult, bool) {
	if !containsAny(u.norm, metricsPhrases) && !containsWord(u.norm, "KPI", "KPIS", "METRICS") {
		return domain.CommandResult{}, false
	}

	entries, err := recentEntries(ctx, sctx)
	if err != nil {
		return errorResult("Metrics are unavailable because the ledger could not be read."), true
	}
	if len(entries) == 0 {
		return domain.CommandResult{
			Action:  domain.ActionQuery,
			Message: "No activity recorded yet, so there are no metrics to report.",
		}, true
	}

	var total float64
	for _, entry := range entries {
		total += entry.Amount
	}
	average := total / float64(len(entries))
	return domain.CommandResult{
		Action: domain.ActionQuery,
		Message: fmt.Sprintf("Across your last %d transactions you spent %s, averaging %s each.",
			len(entries), formatAmount(total), formatAmount(average)),
	}, true
}

func (i *Interpreter) matchStatus(ctx context.Context, u utterance, sctx ports.SessionContext) (domain.CommandResult, bool) {
	if !containsWord(u.norm, "STATUS", "HEALTH", "HEALTHY") {
		return domain.CommandResult{}, false
	}

	if sctx.Ledger == nil {
		return errorResult("Systems are degraded: the ledger is offline."), true
	}
	if _, err := sctx.Ledger.RecentEntries(ctx, 1); err != nil {
		return errorResult("Systems are degraded: the ledger is unreachable."), true
	}
	return domain.CommandResult{
		Action:  domain.ActionQuery,
		Message: "All systems operational. Voice commands and the ledger are responding.",
	}, true
}

var dismissPhrases = map[string]bool{
	"NEVER MIND": true,
	"CANCEL":     true,
	"STOP":       true,
	"NOTHING":    true,
	"FORGET IT":  true,
}

func (i *Interpreter) matchDismiss(_ context.Context, u utterance, _ ports.SessionContext) (domain.CommandResult, bool) {
	if !dismissPhrases[u.norm] {
		return domain.CommandResult{}, false
	}
	return domain.CommandResult{Action: domain.ActionNoop, Message: "Okay."}, true
}

func recentEntries(ctx context.Context, sctx ports.SessionContext) ([]domain.LedgerEntry, error) {
	if sctx.Ledger == nil {
		return nil, fmt.Errorf("no ledger configured")
	}
	limit := sctx.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return sctx.Ledger.RecentEntries(ctx, limit)
}

func resolveCategory(norm string) string {
	switch {
	case containsWord(norm, "DINNER", "FOOD"):
		return CategoryPersonal
	case containsWord(norm, "INVOICE", "BILL"):
		return CategoryExpense
	default:
		return CategoryUncategorized
	}
}

// cleanAmountToken strips a leading currency marker and trailing punctuation,
// and reports whether the remainder looks numeric. Signs are kept so negative
// amounts reach validation instead of vanishing in normalization.
func cleanAmountToken(token string) (string, bool) {
	cleaned := strings.TrimPrefix(token, "$")
	cleaned = strings.TrimRight(cleaned, ",.!?;:")
	if cleaned == "" {
		return "", false
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err != nil {
		return "", false
	}
	return cleaned, true
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64) + " dollars"
}

func errorResult(message string) domain.CommandResult {
	return domain.CommandResult{Action: domain.ActionError, Message: message}
}

func containsAny(norm string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(norm, phrase) {
			return true
		}
	}
	return false
}

func containsWord(norm string, words ...string) bool {
	for _, field := range strings.Fields(norm) {
		for _, word := range words {
			if field == word {
				return true
			}
		}
	}
	return false
}
