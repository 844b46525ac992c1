package bits

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/bits/account"
	"github.com/xraph/bits/company"
	"github.com/xraph/bits/governance"
	"github.com/xraph/bits/notification"
	"github.com/xraph/bits/store"
	"github.com/xraph/bits/subscription"
	"github.com/xraph/bits/types"
)

// Command keywords.
const (
	CmdSend          = "s"
	CmdSubscribe     = "sub"
	CmdCancel        = "can"
	CmdCancelAll     = "canall"
	CmdFound         = "found"
	CmdAddMember     = "add"
	CmdSendCompany   = "sendco"
	CmdPrint         = "print"
	CmdBurn          = "burn"
	CmdSpend         = "spend"
	CmdNatural       = "n"
	CmdBalance       = "balance"
	CmdGive          = "give"
	CmdSearch        = "search"
	CmdLeaderboard   = "leaderboard"
	CmdNotifications = "notifications"
	CmdVote          = "vote"
	CmdCandidates    = "get_candidates"
	CmdPolitics      = "getpolitics"
	CmdGetPrefs      = "get_preferences"
	CmdSetPrefs      = "set_preferences"
)

var directCommands = map[string]bool{
	CmdSend: true, CmdSubscribe: true, CmdCancel: true, CmdCancelAll: true,
	CmdFound: true, CmdAddMember: true, CmdSendCompany: true,
	CmdPrint: true, CmdBurn: true, CmdSpend: true,
}

// IsDirect reports whether keyword is a mutating command that may also
// appear in translator output.
func IsDirect(keyword string) bool { return directCommands[keyword] }

// Command is one parsed request.
type Command struct {
	Keyword string
	Args    []string
}

// ParseCommand splits line on whitespace. The keyword is lowercased and a
// leading "!" is dropped.
func ParseCommand(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{
		Keyword: strings.TrimLeft(strings.ToLower(fields[0]), "!"),
		Args:    fields[1:],
	}
}

// Dispatch parses line and executes it for actor.
func (e *Engine) Dispatch(ctx context.Context, actor, line string) string {
	return e.Execute(ctx, actor, ParseCommand(line))
}

// Execute runs cmd for actor and returns a human-readable reply. Replies of
// direct commands are also left in the actor's mailbox, and counterparties
// are notified of successful operations.
func (e *Engine) Execute(ctx context.Context, actor string, cmd Command) string {
	actor = account.Normalize(actor)
	if actor == "" {
		return "Invalid account name."
	}
	a := cmd.Args

	switch cmd.Keyword {
	case CmdSend:
		return e.cmdSend(ctx, actor, a)
	case CmdSubscribe:
		return e.cmdSubscribe(ctx, actor, a)
	case CmdCancel:
		return e.cmdCancel(ctx, actor, a)
	case CmdCancelAll:
		return e.cmdCancelAll(ctx, actor, a)
	case CmdFound:
		return e.cmdFound(ctx, actor, a)
	case CmdAddMember:
		return e.cmdAddMember(ctx, actor, a)
	case CmdSendCompany:
		return e.cmdSendCompany(ctx, actor, a)
	case CmdPrint, CmdBurn, CmdSpend:
		return e.cmdTreasury(ctx, actor, cmd.Keyword, a)
	case CmdNatural:
		return e.cmdNatural(ctx, actor, a)
	case CmdBalance:
		bal, err := e.Balance(ctx, actor)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		return bal.String()
	case CmdGive:
		return e.cmdGive(ctx, actor, a)
	case CmdSearch:
		return e.cmdSearch(ctx, actor, a)
	case CmdLeaderboard:
		rows, err := e.Leaderboard(ctx, LeaderboardSize)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		lines := make([]string, len(rows))
		for i, r := range rows {
			lines[i] = r.String()
		}
		return strings.Join(lines, "\n")
	case CmdNotifications:
		lines, err := e.Notifications(ctx, actor)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		if len(lines) == 0 {
			return "No notifications!"
		}
		return strings.Join(lines, "\n")
	case CmdVote:
		return e.cmdVote(ctx, actor, a)
	case CmdCandidates:
		names, err := e.Candidates(ctx)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		return strings.Join(names, ", ")
	case CmdPolitics:
		p, err := e.Politics(ctx)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		president := p.President
		if president == "" {
			president = "none"
		}
		return fmt.Sprintf("president: %s, election_active: %t", president, p.ElectionActive)
	case CmdGetPrefs:
		prefs, err := e.Preferences(ctx, actor)
		if err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		return prefs[notification.KeyTheme] + ", " + prefs[notification.KeyMute]
	case CmdSetPrefs:
		if len(a) != 2 {
			return "Invalid set_preferences format. Use set_preferences [theme] [mute]."
		}
		if err := e.SetPreferences(ctx, actor, a[0], a[1]); err != nil {
			return e.failure(actor, cmd.Keyword, err)
		}
		return "updated preferences"
	case "":
		return "Empty command."
	default:
		return fmt.Sprintf("Unknown command '%s'.", cmd.Keyword)
	}
}

// reply leaves msg in actor's mailbox and returns it.
func (e *Engine) reply(ctx context.Context, actor, msg string) string {
	e.notify(ctx, actor, msg)
	return msg
}

// failure renders an unexpected error for the actor and logs it.
func (e *Engine) failure(actor, keyword string, err error) string {
	switch {
	case errors.Is(err, ErrInvalidAccount):
		return "Invalid account name."
	case errors.Is(err, store.ErrLockTimeout):
		e.logger.Warn("command timed out", "command", keyword, "actor", actor, "error", err)
		return "The ledger is busy. Please try again."
	default:
		e.logger.Error("command failed", "command", keyword, "actor", actor, "error", err)
		return "Something went wrong. Please try again later."
	}
}

// amountArg parses a command amount. ok is false when s is not a number.
func amountArg(s string) (types.Bits, bool) {
	v, err := types.Parse(s)
	return v, err == nil
}

// ──────────────────────────────────────────────────
// Direct commands
// ──────────────────────────────────────────────────

func (e *Engine) cmdSend(ctx context.Context, sender string, a []string) string {
	if len(a) != 2 {
		return e.reply(ctx, sender, "Invalid s command format. Use s [user] [amount].")
	}
	receiver := account.Normalize(a[0])
	amount, ok := amountArg(a[1])
	if !ok {
		return e.reply(ctx, sender, "Invalid amount for !s command.")
	}
	if sender == receiver {
		return e.reply(ctx, sender, "You cannot send bits to yourself.")
	}
	if !amount.IsPositive() {
		return e.reply(ctx, sender, "Amount must be positive for !s command.")
	}

	rec, err := e.Transfer(ctx, sender, receiver, amount)
	if fe, ok := IsInsufficientFunds(err); ok {
		return e.reply(ctx, sender, fmt.Sprintf("Insufficient balance (%s bits) to send %s bits to %s.", fe.Balance, amount, receiver))
	}
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, CmdSend, err))
	}
	e.notify(ctx, receiver, fmt.Sprintf("%s gave you %s bits via comment!", sender, amount))
	return e.reply(ctx, sender, fmt.Sprintf("You gave %s bits to %s via comment. Your new balance: %s", amount, receiver, rec.FromBalance))
}

func (e *Engine) cmdSubscribe(ctx context.Context, sender string, a []string) string {
	if len(a) != 3 {
		return e.reply(ctx, sender, "Invalid sub command format. Use sub [user] [amount] [daily/weekly/monthly].")
	}
	payee := account.Normalize(a[0])
	amount, ok := amountArg(a[1])
	if !ok {
		return e.reply(ctx, sender, "Invalid amount for !sub command.")
	}
	cycle, err := subscription.ParseCycle(a[2])
	if err != nil {
		return e.reply(ctx, sender, "Invalid cycle type for !sub. Use daily, weekly, or monthly.")
	}
	if sender == payee {
		return e.reply(ctx, sender, "You cannot subscribe to yourself.")
	}
	if !amount.IsPositive() {
		return e.reply(ctx, sender, "Subscription amount must be positive.")
	}

	_, rec, err := e.Subscribe(ctx, sender, payee, amount, cycle)
	if fe, ok := IsInsufficientFunds(err); ok {
		return e.reply(ctx, sender, fmt.Sprintf("Insufficient balance (%s bits) for initial subscription payment of %s bits to %s.", fe.Balance, amount, payee))
	}
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, CmdSubscribe, err))
	}
	e.notify(ctx, payee, fmt.Sprintf("%s subscribed to pay you %s bits every %s!", sender, amount, cycle))
	return e.reply(ctx, sender, fmt.Sprintf("You subscribed to pay %s %s bits every %s. Your new balance: %s", payee, amount, cycle, rec.FromBalance))
}

func (e *Engine) cmdCancel(ctx context.Context, sender string, a []string) string {
	if len(a) != 1 {
		return e.reply(ctx, sender, "Invalid can command format. Use can [user].")
	}
	payee := account.Normalize(a[0])
	_, err := e.Cancel(ctx, sender, payee)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return e.reply(ctx, sender, fmt.Sprintf("No active subscription found for %s from your account.", payee))
	}
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, CmdCancel, err))
	}
	e.notify(ctx, payee, fmt.Sprintf("%s cancelled their subscription to pay you.", sender))
	return e.reply(ctx, sender, fmt.Sprintf("You cancelled your subscription to pay %s.", payee))
}

func (e *Engine) cmdCancelAll(ctx context.Context, sender string, a []string) string {
	if len(a) != 0 {
		return e.reply(ctx, sender, "Invalid canall command format. Use canall.")
	}
	removed, err := e.CancelAll(ctx, sender)
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, CmdCancelAll, err))
	}
	if len(removed) == 0 {
		return e.reply(ctx, sender, "You have no active subscriptions to cancel.")
	}
	payees := make([]string, len(removed))
	for i, sub := range removed {
		payees[i] = sub.Payee
		e.notify(ctx, sub.Payee, fmt.Sprintf("%s cancelled their subscription to pay you.", sender))
	}
	return e.reply(ctx, sender, fmt.Sprintf("You cancelled all your active subscriptions (%s).", strings.Join(payees, ", ")))
}

func (e *Engine) cmdFound(ctx context.Context, sender string, a []string) string {
	if len(a) != 1 {
		return e.reply(ctx, sender, "Invalid found command format. Use found [initial_amount].")
	}
	amount, ok := amountArg(a[0])
	if !ok {
		return e.reply(ctx, sender, "Invalid initial amount for !found command.")
	}
	if !amount.IsPositive() {
		return e.reply(ctx, sender, "Initial amount for company must be positive.")
	}

	name := company.NameFor(sender)
	co, rec, err := e.Found(ctx, sender, amount)
	if errors.Is(err, ErrCompanyExists) {
		return e.reply(ctx, sender, fmt.Sprintf("You already own a company: %s. You cannot found another one.", name))
	}
	if fe, ok := IsInsufficientFunds(err); ok {
		return e.reply(ctx, sender, fmt.Sprintf("Insufficient balance (%s bits) to fund your new company with %s bits.", fe.Balance, amount))
	}
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, CmdFound, err))
	}
	return e.reply(ctx, sender, fmt.Sprintf("You founded a new company: %s with %s bits! Your personal balance: %s", co.Name, amount, rec.FromBalance))
}

func (e *Engine) cmdAddMember(ctx context.Context, sender string, a []string) string {
	if len(a) != 2 {
		return e.reply(ctx, sender, "Invalid add command format. Use add [company_name] [username_to_add].")
	}
	name, user := account.Normalize(a[0]), account.Normalize(a[1])
	_, err := e.AddMember(ctx, name, sender, user)
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		return e.reply(ctx, sender, fmt.Sprintf("Company '%s' not found.", name))
	case errors.Is(err, ErrNotMember):
		return e.reply(ctx, sender, fmt.Sprintf("You are not an authorized member of '%s'.", name))
	case errors.Is(err, ErrAlreadyMember):
		return e.reply(ctx, sender, fmt.Sprintf("%s is already a member of '%s'.", user, name))
	case err != nil:
		return e.reply(ctx, sender, e.failure(sender, CmdAddMember, err))
	}
	e.notify(ctx, user, fmt.Sprintf("You have been added as an authorized member to company '%s' by %s!", name, sender))
	return e.reply(ctx, sender, fmt.Sprintf("You added %s to '%s'.", user, name))
}

func (e *Engine) cmdSendCompany(ctx context.Context, sender string, a []string) string {
	if len(a) != 3 {
		return e.reply(ctx, sender, "Invalid sendco command format. Use sendco [company_name] [recipient] [amount].")
	}
	name, recipient := account.Normalize(a[0]), account.Normalize(a[1])
	amount, ok := amountArg(a[2])
	if !ok {
		return e.reply(ctx, sender, "Invalid amount for !sendco command.")
	}
	if !amount.IsPositive() {
		return e.reply(ctx, sender, "Amount must be positive for !sendco command.")
	}
	if sender == recipient {
		return e.reply(ctx, sender, "You cannot send bits to yourself from a company account.")
	}

	rec, err := e.SendFromCompany(ctx, name, sender, recipient, amount)
	if fe, ok := IsInsufficientFunds(err); ok {
		return e.reply(ctx, sender, fmt.Sprintf("Company '%s' has insufficient balance (%s bits) to send %s bits to %s.", name, fe.Balance, amount, recipient))
	}
	switch {
	case errors.Is(err, ErrCompanyNotFound):
		return e.reply(ctx, sender, fmt.Sprintf("Company '%s' not found.", name))
	case errors.Is(err, ErrNotMember):
		return e.reply(ctx, sender, fmt.Sprintf("You are not an authorized member of '%s' to send funds.", name))
	case errors.Is(err, ErrSelfTransfer):
		return e.reply(ctx, sender, "You cannot send bits to yourself from a company account.")
	case err != nil:
		return e.reply(ctx, sender, e.failure(sender, CmdSendCompany, err))
	}
	e.notify(ctx, recipient, fmt.Sprintf("Company '%s' sent you %s bits!", name, amount))
	return e.reply(ctx, sender, fmt.Sprintf("You sent %s bits from '%s' to %s. Company balance: %s", amount, name, recipient, rec.FromBalance))
}

func (e *Engine) cmdTreasury(ctx context.Context, sender, keyword string, a []string) string {
	usage := map[string]string{
		CmdPrint: "Invalid print command format. Use print [amount].",
		CmdBurn:  "Invalid burn command format. Use burn [amount].",
		CmdSpend: "Invalid spend command format. Use spend [amount] [target].",
	}
	want := 1
	if keyword == CmdSpend {
		want = 2
	}
	if len(a) != want {
		return e.reply(ctx, sender, usage[keyword])
	}

	notHolder := fmt.Sprintf("Only the president can use !%s.", keyword)
	holder, err := e.Holder(ctx, governance.President)
	if err != nil {
		return e.reply(ctx, sender, e.failure(sender, keyword, err))
	}
	if holder == "" || holder != sender {
		return e.reply(ctx, sender, notHolder)
	}
	amount, ok := amountArg(a[0])
	if !ok {
		return e.reply(ctx, sender, fmt.Sprintf("Invalid amount for !%s.", keyword))
	}
	if !amount.IsPositive() {
		return e.reply(ctx, sender, fmt.Sprintf("Amount must be positive for !%s.", keyword))
	}

	var rec *Receipt
	var target string
	switch keyword {
	case CmdPrint:
		rec, err = e.Mint(ctx, sender, amount)
	case CmdBurn:
		rec, err = e.Burn(ctx, sender, amount)
	case CmdSpend:
		target = account.Normalize(a[1])
		rec, err = e.Spend(ctx, sender, target, amount)
	}
	switch {
	case errors.Is(err, ErrNotHolder):
		return e.reply(ctx, sender, notHolder)
	case errors.Is(err, ErrInsufficientFunds):
		return e.reply(ctx, sender, fmt.Sprintf("%s has insufficient balance to %s %s bits.", account.Treasury, keyword, amount))
	case err != nil:
		return e.reply(ctx, sender, e.failure(sender, keyword, err))
	}

	switch keyword {
	case CmdPrint:
		return e.reply(ctx, sender, fmt.Sprintf("Printed %s bits into %s. Balance: %s", amount, account.Treasury, rec.ToBalance))
	case CmdBurn:
		return e.reply(ctx, sender, fmt.Sprintf("Burned %s bits from %s. Balance: %s", amount, account.Treasury, rec.FromBalance))
	default:
		e.notify(ctx, target, fmt.Sprintf("%s sent you %s bits!", account.Treasury, amount))
		return e.reply(ctx, sender, fmt.Sprintf("Spent %s bits from %s to %s. Balance: %s", amount, account.Treasury, target, rec.FromBalance))
	}
}

func (e *Engine) cmdNatural(ctx context.Context, sender string, a []string) string {
	if len(a) == 0 {
		return e.reply(ctx, sender, "Invalid !n command format. Use: !n [your natural language instruction].")
	}
	_, err := e.ProcessNaturalLanguage(ctx, sender, strings.Join(a, " "))
	switch {
	case errors.Is(err, ErrTranslatorUnavailable):
		return e.reply(ctx, sender, "Natural language commands are not available.")
	case errors.Is(err, ErrRateLimited):
		// The sender was already notified.
		return "ok"
	case err != nil:
		return e.reply(ctx, sender, e.failure(sender, CmdNatural, err))
	}
	return "ok"
}

// ──────────────────────────────────────────────────
// Request commands
// ──────────────────────────────────────────────────

func (e *Engine) cmdGive(ctx context.Context, sender string, a []string) string {
	if len(a) != 2 {
		return "Invalid give format. Use give [amount] [user]."
	}
	amount, ok := amountArg(a[0])
	if !ok {
		return "Invalid amount."
	}
	user := account.Normalize(a[1])
	if sender == user {
		return "You cannot send bits to yourself."
	}
	if !amount.IsPositive() {
		return "Amount must be positive."
	}
	bal, err := e.Give(ctx, sender, user, amount)
	if errors.Is(err, ErrInsufficientFunds) {
		return "Insufficient balance."
	}
	if err != nil {
		return e.failure(sender, CmdGive, err)
	}
	return bal.String()
}

func (e *Engine) cmdSearch(ctx context.Context, actor string, a []string) string {
	if len(a) != 1 {
		return "Invalid search format. Use search [user]."
	}
	user := account.Normalize(a[0])
	bal, ok, err := e.Search(ctx, user)
	if err != nil {
		return e.failure(actor, CmdSearch, err)
	}
	if !ok {
		return fmt.Sprintf("%s's balance couldn't be found. Did you spell it right?", user)
	}
	return fmt.Sprintf("%s has %s bits!", user, bal)
}

func (e *Engine) cmdVote(ctx context.Context, voter string, a []string) string {
	if len(a) != 1 {
		return "Invalid vote format. Use vote [candidate]."
	}
	err := e.Vote(ctx, voter, a[0])
	if errors.Is(err, ErrAlreadyVoted) {
		return "already voted"
	}
	if err != nil {
		return e.failure(voter, CmdVote, err)
	}
	return "vote recorded"
}
