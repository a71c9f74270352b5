package bot

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"earnify-bot/internal/ledger"
	"earnify-bot/internal/models"
)

// inputError is a message meant to be shown back to the user as is.
type inputError struct{ msg string }

func (e inputError) Error() string { return e.msg }

func badInput(format string, args ...any) error {
	return inputError{msg: fmt.Sprintf(format, args...)}
}

type Command struct {
	Name string
	Args []string
}

// ParseCommand splits "/name@bot arg1 arg2" into its name and arguments.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, ",", "."), "$")
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, badInput("❌ Invalid amount %q.", s)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, badInput("❌ Amount must be positive.")
	}
	if !ledger.ValidAmount(amount) {
		return decimal.Decimal{}, badInput("❌ At most %d decimal places are allowed.", ledger.CreditPrecision)
	}
	return amount, nil
}

func parseNetwork(s string) (models.Network, error) {
	n, ok := models.ParseNetwork(strings.ToUpper(s))
	if !ok {
		return "", badInput("❌ Unknown network %q, use TRC20 or BEP20.", s)
	}
	return n, nil
}

type DepositArgs struct {
	Amount  decimal.Decimal
	Network models.Network
	Address string
	TxID    string
}

// ParseDeposit reads "<amount> <network> <address> <txid>".
func ParseDeposit(args []string) (DepositArgs, error) {
	if len(args) != 4 {
		return DepositArgs{}, badInput("Usage: /deposit <amount> <TRC20|BEP20> <address> <txid>")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return DepositArgs{}, err
	}
	network, err := parseNetwork(args[1])
	if err != nil {
		return DepositArgs{}, err
	}
	return DepositArgs{Amount: amount, Network: network, Address: args[2], TxID: args[3]}, nil
}

type WithdrawArgs struct {
	Amount  decimal.Decimal
	Network models.Network
	Address string // empty means the saved wallet
}

// ParseWithdraw reads "<amount> <network> [address]".
func ParseWithdraw(args []string) (WithdrawArgs, error) {
	if len(args) < 2 || len(args) > 3 {
		return WithdrawArgs{}, badInput("Usage: /withdraw <amount> <TRC20|BEP20> [address]")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return WithdrawArgs{}, err
	}
	network, err := parseNetwork(args[1])
	if err != nil {
		return WithdrawArgs{}, err
	}
	w := WithdrawArgs{Amount: amount, Network: network}
	if len(args) == 3 {
		w.Address = args[2]
	}
	return w, nil
}

// ParseStatusCallback reads inline button data of the form "txn:<status>:<id>".
func ParseStatusCallback(data string) (string, models.TransactionStatus, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != "txn" {
		return "", "", fmt.Errorf("malformed callback %q", data)
	}
	status, ok := models.ParseTransactionStatus(parts[1])
	if !ok {
		return "", "", fmt.Errorf("unknown status %q", parts[1])
	}
	return parts[2], status, nil
}

func statusCallback(status models.TransactionStatus, id string) string {
	return fmt.Sprintf("txn:%s:%s", status, id)
}
