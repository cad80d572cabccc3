package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dappkit/internal/app"
	"dappkit/internal/model"
)

var (
	navStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00D4AA")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			MarginTop(1).
			MarginBottom(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00D4AA")).
			Padding(0, 2)
)

// InstallURL is where users without a wallet are sent.
const InstallURL = "https://metamask.io/"

// Render draws the view for the controller snapshot. account may be nil.
func Render(snap app.Snapshot, account *model.AccountSnapshot) string {
	switch snap.Mode {
	case app.ModeConnected:
		return connected(snap, account)
	case app.ModeInstallWallet:
		return installWallet()
	case app.ModeFailed:
		return failed(snap.Err)
	default:
		return mutedStyle.Render("Connecting to wallet...")
	}
}

func connected(snap app.Snapshot, account *model.AccountSnapshot) string {
	address := "no account"
	if account != nil && account.Address != "" {
		address = account.Address
	}
	name := snap.State.Network.Name
	if name == "" {
		name = "unknown"
	}
	nav := navStyle.Render(fmt.Sprintf("dappkit | %s (%d) | %s", name, snap.State.NetworkID, address))

	sections := []string{
		nav,
		titleStyle.Render("Welcome"),
		balances(account),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func balances(account *model.AccountSnapshot) string {
	if account == nil {
		return mutedStyle.Render("Balances unavailable. Unlock your wallet to see them.")
	}

	rows := []string{
		fmt.Sprintf("%-8s %s", "ETH", account.EthFormat),
		fmt.Sprintf("%-8s %s", "WETH", account.WethFormat),
	}
	for _, token := range account.Tokens {
		allowance := token.ProxyAllowance
		if token.Unlimited {
			allowance = "unlimited"
		}
		rows = append(rows, fmt.Sprintf("%-8s %s  (proxy allowance: %s)", token.Token.Label(), token.Formatted, allowance))
	}
	body := strings.Join(rows, "\n")
	footer := mutedStyle.Render(fmt.Sprintf("block %d", account.BlockNumber))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body, footer))
}

func installWallet() string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("No wallet detected"),
		"Install a browser wallet such as MetaMask to continue:",
		InstallURL,
		mutedStyle.Render("Point DAPP_WALLET at the wallet's JSON-RPC endpoint and retry."),
	))
}

func failed(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return errorStyle.Render("Could not connect: " + msg)
}
