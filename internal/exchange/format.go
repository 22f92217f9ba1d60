package exchange

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// seconds renders an amount of credit, e.g. "312.4s".
func seconds(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String() + "s"
}

// signedSeconds renders a profit or loss with an explicit sign, e.g. "+297s".
func signedSeconds(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.String() + "s"
	}
	return d.String() + "s"
}

func mention(userID int64) string {
	return fmt.Sprintf("<@%d>", userID)
}

func openMessage(userID int64, shares int, code string, price float64, short bool) string {
	verb := "bought"
	if short {
		verb = "shorted"
	}
	return fmt.Sprintf("%s %s %d shares of %s @ %s", mention(userID), verb, shares, code, seconds(price))
}

func closeMessage(userID int64, shares int, code string, price, pl float64, short, auto bool) string {
	verb := "sold"
	if short {
		verb = "covered"
	}
	if auto {
		verb = "auto-" + verb
	}
	return fmt.Sprintf("%s %s %d shares of %s @ %s (P/L %s)", mention(userID), verb, shares, code, seconds(price), signedSeconds(pl))
}
