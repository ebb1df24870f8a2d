// Command conti-split computes expense splits and settle-up plans offline.
//
//	conti-split --method shares --total 100 --payer alice alice=1 bob=1 carol=2
//	conti-split settle alice=56.66 bob=-23.33 carol=-33.33
package main

import (
	"os"
	"strings"
	"unicode"

	"github.com/pterm/pterm"
)

func main() {
	pterm.Error.Prefix = pterm.Prefix{
		Text:  " ERROR ",
		Style: pterm.NewStyle(pterm.BgLightRed, pterm.FgBlack),
	}

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		pterm.Error.Println(capitalize(err.Error()))
		os.Exit(1)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return strings.TrimSpace(string(r))
}
