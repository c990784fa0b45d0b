// Package report renders the end-of-run summary, one line per step with
// its elapsed wall time and outcome, grouped in declaration order.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/floe-sci/floe/internal/executor"
)

// Print writes the run summary. Steps appear in declaration order with
// their elapsed time and a colored verdict; the final line is the overall
// verdict with the total wall time.
func Print(w io.Writer, rep *executor.Report, noColor bool) {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	skip := color.New(color.FgYellow)
	if noColor {
		for _, c := range []*color.Color{pass, fail, skip} {
			c.DisableColor()
		}
	}

	for _, res := range rep.Results {
		var verdict string
		switch res.State {
		case executor.Succeeded:
			verdict = pass.Sprint("PASS")
		case executor.Skipped:
			verdict = skip.Sprint("SKIP")
		default:
			verdict = fail.Sprint("FAIL")
		}
		fmt.Fprintf(w, "%s %s %s\n", clock(res.Elapsed), verdict, res.Path)
		if res.Err != nil {
			fmt.Fprintf(w, "      %v\n", res.Err)
		}
	}

	fmt.Fprintf(w, "total runtime: %s\n", clock(rep.Elapsed))
	if rep.OK() {
		pass.Fprintln(w, "PASS: All steps passed successfully!")
		return
	}
	fail.Fprintf(w, "FAIL: %d steps did not succeed, see above.\n", rep.Failures())
}

// clock formats a duration as MM:SS, rolling into hours past an hour.
func clock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
