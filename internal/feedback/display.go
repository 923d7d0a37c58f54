package feedback

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// PrintItem writes the full text, date and extra attributes of item n.
func PrintItem(w io.Writer, n int, it Item) {
	blue := color.New(color.FgHiBlue).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(w, "\n%s %s\n", blue(fmt.Sprintf("Feedback #%d", n)), gray("("+it.ID+")"))
	fmt.Fprintf(w, "  %-8s %s\n", "Project", it.Project)
	if !it.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  %-8s %s\n", "Date", it.CreatedAt.Local().Format("2006-01-02 15:04"))
	}

	fmt.Fprintf(w, "\n%s\n", yellow("Text:"))
	for _, line := range strings.Split(strings.TrimSpace(it.Text), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}

	if attrs := it.Attributes(); len(attrs) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow("Attributes:"))
		for _, a := range attrs {
			fmt.Fprintf(w, "  %s: %s\n", a.Key, a.Value)
		}
	}
	fmt.Fprintln(w)
}
