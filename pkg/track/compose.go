package track

import (
	"fmt"
	"strings"
	"time"

	"github.com/elonfeng/titlewatch/internal/store"
)

// titleDisplayLen is where long titles are cut off in the comment.
const titleDisplayLen = 80

// Compose renders the summary comment. With no history at all it falls
// back to raw aggregate title stats; a single history bucket renders as
// one flat numbered list; multiple buckets render one numbered sub-list
// per date, newest first. finalized changes the heading wording only.
func Compose(intro string, history []store.HistoryDay, stats []store.TitleCount, finalized bool) string {
	heading := "Latest titles"
	if finalized {
		heading = "Probable final titles"
	}

	var b strings.Builder
	b.WriteString(intro)

	switch {
	case len(history) == 0 && len(stats) == 0:
		return intro

	case len(history) == 0:
		titles := make([]string, 0, len(stats))
		for _, s := range stats {
			titles = append(titles, s.Title)
		}
		writeTitleList(&b, heading+":", titles)

	case len(history) == 1:
		writeTitleList(&b, heading+":", history[0].Titles)

	default:
		fmt.Fprintf(&b, "\n\n%s by date:", heading)
		for _, day := range history {
			fmt.Fprintf(&b, "\n%s:", formatDate(day.Date))
			for i, title := range day.Titles {
				fmt.Fprintf(&b, "\n%d. %s", i+1, truncateTitle(title))
			}
		}
	}

	return b.String()
}

func writeTitleList(b *strings.Builder, heading string, titles []string) {
	fmt.Fprintf(b, "\n\n%s", heading)
	for i, title := range titles {
		fmt.Fprintf(b, "\n%d. %s", i+1, truncateTitle(title))
	}
}

// formatDate renders a stored date as "Feb 07".
func formatDate(date string) string {
	t, err := time.Parse(store.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Jan 02")
}

func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= titleDisplayLen {
		return s
	}
	return string(runes[:titleDisplayLen]) + "..."
}
