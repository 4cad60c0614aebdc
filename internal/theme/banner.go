package theme

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"feedsim/internal/model"
)

var (
	cyan    = color.New(color.FgCyan)
	magenta = color.New(color.FgMagenta, color.Bold)
	yellow  = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
	bold    = color.New(color.Bold)
)

// Banner returns the feedsim banner.
func Banner() string {
	var b strings.Builder
	b.WriteString("  🐾  " + magenta.Sprint("FEEDSIM") + "  🐾\n")
	b.WriteString(cyan.Sprint("   ┌─┐┌─┐┌─┐┌┬┐┌─┐┬┌┬┐\n"))
	b.WriteString(cyan.Sprint("   ├┤ ├┤ ├┤  ││└─┐││││\n"))
	b.WriteString(cyan.Sprint("   └  └─┘└─┘─┴┘└─┘┴┴ ┴\n"))
	b.WriteString(yellow.Sprint("   ──────────────────────\n"))
	b.WriteString("   a pocket timeline of made-up friends\n")
	return b.String()
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}

// Tab writes one tab line; active tabs are marked.
func Tab(w io.Writer, t model.Tab, active bool) {
	marker := "  "
	if active {
		marker = cyan.Sprint("▶ ")
	}
	fmt.Fprintf(w, "%s%s %s %s\n", marker, bold.Sprint(t.Title), faint.Sprintf("[%s]", t.ID),
		faint.Sprintf("visible=%d stock=%d", len(t.TweetIDs), len(t.StockIDs)))
}

// Tweet writes a tweet as a numbered block.
func Tweet(w io.Writer, n int, t model.Tweet) {
	fmt.Fprintf(w, "%s %s %s\n", yellow.Sprintf("%2d.", n), bold.Sprint(t.Name), faint.Sprint("@"+t.Handle))
	fmt.Fprintf(w, "    %s\n", t.Message)
	fmt.Fprintf(w, "    %s %d  %s %d  %s %d  %s %d%s\n",
		mark(t.IsReacted, t.ReactionKind.DisplayName()), t.ReactionCount,
		mark(t.IsRetweeted, "RT"), t.RetweetCount,
		mark(t.IsLiked, "♥"), t.FavoriteCount,
		faint.Sprint("views"), t.ImpressionCount,
		bookmarkMark(t))
}

func mark(on bool, label string) string {
	if on {
		return magenta.Sprint(label)
	}
	return faint.Sprint(label)
}

func bookmarkMark(t model.Tweet) string {
	if t.IsBookmarked {
		return "  " + cyan.Sprint("🔖")
	}
	return ""
}
