package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/rubiojr/margin/pkg/storage"
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	} else {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

// formatTime formats a millisecond timestamp relative to now or as an
// absolute date
func formatTime(ms int64, now time.Time) string {
	t := time.UnixMilli(ms)
	diff := now.Sub(t)

	if diff < 0 {
		return t.Format("Jan 2, 2006 15:04")
	}
	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		hours := int(diff.Hours())
		return fmt.Sprintf("%d hours ago", hours)
	}

	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%.1f hours", d.Hours())
	} else if d < 30*24*time.Hour {
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	} else if d < 365*24*time.Hour {
		return fmt.Sprintf("%.1f months", d.Hours()/(24*30))
	} else {
		return fmt.Sprintf("%.1f years", d.Hours()/(24*365))
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatStats writes database statistics to w
func formatStats(w io.Writer, stats *storage.Stats, now time.Time) {
	fmt.Fprintln(w, titleStyle.Render("📊 Storage Statistics"))

	rows := []struct {
		label string
		value int
	}{
		{"Pages", stats.Pages},
		{"Visits", stats.Visits},
		{"Bookmarks", stats.Bookmarks},
		{"Annotations", stats.Annotations},
		{"Lists", stats.Lists},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-12s %s\n", r.label+":", formatNumber(r.value))
	}
	fmt.Fprintf(w, "%-12s %s\n", "Size:", formatBytes(stats.SizeBytes))

	if stats.Oldest == nil {
		fmt.Fprintln(w, noDataStyle.Render("No activity recorded yet."))
		return
	}
	fmt.Fprintf(w, "%-12s %s\n", "Newest:", formatTime(*stats.Newest, now))
	fmt.Fprintf(w, "%-12s %s\n", "Oldest:", formatTime(*stats.Oldest, now))
	span := time.Duration(*stats.Newest-*stats.Oldest) * time.Millisecond
	fmt.Fprintf(w, "%-12s %s\n", "Span:", formatDuration(span))
}
