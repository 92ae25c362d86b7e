package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/margin/pkg/core"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	docStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	docTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			PaddingLeft(2)

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			PaddingLeft(4)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// snippetLength caps page text shown under a result.
const snippetLength = 160

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > snippetLength {
		return string(r[:snippetLength]) + "…"
	}
	return text
}

// formatDoc renders one search result. listNames resolves list ids.
func formatDoc(doc core.SearchResultPage, index int, listNames map[int64]string, now time.Time) string {
	var content strings.Builder

	title := doc.Title
	if title == "" {
		title = doc.URL
	}
	content.WriteString(docTitleStyle.Render(fmt.Sprintf("%d. %s", index, title)))
	content.WriteString("\n")

	link := doc.FullURL
	if link == "" {
		link = doc.URL
	}
	content.WriteString("🔗 " + link)

	if text := snippet(doc.Text); text != "" {
		content.WriteString("\n" + text)
	}

	for _, a := range doc.Annotations {
		if a.Body != "" {
			content.WriteString("\n" + highlightStyle.Render("“"+snippet(a.Body)+"”"))
		}
		if a.Comment != "" {
			content.WriteString("\n" + noteStyle.Render("✎ "+snippet(a.Comment)))
		}
	}

	meta := []string{formatTime(doc.DisplayTime, now)}
	if doc.TotalAnnotationsCount > 0 {
		meta = append(meta, fmt.Sprintf("%d annotations", doc.TotalAnnotationsCount))
	}
	if len(doc.Lists) > 0 {
		names := make([]string, 0, len(doc.Lists))
		for _, id := range doc.Lists {
			if name, ok := listNames[id]; ok {
				names = append(names, name)
			} else {
				names = append(names, fmt.Sprintf("#%d", id))
			}
		}
		meta = append(meta, "lists: "+strings.Join(names, ", "))
	}
	content.WriteString("\n" + metaStyle.Render(strings.Join(meta, " | ")))

	return docStyle.Render(content.String())
}

// formatDocs renders a titled list of results.
func formatDocs(title string, docs []core.SearchResultPage, exhausted bool, listNames map[int64]string, now time.Time) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render(title))
	out.WriteString("\n")

	if len(docs) == 0 {
		out.WriteString(noDataStyle.Render("No results found."))
		out.WriteString("\n")
		return out.String()
	}

	annotations := 0
	for _, d := range docs {
		annotations += len(d.Annotations)
	}
	summary := fmt.Sprintf("%d pages, %d annotations", len(docs), annotations)
	if !exhausted {
		summary += " (more available)"
	}
	out.WriteString(summaryStyle.Render(summary))
	out.WriteString("\n")

	for i, d := range docs {
		out.WriteString(formatDoc(d, i+1, listNames, now))
		out.WriteString("\n")
	}
	return out.String()
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// displayWithPager displays content using a pager
func displayWithPager(content string) error {
	pagerCmd := os.Getenv("PAGER")
	if pagerCmd == "" {
		for _, pager := range []string{"less", "more"} {
			if _, err := exec.LookPath(pager); err == nil {
				pagerCmd = pager
				break
			}
		}
	}

	if pagerCmd == "" {
		fmt.Print(content)
		return nil
	}

	args := []string{}
	if strings.Contains(pagerCmd, "less") {
		args = []string{"-R", "-S", "-F", "-X"}
	}

	cmd := exec.Command(pagerCmd, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
