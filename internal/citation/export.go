package citation

import (
	"fmt"
	"strings"
)

// BibTeX renders citations as @misc entries keyed by their IDs.
func BibTeX(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "@misc{%s,\n", c.ID)
		fmt.Fprintf(&b, "  title = {%s},\n", escapeBibTeX(title))
		fmt.Fprintf(&b, "  howpublished = {\\url{%s}},\n", c.Source)
		fmt.Fprintf(&b, "  year = {%d},\n", c.AddedAt.Year())
		fmt.Fprintf(&b, "  note = {Accessed %s}\n", c.AddedAt.Format("2006-01-02"))
		b.WriteString("}")
	}
	return b.String()
}

// RIS renders citations as RIS ELEC records.
func RIS(citations []Citation) string {
	if len(citations) == 0 {
		return ""
	}

	var b strings.Builder
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n")
		}
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		b.WriteString("TY  - ELEC\n")
		fmt.Fprintf(&b, "TI  - %s\n", title)
		fmt.Fprintf(&b, "UR  - %s\n", c.Source)
		fmt.Fprintf(&b, "PY  - %d\n", c.AddedAt.Year())
		fmt.Fprintf(&b, "Y2  - %s\n", c.AddedAt.Format("2006/01/02"))
		b.WriteString("ER  - \n")
	}
	return b.String()
}

// ExportBibTeX renders the manager's citations as BibTeX.
func (m *Manager) ExportBibTeX() string {
	return BibTeX(m.sortedCopy())
}

// ExportRIS renders the manager's citations as RIS.
func (m *Manager) ExportRIS() string {
	return RIS(m.sortedCopy())
}

// escapeBibTeX escapes characters with special meaning in BibTeX
// field values.
func escapeBibTeX(s string) string {
	replacer := strings.NewReplacer(
		"{", "\\{",
		"}", "\\}",
		"%", "\\%",
		"&", "\\&",
		"#", "\\#",
		"_", "\\_",
	)
	return replacer.Replace(s)
}
