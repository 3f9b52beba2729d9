// Package cli renders the outputs of the models on the terminal.
package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 120

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// displayWidth of s removes its color/control sequences and returns the length of what is left.
func displayWidth(s string) int {
	return len([]rune(ansiFilter.ReplaceAllString(s, "")))
}

// TerminalWidth of stdout, or DefaultWidth if it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// PrintCentered prints each line of block centered on the terminal.
func PrintCentered(block string) {
	lines := strings.Split(block, "\n")
	terminalWidth := TerminalWidth()
	blockWidth := 0
	for _, line := range lines {
		blockWidth = max(blockWidth, displayWidth(line))
	}
	indent := max((terminalWidth-blockWidth)/2, 0)
	for _, line := range lines {
		if len(line) == 0 {
			fmt.Println()
			continue
		}
		fmt.Printf("%s%s\n", strings.Repeat(" ", indent), line)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Padding(0, 1)
	valueStyle  = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Table of model outputs: each row has some labels (e.g.: molecule name and atom index) followed by the output
// values.
type Table struct {
	// LabelHeaders are the headers of the label columns.
	LabelHeaders []string

	// Labels of each row, one per label header.
	Labels [][]string

	// Values of each row. All rows must have the same number of values.
	Values [][]float32

	// Precision is the number of decimal digits printed.
	Precision int
}

// Render the table, with as many value columns as fit in maxWidth. If some don't fit, the last column tells how
// many were omitted.
func (t *Table) Render(maxWidth int) string {
	cells := make([][]string, len(t.Values))
	var numValues, valueWidth int
	for row, values := range t.Values {
		numValues = max(numValues, len(values))
		cells[row] = make([]string, len(values))
		for col, v := range values {
			cells[row][col] = fmt.Sprintf("%.*f", t.Precision, v)
			valueWidth = max(valueWidth, len(cells[row][col]))
		}
	}

	// Each column takes its content plus padding and one border.
	labelsWidth := 1
	for col, header := range t.LabelHeaders {
		width := len(header)
		for _, labels := range t.Labels {
			width = max(width, len(labels[col]))
		}
		labelsWidth += width + 3
	}
	valueWidth = max(valueWidth, len(fmt.Sprint(numValues-1))) + 3
	omittedWidth := len(fmt.Sprintf("+%d", numValues)) + 3
	numShown := numValues
	if labelsWidth+numValues*valueWidth > maxWidth {
		numShown = max((maxWidth-labelsWidth-omittedWidth)/valueWidth, 1)
	}

	headers := append([]string(nil), t.LabelHeaders...)
	for col := range min(numShown, numValues) {
		headers = append(headers, fmt.Sprint(col))
	}
	omitted := numValues - numShown
	if omitted > 0 {
		headers = append(headers, fmt.Sprintf("+%d", omitted))
	}
	rows := make([][]string, len(cells))
	for row := range cells {
		rows[row] = append(rows[row], t.Labels[row]...)
		rows[row] = append(rows[row], cells[row][:min(numShown, len(cells[row]))]...)
		if omitted > 0 {
			rows[row] = append(rows[row], "…")
		}
	}
	numLabels := len(t.LabelHeaders)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col < numLabels:
				return labelStyle
			default:
				return valueStyle
			}
		})
	return tbl.String()
}
