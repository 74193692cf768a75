package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/matzehuels/wheelsmith/pkg/tags"
	"github.com/matzehuels/wheelsmith/pkg/wheel"
)

// statusOut receives status lines. Command results go to the command's
// own output so they can be piped.
var statusOut io.Writer = os.Stderr

var (
	colorDist  = lipgloss.Color("36")  // teal
	colorOK    = lipgloss.Color("35")  // green
	colorWarn  = lipgloss.Color("220") // amber
	colorPath  = lipgloss.Color("255") // bright white
	colorLabel = lipgloss.Color("245") // gray
	colorMuted = lipgloss.Color("240") // dim gray
)

var (
	styleDist  = lipgloss.NewStyle().Foreground(colorDist).Bold(true)
	styleOK    = lipgloss.NewStyle().Foreground(colorOK)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarn)
	stylePath  = lipgloss.NewStyle().Foreground(colorPath)
	styleLabel = lipgloss.NewStyle().Foreground(colorLabel).Width(10)
	styleMuted = lipgloss.NewStyle().Foreground(colorMuted)
)

func status(mark lipgloss.Style, icon, msg string) {
	fmt.Fprintln(statusOut, mark.Render(icon)+" "+msg)
}

// printInstalled reports one installed wheel and what it put on disk.
func printInstalled(res *wheel.Result) {
	status(styleOK, "✓", "Installed "+styleDist.Render(res.Name)+" "+res.Version)
	fmt.Fprintln(statusOut, "  "+styleMuted.Render(fmt.Sprintf("%s · %d files · %s", res.Tag, res.Files, humanize.Bytes(uint64(res.Bytes)))))
}

// printSkippedWheel warns about a select candidate that is not a wheel name.
func printSkippedWheel(path string, err error) {
	status(styleWarn, "!", styleWarn.Render(fmt.Sprintf("Skipping %s: %v", path, err)))
}

// printTarget describes the interpreter and platform tags are listed for.
func printTarget(major, minor int, p tags.Platform) {
	fmt.Fprintln(statusOut, styleLabel.Render("python")+" "+stylePath.Render(fmt.Sprintf("%d.%d", major, minor)))
	fmt.Fprintln(statusOut, styleLabel.Render("platform")+" "+stylePath.Render(p.String()))
}

func printCacheEmpty() {
	status(styleMuted, "›", "Cache is empty")
}

func printCacheCleared(freed int64, dir string) {
	status(styleOK, "✓", fmt.Sprintf("Cleared %s of cached data", humanize.Bytes(uint64(freed))))
	fmt.Fprintln(statusOut, "  "+styleMuted.Render("→")+" "+stylePath.Render(dir))
}
