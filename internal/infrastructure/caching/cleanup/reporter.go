// Package cleanup provides the background sweep of the tiered cache.
package cleanup

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AtRiskMedia/tractstack-behavior/internal/infrastructure/caching/types"
)

const (
	cyan       = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	cyanBright = "\033[38;2;97;228;240m"  // Brighter Cyan: #61E4F0
	dimCyan    = "\033[38;2;47;91;102m"   // Dim Cyan: #2F5B66
	grey       = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	dimGrey    = "\033[38;2;75;82;99m"    // Darker Grey: #4B5263
	success    = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	white      = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	reset      = "\033[0m"
	bold       = "\033[1m"
)

// Reporter prints human-readable sweep reports for verbose mode.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

func (r *Reporter) LogStage(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, white, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogInfo(message string, args ...any) {
	fmt.Fprintf(r.out, "%s▶ %s%s%s\n", dimGrey, grey, fmt.Sprintf(message, args...), reset)
}

// GenerateReport renders the tier occupancy before a sweep.
func (r *Reporter) GenerateReport(stats types.Stats, at time.Time) string {
	var report strings.Builder
	timestamp := at.UTC().Format("2006-01-02 15:04:05 MST")

	report.WriteString(fmt.Sprintf("%s%s▓ %s | Tiered cache%s\n", bold, dimCyan, timestamp, reset))

	formatTier := func(label string, count int) string {
		if count > 0 {
			return fmt.Sprintf(" %s%s:%s%d", dimCyan, label, cyan, count)
		}
		return fmt.Sprintf(" %s%s:%s--", dimGrey, label, dimGrey)
	}

	report.WriteString(fmt.Sprintf("%s✦ entries:%s", cyanBright, reset))
	report.WriteString(formatTier("memory", stats.MemoryItems))
	report.WriteString(formatTier("durable", stats.DurableItems))
	report.WriteString(reset + "\n")

	return report.String()
}
