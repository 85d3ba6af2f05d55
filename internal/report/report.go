// Package report renders analysis results as human-readable text. It is a
// thin presentation layer over the ranked candidates; nothing here affects
// the analysis itself.
package report

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"traceidle/internal/analysis"
	"traceidle/internal/trace"
)

// NoEventsIndicator is printed when the candidate set is empty.
const NoEventsIndicator = "No events to optimize"

var defaultSourcePattern = regexp.MustCompile(`\.py\(.*\)`)

// SourceLocation walks up an event's ancestor chain looking for the first
// name matching the source-reference pattern. The lookup is best-effort:
// a trace without source annotations simply reports not found.
func SourceLocation(e *trace.HostEvent, pattern *regexp.Regexp) (string, bool) {
	if pattern == nil {
		pattern = defaultSourcePattern
	}
	for cur := e; cur != nil; cur = cur.Parent {
		if pattern.MatchString(cur.Name) {
			return cur.Name, true
		}
	}
	return "", false
}

// WriteOptimizable writes the ranked optimization candidates and returns
// them, truncated to length. The indicator fires only when the candidate
// set itself is empty; truncating a nonempty set to zero writes nothing.
func WriteOptimizable(w io.Writer, eval *analysis.Evaluation, length int, pattern *regexp.Regexp) ([]analysis.Candidate, error) {
	if len(eval.RankedCandidates()) == 0 {
		if _, err := fmt.Fprintln(w, NoEventsIndicator); err != nil {
			return nil, err
		}
		return nil, nil
	}
	candidates := eval.RankEvents(length)
	if len(candidates) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("Optimizable events:\n")
	rule := strings.Repeat("-", 80)
	for _, cand := range candidates {
		event := eval.Event(cand.Key)
		location, ok := SourceLocation(event, pattern)
		if !ok {
			location = "No source code location found"
		}
		fmt.Fprintf(&sb, "%s\nEvent:                %s\n", rule, event.Name)
		fmt.Fprintf(&sb, "Source code location: %s\n", location)
		fmt.Fprintf(&sb, "Percentage idle time: %.2f%%\n%s\n",
			cand.Metrics.FractionIdleTime()*100, rule)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return nil, err
	}
	return candidates, nil
}
