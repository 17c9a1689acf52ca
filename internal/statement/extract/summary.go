package extract

import (
	"regexp"
	"strings"

	"billwatch-backend/internal/statement/domain"
)

var (
	summaryMarker = regexp.MustCompile(`(?i)summary:?\s*`)
	noteMarker    = regexp.MustCompile(`(?i)\bnote\b`)
)

type label struct {
	pattern *regexp.Regexp
	field   string
}

var labels = []label{
	{regexp.MustCompile(`(?i)total amount due`), domain.FieldTotalAmountDue},
	{regexp.MustCompile(`(?i)rewards earned`), domain.FieldRewardsEarned},
	{regexp.MustCompile(`(?i)(payment|bill) due date`), domain.FieldPaymentDueDate},
}

// Summary pulls Total Amount Due, Rewards Earned and Payment Due Date out of
// the "summary" section of a statement body. Each label takes the next
// non-empty line as its value. Text from the first "note" onwards is ignored.
// An empty map is returned when the body has no summary section.
func Summary(body string) domain.HeuristicSummary {
	summary := domain.HeuristicSummary{}

	loc := summaryMarker.FindStringIndex(body)
	if loc == nil {
		return summary
	}
	region := body[loc[1]:]
	if n := noteMarker.FindStringIndex(region); n != nil {
		region = region[:n[0]]
	}

	var lines []string
	for _, line := range strings.Split(region, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	for i := 0; i < len(lines); i++ {
		field, ok := matchLabel(lines[i])
		if !ok {
			continue
		}
		j := i + 1
		for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
			j++
		}
		if j >= len(lines) {
			break
		}
		summary[field] = Normalize(lines[j])
		i = j
	}

	return summary
}

func matchLabel(line string) (string, bool) {
	for _, l := range labels {
		if l.pattern.MatchString(line) {
			return l.field, true
		}
	}
	return "", false
}
