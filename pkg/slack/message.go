package slack

import (
	"fmt"
	"time"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildTraceabilityDefectMessage creates Block Kit blocks for an operator
// alert: a derived row was written with a minted trace id because the
// expected one was missing (spec.md §7, SPEC_FULL.md "Operator
// alerting").
func BuildTraceabilityDefectMessage(component, detail string) []goslack.Block {
	headerText := fmt.Sprintf(":rotating_light: *Traceability defect in %s*", component)
	bodyText := fmt.Sprintf("%s\n_at %s_", truncateForSlack(detail), time.Now().UTC().Format(time.RFC3339))

	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, headerText, false, false),
			nil, nil,
		),
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, bodyText, false, false),
			nil, nil,
		),
	}
}

func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
