package conversation

import (
	"context"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// listSubmissions renders the student's recent submissions as an HTML list.
// The conversation state is left untouched.
func (c *Conversation) listSubmissions(ctx context.Context, filter domain.StatusFilter) {
	cat := c.cat()
	options := c.filterOptions()

	rows, err := c.docs.ListMySubmissions(ctx, domain.SubmissionFilter{
		Statuses: filter.Statuses(),
		Limit:    c.listLimit,
	})
	if err != nil {
		c.logger.Warn("submission history unavailable", zap.String("filter", string(filter)), zap.Error(err))
		c.bot(domain.Message{Text: cat.Texts.HistoryError, Options: options})
		return
	}
	if len(rows) == 0 {
		c.bot(domain.Message{Text: cat.Texts.HistoryEmpty, Options: options})
		return
	}

	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(cat.Texts.HistoryHeader))
	b.WriteString("</p><ul>")
	for _, row := range rows {
		title := row.Title
		if strings.TrimSpace(title) == "" {
			title = cat.Texts.Untitled
		}
		line := fill(cat.Texts.HistoryRow,
			"status", cat.StatusLabel(row.Status),
			"title", title,
			"submitted", FormatTimestamp(row.SubmittedAt, c.loc),
		)
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")

	c.bot(domain.Message{Text: b.String(), IsHTML: true, Options: options})
}

func (c *Conversation) filterOptions() []domain.Option {
	l := c.cat().Labels
	return []domain.Option{
		{Label: l.FilterAll, Command: domain.Command{Kind: domain.CommandCheckStatus, Filter: domain.StatusFilterAll}},
		{Label: l.FilterApproved, Command: domain.Command{Kind: domain.CommandCheckStatus, Filter: domain.StatusFilterApproved}},
		{Label: l.FilterRejected, Command: domain.Command{Kind: domain.CommandCheckStatus, Filter: domain.StatusFilterRejected}},
		{Label: l.FilterInReview, Command: domain.Command{Kind: domain.CommandCheckStatus, Filter: domain.StatusFilterInReview}},
		{Label: l.Back, Command: domain.Command{Kind: domain.CommandBack}},
	}
}
