package delivery

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aurzen/unearthedarcana/internal/domain"
	"github.com/aurzen/unearthedarcana/internal/ports"
)

// Announcement colors: surveys get blue, everything else purple.
const (
	colorSurvey  = 0x3498DB
	colorRelease = 0x9B59B6
)

// composeAnnouncement builds the human-readable news post for an article.
// The nonce lets platform adapters deduplicate a resent announcement after
// a crash between send and watermark commit.
func composeAnnouncement(article domain.ArticleRecord, roleID string) ports.Announcement {
	color := colorRelease
	if strings.HasPrefix(article.Title, "Survey") {
		color = colorSurvey
	}

	var body strings.Builder
	body.WriteString(article.Summary)
	body.WriteString("\n\n")
	body.WriteString(article.Link)
	for _, pdf := range article.PDFLinks {
		body.WriteString("\n")
		body.WriteString(pdf)
	}

	return ports.Announcement{
		Title:       fmt.Sprintf("%s %s", article.Type.Label(), article.Title),
		Description: article.Category,
		Body:        body.String(),
		Color:       color,
		RoleID:      roleID,
		Nonce:       uuid.NewString(),
	}
}

// formatBlock renders one article as a digest block.
func formatBlock(article domain.ArticleRecord) string {
	return fmt.Sprintf("**__[%s]__**\n%s\n%s\n%s\n",
		article.Type.Label(), article.Title, article.Link, article.Summary)
}
