package embedding

import (
	"strings"

	"github.com/rohankatakam/teamgraph/internal/models"
)

// Text returned for an entity is what gets embedded; an empty result means
// the entity gets a zero vector.

func CodeChangeText(c models.CodeChange) string { return joinText(c.Title, c.Body) }

func TicketText(t models.Ticket) string { return joinText(t.Title, t.Body) }

func MessageText(m models.Message) string { return strings.TrimSpace(m.Text) }

func TextChunkText(c models.TextChunk) string { return strings.TrimSpace(c.Text) }

func joinText(title, body string) string {
	return strings.TrimSpace(title + " " + body)
}
