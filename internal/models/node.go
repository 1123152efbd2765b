package models

// Node is a label plus the full property set written for one entity.
// Properties always contain "id".
type Node struct {
	Label      Label
	ID         string
	Properties map[string]any
}

// props drops empty optional values so they are absent on the stored node
type props map[string]any

func (p props) opt(key, value string) props {
	if value != "" {
		p[key] = value
	}
	return p
}

func (p props) vector(v []float32) props {
	if len(v) == 0 {
		return p
	}
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	p["embedding"] = out
	return p
}

func (p Person) Node() Node {
	pr := props{
		"id":           p.ID,
		"displayLogin": p.DisplayLogin,
		"displayName":  p.DisplayName,
	}
	pr.opt("messagingHandle", p.MessagingHandle).opt("email", p.Email).vector(p.Embedding)
	return Node{Label: LabelPerson, ID: p.ID, Properties: pr}
}

func (r Repository) Node() Node {
	pr := props{
		"id":          r.ID,
		"name":        r.Name,
		"fullName":    r.FullName,
		"description": r.Description,
	}
	pr.vector(r.Embedding)
	return Node{Label: LabelRepository, ID: r.ID, Properties: pr}
}

func (c CodeChange) Node() Node {
	pr := props{
		"id":        c.ID,
		"number":    int64(c.Number),
		"title":     c.Title,
		"body":      c.Body,
		"state":     c.State,
		"createdAt": c.CreatedAt,
	}
	pr.opt("authorId", c.AuthorID).
		opt("authorLogin", c.AuthorLogin).
		opt("repositoryId", c.RepositoryID).
		opt("url", c.URL).
		vector(c.Embedding)
	return Node{Label: LabelCodeChange, ID: c.ID, Properties: pr}
}

func (t Ticket) Node() Node {
	pr := props{
		"id":        t.ID,
		"number":    int64(t.Number),
		"title":     t.Title,
		"body":      t.Body,
		"state":     t.State,
		"createdAt": t.CreatedAt,
	}
	pr.opt("authorId", t.AuthorID).
		opt("authorLogin", t.AuthorLogin).
		opt("repositoryId", t.RepositoryID).
		opt("url", t.URL).
		vector(t.Embedding)
	return Node{Label: LabelTicket, ID: t.ID, Properties: pr}
}

func (c Channel) Node() Node {
	pr := props{
		"id":              c.ID,
		"sourceChannelId": c.SourceChannelID,
		"name":            c.Name,
		"isPrivate":       c.IsPrivate,
	}
	pr.vector(c.Embedding)
	return Node{Label: LabelChannel, ID: c.ID, Properties: pr}
}

func (m Message) Node() Node {
	pr := props{
		"id":                 m.ID,
		"sourceAuthorHandle": m.SourceAuthorHandle,
		"channelId":          m.ChannelID,
		"text":               m.Text,
		"createdAt":          m.CreatedAt,
	}
	pr.opt("threadParentTimestamp", m.ThreadParentTimestamp).
		opt("authorId", m.AuthorID).
		opt("authorLogin", m.AuthorLogin).
		vector(m.Embedding)
	return Node{Label: LabelMessage, ID: m.ID, Properties: pr}
}

func (c TextChunk) Node() Node {
	pr := props{
		"id":         c.ID,
		"sourceId":   c.SourceID,
		"sourceType": string(c.SourceType),
		"text":       c.Text,
	}
	pr.vector(c.Embedding)
	return Node{Label: LabelTextChunk, ID: c.ID, Properties: pr}
}
