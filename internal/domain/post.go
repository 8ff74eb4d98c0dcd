package domain

import "encoding/json"

// Embed types that count as visible media.
const (
	embedImages   = "app.bsky.embed.images"
	embedExternal = "app.bsky.embed.external"
)

// Post is the flat output record for one collected post. URI is the natural
// key, unique per post across the network.
type Post struct {
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	Author    string `json:"author"`
	URI       string `json:"uri"`
	HasImages bool   `json:"has_images"`
	ReplyTo   string `json:"reply_to,omitempty"`
}

// PostRecord is a typed record decoded from a commit's block payload.
type PostRecord struct {
	Type      string    `json:"$type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"createdAt"`
	Embed     *Embed    `json:"embed,omitempty"`
	Reply     *ReplyRef `json:"reply,omitempty"`
}

// Embed is the embed envelope on a post record. Thumb stays raw: only its
// presence matters for media detection.
type Embed struct {
	Type  string          `json:"$type"`
	Thumb json.RawMessage `json:"thumb,omitempty"`
}

// ReplyRef points at the post being replied to.
type ReplyRef struct {
	Parent ParentRef `json:"parent"`
}

type ParentRef struct {
	URI string `json:"uri"`
}

// FindPostRecord returns the first feed post record in the decoded blocks.
func FindPostRecord(records []PostRecord) (PostRecord, bool) {
	for _, rec := range records {
		if rec.Type == PostCollection {
			return rec, true
		}
	}
	return PostRecord{}, false
}

// HasImages reports whether the record embeds visible media: an images
// embed, or an external embed carrying a thumbnail.
func HasImages(rec PostRecord) bool {
	if rec.Embed == nil {
		return false
	}
	switch rec.Embed.Type {
	case embedImages:
		return true
	case embedExternal:
		return len(rec.Embed.Thumb) > 0 && string(rec.Embed.Thumb) != "null"
	}
	return false
}

// ParentURI returns the URI of the post being replied to, or "" when the
// record is not a reply.
func ParentURI(rec PostRecord) string {
	if rec.Reply == nil {
		return ""
	}
	return rec.Reply.Parent.URI
}

// BuildPost assembles the output record for a post create operation.
func BuildPost(rec PostRecord, repo, path, author string) Post {
	return Post{
		Text:      rec.Text,
		CreatedAt: rec.CreatedAt,
		Author:    author,
		URI:       PostURI(repo, path),
		HasImages: HasImages(rec),
		ReplyTo:   ParentURI(rec),
	}
}
