package domain

import "strings"

// RawMessage is a single frame as received from the event stream. Frames
// travel through the queue untouched; only the decoder assumes anything
// about their contents.
type RawMessage []byte

// Repo operation actions as they appear on the wire.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// PostCollection is the record collection (and record type tag) for feed posts.
const PostCollection = "app.bsky.feed.post"

// Commit is one decoded unit of the event stream: the repository it applies
// to, the operations performed, and the block payload carrying the records
// those operations reference.
type Commit struct {
	Repo   string   `json:"repo"`
	Ops    []RepoOp `json:"ops"`
	Blocks []byte   `json:"blocks,omitempty"`
}

// RepoOp is a single create/update/delete action within a commit. Path is
// "collection/rkey".
type RepoOp struct {
	Action string `json:"action"`
	Path   string `json:"path"`
}

// IsPostCreate reports whether op creates a record in the post collection.
func IsPostCreate(op RepoOp) bool {
	return op.Action == ActionCreate && strings.HasPrefix(op.Path, PostCollection+"/")
}

// PostURI forms the globally unique at:// URI for a record path in a repo.
func PostURI(repo, path string) string {
	return "at://" + repo + "/" + path
}
