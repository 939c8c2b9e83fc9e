package remote

import "strings"

// paragraphSeparator joins paragraphs in the reassembled transcript.
const paragraphSeparator = "\n\n"

type block struct {
	text string
}

// Reassembler accumulates a stream of heterogeneous updates into one
// monotonically-growing display string. Message texts become paragraphs;
// artifacts become headed paragraphs that grow in place on append updates.
// String is side-effect-free, so it can be called after every event to
// drive incremental output.
type Reassembler struct {
	blocks    []*block
	artifacts map[string]*block
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{artifacts: make(map[string]*block)}
}

// AddMessage appends a message paragraph. Empty text is ignored. Status
// updates carrying an embedded message go through here too.
func (r *Reassembler) AddMessage(text string) {
	if text == "" {
		return
	}
	r.blocks = append(r.blocks, &block{text: text})
}

// AddArtifact records an artifact update. A non-append update starts (or
// resets) the artifact's paragraph with its header; an append update
// concatenates directly onto the existing paragraph with no separator.
func (r *Reassembler) AddArtifact(id, name string, appendChunk bool, text string) {
	if appendChunk {
		if b, ok := r.artifacts[id]; ok {
			b.text += text
			return
		}
	}
	b := &block{text: "Artifact (" + name + "):\n" + text}
	if existing, ok := r.artifacts[id]; ok && !appendChunk {
		// Explicit reset: rewrite the artifact's paragraph in place.
		existing.text = b.text
		r.artifacts[id] = existing
		return
	}
	r.artifacts[id] = b
	r.blocks = append(r.blocks, b)
}

// String returns the transcript assembled so far.
func (r *Reassembler) String() string {
	parts := make([]string, 0, len(r.blocks))
	for _, b := range r.blocks {
		parts = append(parts, b.text)
	}
	return strings.Join(parts, paragraphSeparator)
}
