package gen

import "strings"

// Block is one node of the declaration tree: a header line (empty for the
// file root) plus an ordered mix of plain lines and child blocks. The whole
// tree is rendered to text once, at the end of a file's translation; nothing
// is ever spliced back into already-rendered text.
type Block struct {
	Header string
	items  []blockItem
}

type blockItem struct {
	line  string
	child *Block
}

// AddLine appends one statement line to the block body.
func (b *Block) AddLine(line string) {
	b.items = append(b.items, blockItem{line: line})
}

// AddLines appends several statement lines.
func (b *Block) AddLines(lines ...string) {
	for _, l := range lines {
		b.AddLine(l)
	}
}

// AddChild appends a nested block with the given header and returns it.
// Children render immediately after the point of insertion, preserving the
// header-then-body ordering of the parent.
func (b *Block) AddChild(header string) *Block {
	child := &Block{Header: header}
	b.items = append(b.items, blockItem{child: child})
	return child
}

// Empty reports whether the block has no body items.
func (b *Block) Empty() bool {
	return len(b.items) == 0
}

const indentUnit = "    "

// Render writes the block at the given indent depth. An empty body renders a
// single "..." placeholder so the declaration stays syntactically valid.
func (b *Block) Render(sb *strings.Builder, depth int) {
	if b.Header != "" {
		writeIndented(sb, depth, b.Header)
		depth++
	}
	if b.Empty() {
		if b.Header != "" {
			writeIndented(sb, depth, "...")
		}
		return
	}
	for _, item := range b.items {
		if item.child != nil {
			item.child.Render(sb, depth)
			continue
		}
		writeIndented(sb, depth, item.line)
	}
}

// RenderRoot renders a root block's items with a blank line between
// consecutive top-level class blocks.
func (b *Block) RenderRoot(sb *strings.Builder) {
	for i, item := range b.items {
		if item.child != nil {
			if i > 0 {
				sb.WriteString("\n")
			}
			item.child.Render(sb, 0)
			continue
		}
		writeIndented(sb, 0, item.line)
	}
}

func writeIndented(sb *strings.Builder, depth int, line string) {
	for i := 0; i < depth; i++ {
		sb.WriteString(indentUnit)
	}
	sb.WriteString(line)
	sb.WriteString("\n")
}
