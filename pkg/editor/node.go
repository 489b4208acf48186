package editor

import (
	"fmt"
	"slices"
)

type NodeKey string

// RootKey is the key of the single root node every state carries.
const RootKey NodeKey = "root"

type NodeType string

const (
	TypeRoot      NodeType = "root"
	TypeParagraph NodeType = "paragraph"
	TypeHeading   NodeType = "heading"
	TypeQuote     NodeType = "quote"
	TypeList      NodeType = "list"
	TypeListItem  NodeType = "listitem"
	TypeText      NodeType = "text"
)

type HeadingTag string

const (
	H1 HeadingTag = "h1"
	H2 HeadingTag = "h2"
	H3 HeadingTag = "h3"
	H4 HeadingTag = "h4"
	H5 HeadingTag = "h5"
	H6 HeadingTag = "h6"
)

func (t HeadingTag) Valid() bool {
	switch t {
	case H1, H2, H3, H4, H5, H6:
		return true
	}
	return false
}

type ListType string

const (
	ListBullet ListType = "bullet"
	ListNumber ListType = "number"
	ListCheck  ListType = "check"
)

func (t ListType) Valid() bool {
	return t == ListBullet || t == ListNumber || t == ListCheck
}

type Alignment string

const (
	AlignNone    Alignment = ""
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

func (a Alignment) Valid() bool {
	switch a {
	case AlignNone, AlignLeft, AlignCenter, AlignRight, AlignJustify:
		return true
	}
	return false
}

// Format is the bitset of inline marks carried by a text node.
type Format uint8

const (
	FormatBold Format = 1 << iota
	FormatItalic
	FormatStrikethrough
	FormatUnderline
)

// TextFormat names a single inline mark. It is the payload of FormatTextCommand.
type TextFormat string

const (
	TextBold          TextFormat = "bold"
	TextItalic        TextFormat = "italic"
	TextUnderline     TextFormat = "underline"
	TextStrikethrough TextFormat = "strikethrough"
)

var textFormats = []struct {
	name TextFormat
	flag Format
}{
	{TextBold, FormatBold},
	{TextItalic, FormatItalic},
	{TextStrikethrough, FormatStrikethrough},
	{TextUnderline, FormatUnderline},
}

// Flag returns the bit for the named format.
func (f TextFormat) Flag() (Format, error) {
	for _, tf := range textFormats {
		if tf.name == f {
			return tf.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown text format %q", string(f))
}

func (f Format) Has(o Format) bool {
	return f&o == o
}

// Names lists the marks set in f in a stable order.
func (f Format) Names() []TextFormat {
	out := make([]TextFormat, 0, len(textFormats))
	for _, tf := range textFormats {
		if f.Has(tf.flag) {
			out = append(out, tf.name)
		}
	}
	return out
}

// Node is a single element or text node. Nodes handed out by a View are shared with the
// committed state and must be treated as read-only; all writes go through a Tx.
type Node struct {
	Key      NodeKey
	Type     NodeType
	Parent   NodeKey
	Children []NodeKey

	// Tag holds the heading level for headings and the list type for lists.
	Tag   string
	Align Alignment

	Text   string
	Format Format
	Style  string
}

func (n *Node) IsElement() bool {
	return n != nil && n.Type != TypeText
}

func (n *Node) IsText() bool {
	return n != nil && n.Type == TypeText
}

func (n *Node) clone() *Node {
	c := *n
	c.Children = slices.Clone(n.Children)
	return &c
}

// IsHeading reports whether n is a heading block.
func IsHeading(n *Node) bool {
	return n != nil && n.Type == TypeHeading
}

func IsList(n *Node) bool {
	return n != nil && n.Type == TypeList
}
