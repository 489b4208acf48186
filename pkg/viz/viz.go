// Package viz renders the change history of a room document as a graph.
package viz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/automerge-docs/pkg/docstore"
)

const maxSummary = 24

// Summary describes the document content at one point in its history: the number of blocks and
// the start of the first non-empty block.
func Summary(doc *automerge.Doc) (string, error) {
	blocks, err := docstore.ReadBlocks(doc)
	if err != nil {
		return "", err
	}
	first := ""
	for _, b := range blocks {
		if first = strings.TrimSpace(docstore.PlainText(b)); first != "" {
			break
		}
	}
	if r := []rune(first); len(r) > maxSummary {
		first = string(r[:maxSummary]) + "…"
	}
	return fmt.Sprintf("%d blocks %q", len(blocks), first), nil
}

// Label is the graph label of a change.
func Label(change *automerge.Change, summary string) string {
	return fmt.Sprintf("%s %s@%d %s", change.Hash().String()[:8], change.ActorID(), change.ActorSeq(), summary)
}

func buildGraph(g *graphviz.Graphviz, doc *automerge.Doc) (*cgraph.Graph, error) {
	graph, err := g.Graph()
	if err != nil {
		return nil, fmt.Errorf("failed to setup graph: %w", err)
	}

	changes, err := doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate changes: %w", err)
	}

	nodeMap := make(map[string]*cgraph.Node)
	var edgeCounter uint64
	for _, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		summary, err := Summary(docAt)
		if err != nil {
			summary = "unreadable"
		}

		n, err := graph.CreateNode(change.Hash().String())
		if err != nil {
			return nil, fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(Label(change, summary))
		nodeMap[n.Name()] = n

		for _, hash := range change.Dependencies() {
			_, err := graph.CreateEdge(strconv.Itoa(int(atomic.AddUint64(&edgeCounter, 1))), nodeMap[hash.String()], n)
			if err != nil {
				return nil, fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}
	return graph, nil
}

// Render writes the change graph of doc in the given format.
func Render(doc *automerge.Doc, format graphviz.Format, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()
	graph, err := buildGraph(g, doc)
	if err != nil {
		return err
	}
	defer graph.Close()
	if err := g.Render(graph, format, w); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func RenderDocToSvg(doc *automerge.Doc, outputPath string) error {
	var buff bytes.Buffer
	if err := Render(doc, graphviz.SVG, &buff); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buff.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func RenderToTemp(doc *automerge.Doc) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderDocToSvg(doc, tf); err != nil {
		return "", err
	}
	return tf, nil
}
