package main

import (
	"fmt"
	"io"
	"os"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/astromechza/automerge-docs/pkg/docstore"
	"github.com/astromechza/automerge-docs/pkg/viz"
)

func newDocCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Fetch and inspect automerge document saves",
	}
	cmd.AddCommand(newDocFetchCmd(app), newDocDumpCmd(app), newDocGraphCmd(app))
	return cmd
}

func loadDoc(path string) (*automerge.Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	doc, err := automerge.Load(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to load doc: %w", err)
	}
	return doc, nil
}

func newDocFetchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <room> <file>",
		Short: "Download the latest save of a room's document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return err
			}
			raw, err := c.Document(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], raw, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			return writeOut(cmd, app, map[string]any{"room": args[0], "path": args[1], "bytes": len(raw)})
		},
	}
}

type changeInfo struct {
	Hash         string   `json:"hash"`
	Actor        string   `json:"actor"`
	Seq          uint64   `json:"seq"`
	Message      string   `json:"message,omitempty"`
	Dependencies []string `json:"dependencies"`
	Summary      string   `json:"summary"`
}

func newDocDumpCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print the blocks and change log of a document save",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDoc(args[0])
			if err != nil {
				return err
			}
			blocks, err := docstore.ReadBlocks(doc)
			if err != nil {
				return err
			}
			changes, err := doc.Changes()
			if err != nil {
				return fmt.Errorf("failed to generate changes: %w", err)
			}
			log := make([]changeInfo, 0, len(changes))
			for _, change := range changes {
				docAt, err := doc.Fork(change.Hash())
				if err != nil {
					return fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
				}
				summary, err := viz.Summary(docAt)
				if err != nil {
					summary = "unreadable"
				}
				deps := make([]string, 0, len(change.Dependencies()))
				for _, d := range change.Dependencies() {
					deps = append(deps, d.String())
				}
				log = append(log, changeInfo{
					Hash:         change.Hash().String(),
					Actor:        change.ActorID(),
					Seq:          change.ActorSeq(),
					Message:      change.Message(),
					Dependencies: deps,
					Summary:      summary,
				})
			}
			heads := make([]string, 0)
			for _, h := range doc.Heads() {
				heads = append(heads, h.String())
			}
			text := make([]string, 0, len(blocks))
			for _, b := range blocks {
				text = append(text, docstore.PlainText(b))
			}
			return writeOut(cmd, app, map[string]any{
				"heads":   heads,
				"blocks":  blocks,
				"text":    text,
				"changes": log,
			})
		},
	}
}

func newDocGraphCmd(app *App) *cobra.Command {
	var out, format string
	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Render the change history of a document save with graphviz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadDoc(args[0])
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			return viz.Render(doc, graphviz.Format(format), w)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write the graph to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", string(graphviz.SVG), "Output format (dot|svg|png|jpg)")
	return cmd
}
