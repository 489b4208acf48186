package editor

import "slices"

func (e *Editor) registerBuiltins() {
	RegisterCommand(e, FormatTextCommand, e.formatText, PriorityEditor)
	RegisterCommand(e, FormatElementCommand, e.formatElement, PriorityEditor)
	RegisterCommand(e, InsertListCommand, e.insertList, PriorityEditor)
	RegisterCommand(e, RemoveListCommand, func(Empty) bool { return e.removeList() }, PriorityEditor)
}

func (e *Editor) formatText(name TextFormat) bool {
	flag, err := name.Flag()
	if err != nil {
		e.logger.Error("failed to format text", "err", err)
		return false
	}
	if err := e.Update(func(tx *Tx) error {
		rs, ok := AsRangeSelection(tx.Selection())
		if !ok {
			return nil
		}
		// A caret only changes the marks pending for the next insertion.
		if rs.IsCollapsed() {
			tx.SetSelectionFormat(rs.Format ^ flag)
			return nil
		}
		var texts []*Node
		for _, n := range rs.Nodes() {
			if n.IsText() {
				texts = append(texts, n)
			}
		}
		on := !uniformFormat(texts).Has(flag)
		for _, n := range texts {
			f := n.Format &^ flag
			if on {
				f |= flag
			}
			if err := tx.SetFormat(n.Key, f); err != nil {
				return err
			}
		}
		tx.SetSelection(rs)
		return nil
	}); err != nil {
		e.logger.Error("failed to format text", "format", name, "err", err)
		return false
	}
	return true
}

func (e *Editor) formatElement(a Alignment) bool {
	if err := e.Update(func(tx *Tx) error {
		sel := tx.Selection()
		if sel == nil {
			return nil
		}
		for _, block := range touchedBlocks(&tx.View, sel) {
			if err := tx.SetAlign(block.Key, a); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		e.logger.Error("failed to align blocks", "align", a, "err", err)
		return false
	}
	return true
}

func (e *Editor) insertList(t ListType) bool {
	if !t.Valid() {
		e.logger.Error("failed to insert list", "type", t)
		return false
	}
	if err := e.Update(func(tx *Tx) error {
		sel := tx.Selection()
		if sel == nil {
			return nil
		}
		blocks := touchedBlocks(&tx.View, sel)
		if len(blocks) == 0 {
			return nil
		}
		if len(blocks) == 1 && IsList(blocks[0]) {
			n, err := tx.writable(blocks[0].Key)
			if err != nil {
				return err
			}
			n.Tag = string(t)
			return nil
		}
		list := tx.CreateList(t)
		if err := tx.InsertBefore(blocks[0].Key, list.Key); err != nil {
			return err
		}
		for _, block := range blocks {
			if IsList(block) {
				if err := tx.Append(list.Key, slices.Clone(block.Children)...); err != nil {
					return err
				}
				if err := tx.detach(block.Key); err != nil {
					return err
				}
				continue
			}
			item := tx.CreateListItem()
			if err := tx.Append(list.Key, item.Key); err != nil {
				return err
			}
			if err := tx.Append(item.Key, slices.Clone(block.Children)...); err != nil {
				return err
			}
			tx.remap[block.Key] = item.Key
			if err := tx.detach(block.Key); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		e.logger.Error("failed to insert list", "type", t, "err", err)
		return false
	}
	return true
}

func (e *Editor) removeList() bool {
	if err := e.Update(func(tx *Tx) error {
		sel := tx.Selection()
		if sel == nil {
			return nil
		}
		var lists []*Node
		for _, block := range touchedBlocks(&tx.View, sel) {
			if IsList(block) {
				lists = append(lists, block)
			}
		}
		if len(lists) == 0 {
			return nil
		}
		return tx.SetBlocksType(listSelection(lists), func() *Node { return tx.CreateParagraph() })
	}); err != nil {
		e.logger.Error("failed to remove list", "err", err)
		return false
	}
	return true
}

func listSelection(lists []*Node) *NodeSelection {
	keys := make([]NodeKey, 0, len(lists))
	for _, l := range lists {
		keys = append(keys, l.Key)
	}
	return &NodeSelection{Keys: keys}
}
