package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/basket/internal/models"
)

var (
	_ list.Item = listEntry{}
	_ list.Item = itemEntry{}
)

// listEntry wraps [models.ShoppingList] to implement [list.Item].
type listEntry struct {
	list models.ShoppingList
}

func (e listEntry) FilterValue() string { return e.list.Name }
func (e listEntry) Title() string       { return e.list.Name }
func (e listEntry) Description() string {
	desc := fmt.Sprintf("%d members", len(e.list.Members))
	if len(e.list.Items) > 0 {
		desc = fmt.Sprintf("%d of %d left • %s", e.list.Remaining(), len(e.list.Items), desc)
	}
	if e.list.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, e.list.Description)
	}
	return desc
}

// itemEntry wraps [models.Item] to implement [list.Item].
type itemEntry struct {
	item models.Item
}

func (e itemEntry) FilterValue() string { return e.item.Name }
func (e itemEntry) Title() string {
	if e.item.Completed {
		return styles.done.Render("✓ " + e.item.Name)
	}
	return "  " + e.item.Name
}

func (e itemEntry) Description() string {
	desc := e.item.Quantity
	if e.item.Description != "" {
		if desc != "" {
			desc += " • "
		}
		desc += e.item.Description
	}
	return desc
}

func listEntries(lists []models.ShoppingList) []list.Item {
	out := make([]list.Item, len(lists))
	for i, l := range lists {
		out[i] = listEntry{list: l}
	}
	return out
}

func itemEntries(items []models.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = itemEntry{item: it}
	}
	return out
}
