package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/basket/internal/models"
)

// ItemsLs shows the items on the active list.
func (r *Runner) ItemsLs(ctx context.Context, cmd *cli.Command) error {
	listID, err := r.activeList(cmd)
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	list, err := client.List(ctx, listID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(list.Items, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d of %d remaining)", list.Name, list.Remaining(), len(list.Items)))
	if len(list.Items) == 0 {
		return r.writePlain("Nothing on this list.\n")
	}

	for _, it := range list.Items {
		mark := " "
		if it.Completed {
			mark = "✓"
		}
		r.writePlain("[%s] %5d  %s", mark, it.ID, it.Name)
		if it.Quantity != "" {
			r.writePlain(" (%s)", it.Quantity)
		}
		r.writePlain("\n")
	}
	return nil
}

// ItemsAdd adds an item to the active list.
func (r *Runner) ItemsAdd(ctx context.Context, cmd *cli.Command) error {
	listID, err := r.activeList(cmd)
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	item, err := client.CreateItem(ctx, listID, models.ItemInput{
		Name:        strings.TrimSpace(cmd.StringArg("name")),
		Quantity:    cmd.String("quantity"),
		Description: cmd.String("description"),
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ Added %s (item %d)\n", item.Name, item.ID)
}

// ItemsUpdate changes the fields given as flags.
func (r *Runner) ItemsUpdate(ctx context.Context, cmd *cli.Command) error {
	listID, err := r.activeList(cmd)
	if err != nil {
		return err
	}
	itemID, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	item, err := client.UpdateItem(ctx, listID, itemID, models.ItemInput{
		Name:        strings.TrimSpace(cmd.String("name")),
		Quantity:    cmd.String("quantity"),
		Description: cmd.String("description"),
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ Updated %s\n", item.Name)
}

// ItemsToggle flips an item between open and completed.
func (r *Runner) ItemsToggle(ctx context.Context, cmd *cli.Command) error {
	listID, err := r.activeList(cmd)
	if err != nil {
		return err
	}
	itemID, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	item, err := client.ToggleItem(ctx, listID, itemID)
	if err != nil {
		return err
	}

	state := "open"
	if item.Completed {
		state = "done"
	}
	return r.writePlain("✓ %s is %s\n", item.Name, state)
}

// ItemsRm removes an item from the active list.
func (r *Runner) ItemsRm(ctx context.Context, cmd *cli.Command) error {
	listID, err := r.activeList(cmd)
	if err != nil {
		return err
	}
	itemID, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	if err := client.DeleteItem(ctx, listID, itemID); err != nil {
		return err
	}
	return r.writePlain("✓ Removed item %d\n", itemID)
}
