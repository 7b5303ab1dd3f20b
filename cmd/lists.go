package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/basket/internal/formatter"
	"github.com/desertthunder/basket/internal/models"
	"github.com/desertthunder/basket/internal/shared"
)

// idArg parses a positional argument as a positive id.
func idArg(cmd *cli.Command, name string) (int64, error) {
	raw := strings.TrimSpace(cmd.StringArg(name))
	if raw == "" {
		return 0, fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number, got %q", shared.ErrInvalidArgument, name, raw)
	}
	return id, nil
}

// ListsLs shows the user's lists, marking the active one.
func (r *Runner) ListsLs(ctx context.Context, cmd *cli.Command) error {
	var lists []models.ShoppingList

	if cmd.Bool("offline") {
		if err := r.store(); err != nil {
			return err
		}
		cached, err := r.cache.List()
		if err != nil {
			return err
		}
		for _, c := range cached {
			lists = append(lists, c.List)
		}
	} else {
		client, err := r.client()
		if err != nil {
			return err
		}
		if lists, err = client.Lists(ctx); err != nil {
			return err
		}
		if err := r.cache.Replace(lists); err != nil {
			r.logger.Warn("could not cache lists", "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(lists, cmd.Bool("pretty"))
	}

	if len(lists) == 0 {
		return r.writePlain("No lists yet. Create one with 'basket lists create <name>'.\n")
	}

	active, _, err := r.prefs.LastActiveList()
	if err != nil {
		r.logger.Warn("could not read active list", "error", err)
	}

	r.writePlainHeader(fmt.Sprintf("Lists (%d)", len(lists)))
	for _, l := range lists {
		marker := " "
		if l.ID == active {
			marker = "*"
		}
		r.writePlain("%s %4d  %s", marker, l.ID, l.Name)
		if l.Description != "" {
			r.writePlain(" - %s", l.Description)
		}
		r.writePlain("\n")
	}
	return nil
}

// ListsCreate creates a list and makes it active.
func (r *Runner) ListsCreate(ctx context.Context, cmd *cli.Command) error {
	client, err := r.client()
	if err != nil {
		return err
	}

	list, err := client.CreateList(ctx, models.ListInput{
		Name:        strings.TrimSpace(cmd.StringArg("name")),
		Description: cmd.String("description"),
	})
	if err != nil {
		return err
	}

	if err := r.cache.Save(*list); err != nil {
		r.logger.Warn("could not cache list", "list_id", list.ID, "error", err)
	}
	if err := r.prefs.SetLastActiveList(list.ID); err != nil {
		return err
	}

	return r.writePlain("✓ Created list %d: %s\n", list.ID, list.Name)
}

// ListsRename renames a list, keeping its description.
func (r *Runner) ListsRename(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	current, err := client.List(ctx, id)
	if err != nil {
		return err
	}

	list, err := client.UpdateList(ctx, id, models.ListInput{
		Name:        strings.TrimSpace(cmd.StringArg("name")),
		Description: current.Description,
	})
	if err != nil {
		return err
	}

	if err := r.cache.Save(*list); err != nil {
		r.logger.Warn("could not cache list", "list_id", id, "error", err)
	}
	return r.writePlain("✓ Renamed list %d: %s → %s\n", id, current.Name, list.Name)
}

// ListsDelete deletes a list and forgets it locally.
func (r *Runner) ListsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	if err := client.DeleteList(ctx, id); err != nil {
		return err
	}

	if err := r.cache.Delete(id); err != nil {
		r.logger.Debug("list was not cached", "list_id", id, "error", err)
	}
	if active, ok, err := r.prefs.LastActiveList(); err == nil && ok && active == id {
		if err := r.prefs.ClearLastActiveList(); err != nil {
			return err
		}
	}

	return r.writePlain("✓ Deleted list %d\n", id)
}

// ListsShare invites a user to a list by email.
func (r *Runner) ListsShare(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	email := strings.TrimSpace(cmd.StringArg("email"))
	list, err := client.ShareList(ctx, id, email)
	if err != nil {
		return err
	}

	if err := r.cache.Save(*list); err != nil {
		r.logger.Warn("could not cache list", "list_id", id, "error", err)
	}
	return r.writePlain("✓ Shared %s with %s\n", list.Name, email)
}

// ListsUnshare removes a member from a list.
func (r *Runner) ListsUnshare(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}
	userID, err := idArg(cmd, "user-id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	if err := client.RemoveMember(ctx, id, userID); err != nil {
		return err
	}
	return r.writePlain("✓ Removed user %d from list %d\n", userID, id)
}

// ListsUse makes a list the active list after checking it is reachable.
func (r *Runner) ListsUse(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	list, err := client.List(ctx, id)
	if err != nil {
		return err
	}

	if err := r.cache.Save(*list); err != nil {
		r.logger.Warn("could not cache list", "list_id", id, "error", err)
	}
	if err := r.prefs.SetLastActiveList(id); err != nil {
		return err
	}
	return r.writePlain("✓ Active list is now %s\n", list.Name)
}

// ListsExport renders a list through the formatter.
func (r *Runner) ListsExport(ctx context.Context, cmd *cli.Command) error {
	id, err := idArg(cmd, "id")
	if err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	client, err := r.client()
	if err != nil {
		return err
	}

	list, err := client.List(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("stdout") {
		data, err := formatter.Export(*list, format)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	path, err := formatter.WriteExport(*list, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("exported list", "list_id", id, "format", format, "path", path)
	return r.writePlain("✓ Exported %s to %s\n", list.Name, path)
}
