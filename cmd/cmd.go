// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

func listFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:    "list",
		Aliases: []string{"l"},
		Usage:   "List ID (defaults to the active list)",
	}
}

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Write config.toml if missing, initialize the database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password and store the access token",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password (defaults to $BASKET_PASSWORD)",
						Sources: cli.EnvVars("BASKET_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored access token and active list",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token and the signed-in user",
				Action: r.AuthStatus,
			},
		},
	}
}

// listsCommand handles shopping list operations
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "lists",
		Aliases: []string{"list"},
		Usage:   "Shopping list operations",
		Commands: []*cli.Command{
			{
				Name:    "ls",
				Aliases: []string{"all"},
				Usage:   "Show your lists",
				Flags: append(outputFlags(), &cli.BoolFlag{
					Name:  "offline",
					Usage: "Read the local cache instead of the API",
				}),
				Action: r.ListsLs,
			},
			{
				Name:      "create",
				Usage:     "Create a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "List description",
					},
				},
				Action: r.ListsCreate,
			},
			{
				Name:  "rename",
				Usage: "Rename a list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "name"},
				},
				Action: r.ListsRename,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ListsDelete,
			},
			{
				Name:  "share",
				Usage: "Share a list with another user by email",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "email"},
				},
				Action: r.ListsShare,
			},
			{
				Name:  "unshare",
				Usage: "Remove a member from a list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "user-id"},
				},
				Action: r.ListsUnshare,
			},
			{
				Name:      "use",
				Usage:     "Make a list the active list",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ListsUse,
			},
			{
				Name:      "export",
				Usage:     "Export a list to CSV, Markdown or plain text",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, md, txt)",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: list_{id}.{format})",
					},
					&cli.BoolFlag{
						Name:  "stdout",
						Usage: "Print the export instead of writing a file",
					},
				},
				Action: r.ListsExport,
			},
		},
	}
}

// itemsCommand handles item operations on the active list
func itemsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "items",
		Aliases: []string{"item"},
		Usage:   "Item operations",
		Commands: []*cli.Command{
			{
				Name:   "ls",
				Usage:  "Show the items on a list",
				Flags:  append(outputFlags(), listFlag()),
				Action: r.ItemsLs,
			},
			{
				Name:      "add",
				Usage:     "Add an item",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					listFlag(),
					&cli.StringFlag{
						Name:    "quantity",
						Aliases: []string{"q"},
						Usage:   "Quantity, e.g. \"2 l\"",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "Item description",
					},
				},
				Action: r.ItemsAdd,
			},
			{
				Name:      "update",
				Usage:     "Update an item",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					listFlag(),
					&cli.StringFlag{
						Name:  "name",
						Usage: "New name",
					},
					&cli.StringFlag{
						Name:    "quantity",
						Aliases: []string{"q"},
						Usage:   "New quantity",
					},
					&cli.StringFlag{
						Name:    "description",
						Aliases: []string{"d"},
						Usage:   "New description",
					},
				},
				Action: r.ItemsUpdate,
			},
			{
				Name:      "toggle",
				Usage:     "Flip an item between open and completed",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{listFlag()},
				Action:    r.ItemsToggle,
			},
			{
				Name:      "rm",
				Aliases:   []string{"delete"},
				Usage:     "Remove an item",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{listFlag()},
				Action:    r.ItemsRm,
			},
		},
	}
}

// watchCommand follows the live feed of a list.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Print live changes to a list until interrupted",
		Flags:  []cli.Flag{listFlag()},
		Action: r.Watch,
	}
}

// tuiCommand returns the top-level TUI command for interactive list management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive shopping list TUI",
		Action:  r.TUI,
	}
}
