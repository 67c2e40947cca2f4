package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/arond1/jotter/internal"
	"github.com/arond1/jotter/internal/notebook"
	"github.com/arond1/jotter/internal/notebookservice"
	pkgconfig "github.com/arond1/jotter/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// withService opens the backend for a one-shot command. Logs go to stderr
// so stdout stays clean for command output.
func withService(n int, fn func(ctx context.Context, svc *notebookservice.Service, args []string) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if cmd.Args().Len() != n {
			return fmt.Errorf("%s: expected %d argument(s), got %d", cmd.Name, n, cmd.Args().Len())
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		b, err := internal.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close()
		return fn(ctx, notebookservice.NewService(b.Manager, b.DB, nil, logger), cmd.Args().Slice())
	}
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API, event stream and file watcher",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve notebook tools over MCP on stdio",
			Action: serveMCP,
		},
		{
			Name:      "create",
			Usage:     "Create a notebook (or re-save an existing one)",
			ArgsUsage: "<notebook>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "user", Aliases: []string{"u"}, Usage: "Owner user id"},
				&cli.BoolFlag{Name: "public", Usage: "Mark the notebook public"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withService(1, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
					nb, created, err := svc.CreateNotebook(ctx, args[0], int(cmd.Int("user")), cmd.Bool("public"))
					if err != nil {
						return err
					}
					if !created {
						fmt.Fprintf(os.Stderr, "notebook %s already exists\n", args[0])
					}
					return printJSON(nb)
				})(ctx, cmd)
			},
		},
		{
			Name:  "list",
			Usage: "List notebooks",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "user", Aliases: []string{"u"}, Value: notebook.AllUsers, Usage: "Only this owner's notebooks"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withService(0, func(ctx context.Context, svc *notebookservice.Service, _ []string) error {
					list, err := svc.ListNotebooks(ctx, int(cmd.Int("user")))
					if err != nil {
						return err
					}
					for _, n := range list {
						fmt.Printf("%s\t%d\n", n.Name, n.User)
					}
					return nil
				})(ctx, cmd)
			},
		},
		{
			Name:      "tree",
			Usage:     "Print a notebook tree",
			ArgsUsage: "<notebook>",
			Action: withService(1, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				t, err := svc.Tree(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(t)
			}),
		},
		{
			Name:      "mkdir",
			Usage:     "Create a directory and its parents",
			ArgsUsage: "<notebook> <path>",
			Action: withService(2, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				return svc.CreateDirectory(ctx, args[0], args[1])
			}),
		},
		{
			Name:      "touch",
			Usage:     "Create an empty note and its parent directories",
			ArgsUsage: "<notebook> <path>",
			Action: withService(2, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				_, err := svc.CreateNote(ctx, args[0], args[1], nil)
				return err
			}),
		},
		{
			Name:      "mv",
			Usage:     "Rename a note or directory within its parent",
			ArgsUsage: "<notebook> <path> <new-name>",
			Action: withService(3, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				np, err := svc.RenameNote(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Println(np)
				return nil
			}),
		},
		{
			Name:      "rm",
			Usage:     "Delete a note",
			ArgsUsage: "<notebook> <path>",
			Action: withService(2, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				return svc.DeleteNote(ctx, args[0], args[1])
			}),
		},
		{
			Name:      "rmdir",
			Usage:     "Delete an empty directory",
			ArgsUsage: "<notebook> <path>",
			Action: withService(2, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				return svc.DeleteDirectory(ctx, args[0], args[1])
			}),
		},
		{
			Name:      "cat",
			Usage:     "Print a note",
			ArgsUsage: "<notebook> <path>",
			Action: withService(2, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				n, err := svc.GetNote(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Print(n.Content)
				return nil
			}),
		},
		{
			Name:      "verify",
			Usage:     "Compare a notebook tree with its directory",
			ArgsUsage: "<notebook>",
			Action: withService(1, func(ctx context.Context, svc *notebookservice.Service, args []string) error {
				problems, err := svc.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				for _, p := range problems {
					fmt.Printf("%s\t%s\n", p.Kind, p.Path)
				}
				if len(problems) > 0 {
					return fmt.Errorf("verify: %d problem(s) in %s", len(problems), args[0])
				}
				return nil
			}),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "jotter",
		Usage:  "Notebooks of Markdown notes mirrored between a JSON tree and the filesystem",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (defaults apply when it does not exist)",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: commands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
