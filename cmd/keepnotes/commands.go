package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/keepnotes/internal"
	"github.com/starford/keepnotes/internal/apperr"
	"github.com/starford/keepnotes/internal/dispatch"
	"github.com/starford/keepnotes/internal/editor"
	"github.com/starford/keepnotes/internal/presenter"
	"github.com/starford/keepnotes/internal/theme"
	pkgconfig "github.com/starford/keepnotes/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// withSession opens the configured store for the duration of fn.
func withSession(ctx context.Context, cmd *cli.Command, fn func(*internal.Session) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := internal.Open(ctx, internal.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func idArg(cmd *cli.Command) (int64, error) {
	if cmd.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one note id")
	}
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid note id %q", cmd.Args().First())
	}
	return id, nil
}

// sendAll sends msgs in order and returns the last result.
func sendAll(ctx context.Context, d *dispatch.Dispatcher, msgs ...dispatch.Msg) (dispatch.Result, error) {
	var res dispatch.Result
	for _, m := range msgs {
		var err error
		if res, err = d.Send(ctx, m); err != nil {
			return res, err
		}
	}
	return res, nil
}

// openForEdit opens id in the editor and fails if it does not exist.
func openForEdit(ctx context.Context, d *dispatch.Dispatcher, id int64) error {
	res, err := d.Send(ctx, dispatch.OpenNote{ID: id})
	if err != nil {
		return err
	}
	if res.Editor.Mode != editor.Editing.String() {
		_, _ = d.Send(ctx, dispatch.Cancel{})
		return fmt.Errorf("note %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func render(cmd *cli.Command, res dispatch.Result, query string) error {
	p := presenter.NewText(out(cmd))
	p.Present(dispatch.View{
		Query:  query,
		Notes:  res.Notes,
		Total:  res.Total,
		Theme:  res.Theme,
		Editor: res.Editor,
	})
	return p.Err()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with live event streaming",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "Show all notes, newest first",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withSession(ctx, cmd, func(s *internal.Session) error {
				res, err := s.Dispatcher.Send(ctx, dispatch.ListNotes{})
				if err != nil {
					return err
				}
				return render(cmd, res, "")
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Show notes whose title or content contains the query",
		ArgsUsage: "<query>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := strings.Join(cmd.Args().Slice(), " ")
			return withSession(ctx, cmd, func(s *internal.Session) error {
				res, err := s.Dispatcher.Send(ctx, dispatch.Search{Query: query})
				if err != nil {
					return err
				}
				return render(cmd, res, query)
			})
		},
	}
}

func noteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title"},
		&cli.StringFlag{Name: "content", Aliases: []string{"m"}, Usage: "Note body"},
		&cli.StringFlag{Name: "color", Usage: "Palette color, e.g. #2196f3"},
	}
}

// draftMsgs turns the set note flags into editor messages.
func draftMsgs(cmd *cli.Command) []dispatch.Msg {
	var msgs []dispatch.Msg
	if cmd.IsSet("title") {
		msgs = append(msgs, dispatch.SetTitle{Title: cmd.String("title")})
	}
	if cmd.IsSet("content") {
		msgs = append(msgs, dispatch.SetContent{Content: cmd.String("content")})
	}
	if cmd.IsSet("color") {
		msgs = append(msgs, dispatch.SetColor{Color: cmd.String("color")})
	}
	return msgs
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create a note",
		Flags: noteFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withSession(ctx, cmd, func(s *internal.Session) error {
				msgs := append([]dispatch.Msg{dispatch.NewNote{}}, draftMsgs(cmd)...)
				msgs = append(msgs, dispatch.Save{})
				res, err := sendAll(ctx, s.Dispatcher, msgs...)
				if errors.Is(err, apperr.ErrEmptyDraft) {
					return fmt.Errorf("nothing to save: title and content are empty")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Created note [%d] %s\n", res.Note.ID, res.Note.Title)
				return nil
			})
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change a note's title, content or color",
		ArgsUsage: "<id>",
		Flags:     noteFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := idArg(cmd)
			if err != nil {
				return err
			}
			return withSession(ctx, cmd, func(s *internal.Session) error {
				if err := openForEdit(ctx, s.Dispatcher, id); err != nil {
					return err
				}
				msgs := append(draftMsgs(cmd), dispatch.Save{})
				res, err := sendAll(ctx, s.Dispatcher, msgs...)
				if errors.Is(err, apperr.ErrEmptyDraft) {
					_, _ = s.Dispatcher.Send(ctx, dispatch.Cancel{})
					return fmt.Errorf("nothing to save: title and content are empty")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Updated note [%d] %s\n", res.Note.ID, res.Note.Title)
				return nil
			})
		},
	}
}

// promptConfirmer asks on r/w and accepts only y or yes.
func promptConfirmer(r io.Reader, w io.Writer) editor.Confirmer {
	return editor.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(w, "%s [y/N] ", prompt)
		line, err := bufio.NewReader(r).ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func rmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a note",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Skip the confirmation prompt"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := idArg(cmd)
			if err != nil {
				return err
			}
			confirm := promptConfirmer(cmd.Root().Reader, out(cmd))
			if cmd.Bool("yes") {
				confirm = editor.ConfirmFunc(func(string) bool { return true })
			}
			return withSession(ctx, cmd, func(s *internal.Session) error {
				if err := openForEdit(ctx, s.Dispatcher, id); err != nil {
					return err
				}
				_, err := s.Dispatcher.Send(ctx, dispatch.DeleteCurrent{Confirm: confirm})
				if errors.Is(err, apperr.ErrNotConfirmed) {
					_, _ = s.Dispatcher.Send(ctx, dispatch.Cancel{})
					fmt.Fprintln(out(cmd), "Cancelled.")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out(cmd), "Deleted note %d\n", id)
				return nil
			})
		},
	}
}

func themeCommand() *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Show or change the theme",
		ArgsUsage: "[light|dark|toggle]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var msg dispatch.Msg = dispatch.EditorStatus{}
			switch arg := cmd.Args().First(); arg {
			case "":
			case "toggle":
				msg = dispatch.ToggleTheme{}
			default:
				mode, err := theme.Parse(arg)
				if err != nil {
					return err
				}
				msg = dispatch.SetTheme{Mode: mode}
			}
			return withSession(ctx, cmd, func(s *internal.Session) error {
				res, err := s.Dispatcher.Send(ctx, msg)
				if err != nil {
					return err
				}
				fmt.Fprintln(out(cmd), res.Theme)
				return nil
			})
		},
	}
}
