package main

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/astromechza/automerge-docs/pkg/config"
	"github.com/astromechza/automerge-docs/pkg/rooms"
	"github.com/astromechza/automerge-docs/pkg/rooms/liveblocks"
)

type App struct {
	Backend config.Backend
	Email   string
	Name    string
	Avatar  string
	Pretty  bool
}

func newRootCmd() *cobra.Command {
	app := &App{}
	envErr := config.ParseEnv(&app.Backend)

	cmd := &cobra.Command{
		Use:           "docctl",
		Short:         "Operate document rooms and inspect document saves",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Create a room and share it
  docctl --email ann@example.com rooms create
  docctl --email ann@example.com rooms share <room> bob@example.com --type viewer

  # Inspect a saved document
  docctl doc dump ./room.automerge
  docctl doc graph ./room.automerge --out history.svg
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return envErr
		},
	}

	cmd.PersistentFlags().StringVar(&app.Backend.BaseURL, "backend", app.Backend.BaseURL, "Collaboration backend url (ROOMS_BACKEND_URL)")
	cmd.PersistentFlags().StringVar(&app.Backend.Secret, "secret", app.Backend.Secret, "Backend secret key (ROOMS_SECRET_KEY)")
	cmd.PersistentFlags().StringVar(&app.Email, "email", "", "Email of the acting user")
	cmd.PersistentFlags().StringVar(&app.Name, "name", "", "Display name of the acting user")
	cmd.PersistentFlags().StringVar(&app.Avatar, "avatar", "", "Avatar url of the acting user")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newRoomsCmd(app))
	cmd.AddCommand(newDocCmd(app))
	return cmd
}

func (a *App) client() (*liveblocks.Client, error) {
	return liveblocks.NewClient(a.Backend.BaseURL, a.Backend.Secret)
}

func (a *App) service() (*rooms.Service, *liveblocks.Client, error) {
	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	return rooms.NewService(c, rooms.WithLogger(slog.Default())), c, nil
}

func (a *App) actor() rooms.Actor {
	name := a.Name
	if name == "" {
		name = a.Email
	}
	return rooms.Actor{ID: a.Email, Name: name, Email: a.Email, Avatar: a.Avatar}
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
