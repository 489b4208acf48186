package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/astromechza/automerge-docs/pkg/rooms"
)

func newRoomsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "Create, share and delete document rooms",
	}
	cmd.AddCommand(
		newRoomsCreateCmd(app),
		newRoomsListCmd(app),
		newRoomsGetCmd(app),
		newRoomsRenameCmd(app),
		newRoomsShareCmd(app),
		newRoomsUnshareCmd(app),
		newRoomsDeleteCmd(app),
		newRoomsInboxCmd(app),
	)
	return cmd
}

func requireEmail(app *App) error {
	if app.Email == "" {
		return fmt.Errorf("--email is required")
	}
	return nil
}

func newRoomsCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a room owned by --email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(app); err != nil {
				return err
			}
			s, _, err := app.service()
			if err != nil {
				return err
			}
			room, err := s.CreateDocument(cmd.Context(), rooms.CreateDocumentParams{UserID: app.Email, Email: app.Email})
			if err != nil {
				return err
			}
			return writeOut(cmd, app, room)
		},
	}
}

func newRoomsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rooms --email has access to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(app); err != nil {
				return err
			}
			s, _, err := app.service()
			if err != nil {
				return err
			}
			list, err := s.GetDocuments(cmd.Context(), app.Email)
			if err != nil {
				return err
			}
			if list == nil {
				list = []rooms.Room{}
			}
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}
}

func newRoomsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <room>",
		Short: "Show a room --email has access to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(app); err != nil {
				return err
			}
			s, _, err := app.service()
			if err != nil {
				return err
			}
			room, err := s.GetDocument(cmd.Context(), args[0], app.Email)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, room)
		},
	}
}

func newRoomsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <room> <title>",
		Short: "Change a room's title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.service()
			if err != nil {
				return err
			}
			room, err := s.UpdateDocument(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeOut(cmd, app, room)
		},
	}
}

func newRoomsShareCmd(app *App) *cobra.Command {
	var userType string
	cmd := &cobra.Command{
		Use:   "share <room> <email>",
		Short: "Grant a collaborator access and notify them",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.service()
			if err != nil {
				return err
			}
			room, err := s.UpdateDocumentAccess(cmd.Context(), rooms.ShareDocumentParams{
				RoomID:    args[0],
				Email:     args[1],
				UserType:  rooms.UserType(userType),
				UpdatedBy: app.actor(),
			})
			if err != nil {
				return err
			}
			return writeOut(cmd, app, room)
		},
	}
	cmd.Flags().StringVar(&userType, "type", string(rooms.UserEditor), "Collaborator type (creator|editor|viewer)")
	return cmd
}

func newRoomsUnshareCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unshare <room> <email>",
		Short: "Revoke a collaborator's access",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.service()
			if err != nil {
				return err
			}
			room, err := s.RemoveCollaborator(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return writeOut(cmd, app, room)
		},
	}
}

func newRoomsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <room>",
		Short: "Delete a room and its document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := app.service()
			if err != nil {
				return err
			}
			nav, err := s.DeleteDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOut(cmd, app, nav)
		},
	}
}

func newRoomsInboxCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List the inbox notifications of --email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireEmail(app); err != nil {
				return err
			}
			c, err := app.client()
			if err != nil {
				return err
			}
			notifications, err := c.InboxNotifications(cmd.Context(), app.Email)
			if err != nil {
				return err
			}
			if notifications == nil {
				notifications = []rooms.Notification{}
			}
			return writeOut(cmd, app, map[string]any{"data": notifications})
		},
	}
}
