package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group membership and movie night commands",
	}

	cmd.AddCommand(newGroupCreateCmd())
	cmd.AddCommand(newGroupGetCmd())
	cmd.AddCommand(newGroupJoinCmd())
	cmd.AddCommand(newGroupLeaveCmd())
	cmd.AddCommand(newGroupAddMemberCmd())
	cmd.AddCommand(newGroupAddMovieCmd())
	cmd.AddCommand(newGroupReadyCmd())
	cmd.AddCommand(newGroupRepairCmd())

	return cmd
}

func groupPath(id, suffix string) string {
	return "/api/v1/groups/" + id + suffix
}

func newGroupCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"group_name": name}
			var result GroupRef

			if err := client.Post(cmd.Context(), "/api/v1/groups", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Group name (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newGroupGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <group-id>",
		Short: "Show group details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group

			if err := client.Get(cmd.Context(), groupPath(args[0], ""), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGroupJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <group-id>",
		Short: "Join a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Group

			if err := client.Post(cmd.Context(), groupPath(args[0], "/join"), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGroupLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <group-id>",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(cmd.Context(), groupPath(args[0], "/leave"), nil, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(fmt.Sprintf("Left group %s", args[0]))
			return nil
		},
	}
}

func newGroupAddMemberCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "add-member <group-id>",
		Short: "Add another user to a group you belong to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"username": user}
			var result Group

			if err := client.Post(cmd.Context(), groupPath(args[0], "/members"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username to add (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newGroupAddMovieCmd() *cobra.Command {
	var id, title string
	var year int

	cmd := &cobra.Command{
		Use:   "add-movie <group-id>",
		Short: "Propose a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"title": title}
			if id != "" {
				req["id"] = id
			}
			if year > 0 {
				req["year"] = year
			}
			var result Group

			if err := client.Post(cmd.Context(), groupPath(args[0], "/movies"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Movie title (required)")
	cmd.Flags().StringVar(&id, "id", "", "Movie identifier, e.g. an IMDb id")
	cmd.Flags().IntVar(&year, "year", 0, "Release year")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newGroupReadyCmd() *cobra.Command {
	var unready bool

	cmd := &cobra.Command{
		Use:   "ready <group-id>",
		Short: "Flag yourself ready for the next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]bool{"ready": !unready}
			var result Group

			if err := client.Post(cmd.Context(), groupPath(args[0], "/ready"), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&unready, "unready", false, "Clear your ready flag instead")

	return cmd
}

func newGroupRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair <group-id>",
		Short: "Restore missing group entries for every member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RepairResult

			if err := client.Post(cmd.Context(), groupPath(args[0], "/repair"), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
