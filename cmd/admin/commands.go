package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"agora/internal/repository"
	"agora/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type services struct {
	admin      *service.AdminService
	categories *service.CategoryService
}

// newRootCmd builds the command tree. open is called lazily so --help works
// without a database.
func newRootCmd(open func() (*gorm.DB, error)) *cobra.Command {
	var svc *services
	load := func(cmd *cobra.Command, _ []string) error {
		db, err := open()
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		users := repository.NewUserRepository(db)
		posts := repository.NewPostRepository(db)
		comments := repository.NewCommentRepository(db)
		svc = &services{
			admin:      service.NewAdminService(users, posts, comments),
			categories: service.NewCategoryService(repository.NewCategoryRepository(db)),
		}
		return nil
	}

	root := &cobra.Command{
		Use:               "admin",
		Short:             "Agora administration utilities",
		SilenceUsage:      true,
		PersistentPreRunE: load,
	}

	setAdmin := func(admin bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			user, err := svc.admin.SetAdminByUsername(cmd.Context(), args[0], admin)
			if err != nil {
				return err
			}
			verb := "demoted"
			if admin {
				verb = "promoted"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (ID: %d)\n", verb, user.Username, user.ID)
			return nil
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "promote <username>",
		Short: "Grant administrator rights",
		Args:  cobra.ExactArgs(1),
		RunE:  setAdmin(true),
	}, &cobra.Command{
		Use:   "demote <username>",
		Short: "Revoke administrator rights",
		Args:  cobra.ExactArgs(1),
		RunE:  setAdmin(false),
	}, &cobra.Command{
		Use:   "list-admins",
		Short: "List every administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			admins, err := svc.admin.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}
			if len(admins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No admins found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL")
			for _, a := range admins {
				fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.Username, a.Email)
			}
			return w.Flush()
		},
	})

	setActive := func(active bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			post, err := svc.admin.SetPostActive(cmd.Context(), 0, id, active)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "post %d %q is_active=%t\n", post.ID, post.Title, post.IsActive)
			return nil
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "activate-post <post_id>",
		Short: "Make a post eligible for public listing",
		Args:  cobra.ExactArgs(1),
		RunE:  setActive(true),
	}, &cobra.Command{
		Use:   "deactivate-post <post_id>",
		Short: "Hide a post from every listing",
		Args:  cobra.ExactArgs(1),
		RunE:  setActive(false),
	})

	category := &cobra.Command{
		Use:   "category",
		Short: "Manage post categories",
	}
	category.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := svc.categories.CreateCategory(cmd.Context(), 0, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created category %q (ID: %d)\n", c.Name, c.ID)
			return nil
		},
	}, &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := svc.categories.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Name)
			}
			return nil
		},
	})
	root.AddCommand(category)

	return root
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid post id %q", raw)
	}
	return uint(id), nil
}
