package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdash/internal/app"
	"taskdash/internal/config"
	"taskdash/internal/db"
	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/engine/auth"
	"taskdash/internal/migrate"
	"taskdash/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "taskdash CLI",
	Long: `taskdash tracks team tasks, projects and notifications.

Most commands act on behalf of a user given with --as (a user id or email).
Operator commands such as "user create", "migrate" and "serve" do not need one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("as", "", "acting user (id or email)")
	flags.String("config", "", "config file (defaults to <workspace>/taskdash.yml)")
	flags.BoolP("verbose", "v", false, "debug logging on stderr")
	for _, name := range []string{"workspace", "json", "as", "config", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(dashboardCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create taskdash.yml and the database in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				fmt.Printf("Wrote %s\nDatabase ready at %s\n", path, db.Path(workspace))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				v, err := migrate.Version(ctx, ac.DB)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"schema_version": v})
				}
				fmt.Printf("Schema version %d\n", v)
				return nil
			})
		},
	}
}

// --- users ---

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userRoleCmd())
	cmd.AddCommand(apiKeyCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var opts engine.UserCreateOptions
	var role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a user (operator command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := domain.ParseRole(role)
			if err != nil {
				return err
			}
			opts.Role = r
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				u, err := ac.Engine.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleEmployee), "Employee, TeamLead, ProjectManager or Administrator")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Role
			if role != "" {
				parsed, err := domain.ParseRole(role)
				if err != nil {
					return err
				}
				r = parsed
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				users, err := ac.Engine.ListUsers(ctx, r)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only users with this role")
	return cmd
}

func userRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <user-id> <role>",
		Short: "Change a user's role (requires an Administrator in --as)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			role, err := domain.ParseRole(args[1])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				u, err := ac.Engine.UpdateUserRole(ctx, actor.ID, userID, role)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
}

func apiKeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Issue an API key; the key is shown once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				plain, key, err := ac.Engine.CreateAPIKey(ctx, userID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "user_id": key.UserID, "name": key.Name, "key": plain})
				}
				fmt.Printf("API key %s for user %d:\n%s\n", key.ID, key.UserID, plain)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				keys, err := ac.Engine.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable("ID", "Name", "Created")
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt.Format(time.RFC3339)})
				}
				tw.Render()
				return nil
			})
		},
	}
	revoke := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				if err := ac.Engine.RevokeAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
	cmd.AddCommand(create, list, revoke)
	return cmd
}

// --- projects ---

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(projectCreateCmd())
	cmd.AddCommand(projectListCmd())
	cmd.AddCommand(projectShowCmd())
	cmd.AddCommand(projectAddMemberCmd())
	cmd.AddCommand(projectRemoveMemberCmd())
	return cmd
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	var status, start, end string
	var manager int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project (ProjectManager)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := domain.ParseProjectStatus(status)
				if err != nil {
					return err
				}
				opts.Status = st
			}
			var err error
			if opts.StartDate, err = parseDate(start); err != nil {
				return err
			}
			if opts.TargetEndDate, err = parseDate(end); err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				if err := auth.ProjectManager.Require(actor.Role); err != nil {
					return err
				}
				opts.ManagerID = actor.ID
				if manager > 0 {
					opts.ManagerID = manager
				}
				p, err := ac.Engine.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printProjects([]domain.Project{p})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "project name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "Planning, Active, OnHold, Completed or Cancelled")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "target-end", "", "target end date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&manager, "manager", 0, "project manager user id (defaults to --as)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects the acting user manages or belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				items, err := ac.Engine.ListUserProjects(ctx, actor.ID)
				if err != nil {
					return err
				}
				return printProjects(items)
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project with its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				p, err := ac.Engine.GetProject(ctx, id, actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Project %d: %s (%s)\n", p.ID, p.Name, p.Status)
				if p.Description != "" {
					fmt.Println(p.Description)
				}
				fmt.Printf("Manager: %d\n", p.ProjectManagerID)
				tw := newTable("User", "Email", "Role")
				for _, m := range p.Members {
					email := ""
					if m.User != nil {
						email = m.User.Email
					}
					tw.AppendRow(table.Row{m.UserID, email, m.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectAddMemberCmd() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add-member <project-id> <user-id>",
		Short: "Add a member to a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, userID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				p, err := ac.Engine.AddProjectMember(ctx, projectID, actor.ID, userID, role)
				if err != nil {
					return err
				}
				return printProjects([]domain.Project{p})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "member role label")
	return cmd
}

func projectRemoveMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <project-id> <user-id>",
		Short: "Remove a member from a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, userID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				if err := ac.Engine.RemoveProjectMember(ctx, projectID, actor.ID, userID); err != nil {
					return err
				}
				fmt.Printf("removed user %d from project %d\n", userID, projectID)
				return nil
			})
		},
	}
}

// --- tasks ---

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Manage tasks"}
	cmd.AddCommand(taskCreateCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskGetCmd())
	cmd.AddCommand(taskStatusCmd())
	cmd.AddCommand(taskCommentCmd())
	cmd.AddCommand(taskCommentsCmd())
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var status, priority, due string
	var hours float64
	var projectID int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and assign a task (TeamLead)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				st, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				opts.Status = st
			}
			pr, err := domain.ParseTaskPriority(priority)
			if err != nil {
				return err
			}
			opts.Priority = pr
			if opts.DueDate, err = parseDate(due); err != nil {
				return err
			}
			if cmd.Flags().Changed("hours") {
				opts.EstimatedHours = &hours
			}
			if projectID > 0 {
				opts.ProjectID = &projectID
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				if err := auth.TeamLead.Require(actor.Role); err != nil {
					return err
				}
				opts.CreatedByID = actor.ID
				t, err := ac.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printTasks([]domain.Task{t}, ac.Engine)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "task title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().Int64Var(&opts.AssignedUserID, "assignee", 0, "assigned user id")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default NotStarted)")
	cmd.Flags().StringVar(&priority, "priority", "Medium", "Low, Medium, High or Critical")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&hours, "hours", 0, "estimated hours")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("assignee")
	return cmd
}

func taskListCmd() *cobra.Command {
	var status, priority string
	var projectID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks assigned to the acting user",
		RunE: func(cmd *cobra.Command, args []string) error {
			var q engine.TaskQuery
			if status != "" {
				st, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				q.Status = &st
			}
			if priority != "" {
				pr, err := domain.ParseTaskPriority(priority)
				if err != nil {
					return err
				}
				q.Priority = &pr
			}
			if projectID > 0 {
				q.ProjectID = &projectID
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				var (
					tasks []domain.Task
					err   error
				)
				if q.Status == nil && q.Priority == nil && q.ProjectID == nil {
					tasks, err = ac.Engine.GetUserTasks(ctx, actor.ID)
				} else {
					tasks, err = ac.Engine.GetFilteredTasks(ctx, actor.ID, q)
				}
				if err != nil {
					return err
				}
				return printTasks(tasks, ac.Engine)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&priority, "priority", "", "priority filter")
	cmd.Flags().Int64Var(&projectID, "project", 0, "project filter")
	return cmd
}

func taskGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Show a task with its project and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				agg, err := ac.Engine.GetTaskByID(ctx, id, actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(agg)
				}
				if err := printTasks([]domain.Task{agg.Task}, ac.Engine); err != nil {
					return err
				}
				if agg.Description != "" {
					fmt.Println(agg.Description)
				}
				if agg.Project != nil {
					fmt.Printf("Project: %s (%s)\n", agg.Project.Name, agg.Project.Status)
				}
				return printComments(agg.Comments)
			})
		},
	}
}

func taskStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			status, err := domain.ParseTaskStatus(args[1])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				ok, err := ac.Engine.UpdateTaskStatus(ctx, id, actor.ID, status)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d: %w", id, repo.ErrNotFound)
				}
				fmt.Printf("task %d is now %s\n", id, status)
				return nil
			})
		},
	}
}

func taskCommentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <task-id> <text>",
		Short: "Comment on a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				ok, err := ac.Engine.AddTaskComment(ctx, id, actor.ID, text)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("task %d: %w", id, repo.ErrNotFound)
				}
				fmt.Println("comment added")
				return nil
			})
		},
	}
}

func taskCommentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <task-id>",
		Short: "List a task's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				comments, err := ac.Engine.GetTaskComments(ctx, id, actor.ID)
				if err != nil {
					return err
				}
				return printComments(comments)
			})
		},
	}
}

// --- notifications ---

func notificationCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notification", Aliases: []string{"notifications"}, Short: "Read notifications"}
	var unread bool
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the acting user's notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				items, err := ac.Engine.ListNotifications(ctx, actor.ID, unread, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Type", "Priority", "Read", "Created")
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Title, n.Type, n.Priority, n.IsRead, n.CreatedAt.Format("2006-01-02 15:04")})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	read := &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				ok, err := ac.Engine.MarkNotificationRead(ctx, id, actor.ID)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("notification %d: %w", id, repo.ErrNotFound)
				}
				fmt.Println("marked read")
				return nil
			})
		},
	}

	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				n, err := ac.Engine.MarkAllNotificationsRead(ctx, actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]int{"count": n})
				}
				fmt.Printf("marked %d notifications read\n", n)
				return nil
			})
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete read notifications older than --older-than (operator command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, ac *app.Context) error {
				n, err := ac.Engine.PruneNotifications(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Printf("deleted %d notifications\n", n)
				return nil
			})
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "minimum age")

	cmd.AddCommand(list, read, readAll, prune)
	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the acting user's dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withActor(cmd.Context(), func(ctx context.Context, ac *app.Context, actor domain.User) error {
				s, err := ac.Engine.DashboardSummary(ctx, actor.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Tasks: %d (overdue %d)\n", s.TotalTasks, s.OverdueTasks)
				for _, st := range domain.TaskStatuses {
					fmt.Printf("  %s: %d\n", st, s.TasksByStatus[st])
				}
				fmt.Printf("Unread notifications: %d\nActive projects: %d\n", s.UnreadNotifications, s.ActiveProjects)
				if len(s.UpcomingTasks) > 0 {
					fmt.Println("Upcoming:")
					return printTasks(s.UpcomingTasks, ac.Engine)
				}
				return nil
			})
		},
	}
}

// --- helpers ---

func cliLogger() *slog.Logger {
	level := "warn"
	if viper.GetBool("verbose") {
		level = "debug"
	}
	logger, err := app.NewLogger(config.LogConfig{Level: level, Format: "text"}, os.Stderr)
	if err != nil {
		return slog.Default()
	}
	return logger
}

func withApp(ctx context.Context, fn func(context.Context, *app.Context) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := app.LoadConfig(workspace, viper.GetString("config"))
	if err != nil {
		return err
	}
	ac, err := app.Open(ctx, workspace, cfg, cliLogger())
	if err != nil {
		return err
	}
	defer ac.Close()
	return fn(ctx, ac)
}

func withActor(ctx context.Context, fn func(context.Context, *app.Context, domain.User) error) error {
	return withApp(ctx, func(ctx context.Context, ac *app.Context) error {
		actor, err := ac.ResolveActor(ctx, viper.GetString("as"))
		if err != nil {
			return err
		}
		return fn(ctx, ac, actor)
	})
}

func describeError(err error) string {
	var fe auth.ForbiddenError
	var ve engine.ValidationError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return err.Error() + " (missing or not visible to the acting user)"
	case errors.As(err, &fe):
		return fmt.Sprintf("forbidden: the %s policy is required", fe.Policy)
	case errors.As(err, &ve):
		return "invalid input: " + ve.Error()
	}
	return err.Error()
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printTasks(tasks []domain.Task, e engine.Engine) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	now := time.Now().UTC()
	if e.Now != nil {
		now = e.Now().UTC()
	}
	tw := newTable("ID", "Title", "Status", "Priority", "Due", "Assignee", "Project")
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
			if t.Overdue(now) {
				due += " (overdue)"
			}
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, due, t.AssignedUserID, t.ProjectName})
	}
	tw.Render()
	return nil
}

func printComments(comments []domain.TaskComment) error {
	if viper.GetBool("json") {
		return printJSON(comments)
	}
	tw := newTable("ID", "Author", "When", "Text")
	for _, c := range comments {
		author := strconv.FormatInt(c.UserID, 10)
		if c.Author != nil {
			author = c.Author.DisplayName
		}
		tw.AppendRow(table.Row{c.ID, author, c.CreatedAt.Format("2006-01-02 15:04"), c.Text})
	}
	tw.Render()
	return nil
}

func printUsers(users []domain.User) error {
	if viper.GetBool("json") {
		return printJSON(users)
	}
	tw := newTable("ID", "Email", "Name", "Role", "Department")
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Email, u.DisplayName, u.Role, u.Department})
	}
	tw.Render()
	return nil
}

func printProjects(projects []domain.Project) error {
	if viper.GetBool("json") {
		return printJSON(projects)
	}
	tw := newTable("ID", "Name", "Status", "Manager", "Members")
	for _, p := range projects {
		tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.ProjectManagerID, len(p.Members)})
	}
	tw.Render()
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDPair(args []string) (int64, int64, error) {
	a, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func parseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return &t, nil
}
