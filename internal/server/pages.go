package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/repo"
	"taskdash/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageNames = []string{"login.html", "dashboard.html", "tasks.html", "task.html", "notifications.html", "error.html"}

type pages struct {
	handlers
	templates map[string]*template.Template
}

// pageData is passed to every template.
type pageData struct {
	Title  string
	User   *domain.User
	Unread int
	Now    time.Time
	Error  string
	Data   any
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"date": func(t *time.Time) string {
			if t == nil {
				return "-"
			}
			return t.Format("2006-01-02")
		},
		"datetime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"overdue": func(t domain.Task, now time.Time) bool {
			return t.Overdue(now)
		},
		"statuses":   func() []domain.TaskStatus { return domain.TaskStatuses },
		"priorities": func() []domain.TaskPriority { return domain.TaskPriorities },
	}
}

func newPages(e engine.Engine, cfg AuthConfig, logger *slog.Logger) (*pages, error) {
	p := &pages{
		handlers:  handlers{engine: e, auth: cfg, logger: logger},
		templates: make(map[string]*template.Template, len(pageNames)),
	}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs()).ParseFS(templatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		p.templates[name] = t
	}
	return p, nil
}

func (p *pages) register(r chi.Router) {
	r.Get("/login", p.loginForm)
	r.Post("/login", p.loginSubmit)
	r.Post("/logout", p.logoutSubmit)
	r.Get("/", p.dashboard)
	r.Get("/tasks", p.taskList)
	r.Get("/tasks/{id}", p.taskDetail)
	r.Post("/tasks/{id}/status", p.taskStatus)
	r.Post("/tasks/{id}/comments", p.taskComment)
	r.Get("/notifications", p.notificationList)
	r.Post("/notifications/read-all", p.notificationsReadAll)
	r.Post("/notifications/{id}/read", p.notificationRead)
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if principal, ok := principalFromContext(r.Context()); ok {
		u := principal.User
		data.User = &u
		if n, err := p.engine.UnreadCount(r.Context(), u.ID); err == nil {
			data.Unread = n
		}
	}
	data.Now = p.now()
	var buf bytes.Buffer
	if err := p.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		p.logger.ErrorContext(r.Context(), "render template failed", "template", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		p.render(w, r, http.StatusNotFound, "error.html", pageData{Title: "Not found", Error: "The page you asked for does not exist."})
		return
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		p.render(w, r, http.StatusBadRequest, "error.html", pageData{Title: "Invalid input", Error: ve.Error()})
		return
	}
	p.logger.ErrorContext(r.Context(), "page failed", "path", r.URL.Path, "error", err)
	p.render(w, r, http.StatusInternalServerError, "error.html", pageData{Title: "Error", Error: "Something went wrong."})
}

func principalID(r *http.Request) int64 {
	principal, _ := principalFromContext(r.Context())
	return principal.User.ID
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, repo.ErrNotFound
	}
	return id, nil
}

func (p *pages) loginForm(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, http.StatusOK, "login.html", pageData{Title: "Sign in"})
}

func (p *pages) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		p.render(w, r, http.StatusBadRequest, "login.html", pageData{Title: "Sign in", Error: "Invalid form."})
		return
	}
	_, token, expires, err := p.login(r.Context(), r.PostForm.Get("email"))
	if errors.Is(err, repo.ErrNotFound) {
		p.render(w, r, http.StatusUnauthorized, "login.html", pageData{Title: "Sign in", Error: "Unknown email address."})
		return
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	session.SetCookie(w, token, expires, p.auth.SecureCookies)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (p *pages) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFromContext(r.Context())
	if err := p.logout(r.Context(), principal); err != nil {
		p.fail(w, r, err)
		return
	}
	session.ClearCookie(w, p.auth.SecureCookies)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (p *pages) dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := p.engine.DashboardSummary(r.Context(), principalID(r))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "dashboard.html", pageData{Title: "Dashboard", Data: s})
}

type taskListView struct {
	Tasks     []domain.Task
	Status    string
	Priority  string
	ProjectID int64
	Projects  []domain.Project
}

func (p *pages) taskList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := principalID(r)
	view := taskListView{
		Status:   r.URL.Query().Get("status"),
		Priority: r.URL.Query().Get("priority"),
	}
	var q engine.TaskQuery
	if view.Status != "" {
		st, err := domain.ParseTaskStatus(view.Status)
		if err != nil {
			p.fail(w, r, engine.ValidationError{Field: "status", Message: err.Error()})
			return
		}
		q.Status = &st
	}
	if view.Priority != "" {
		pr, err := domain.ParseTaskPriority(view.Priority)
		if err != nil {
			p.fail(w, r, engine.ValidationError{Field: "priority", Message: err.Error()})
			return
		}
		q.Priority = &pr
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			p.fail(w, r, engine.ValidationError{Field: "project_id", Message: "must be a number"})
			return
		}
		view.ProjectID = id
		q.ProjectID = &id
	}
	tasks, err := p.engine.GetFilteredTasks(ctx, userID, q)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	projects, err := p.engine.ListUserProjects(ctx, userID)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	view.Tasks = tasks
	view.Projects = projects
	p.render(w, r, http.StatusOK, "tasks.html", pageData{Title: "My tasks", Data: view})
}

func (p *pages) taskDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	agg, err := p.engine.GetTaskByID(r.Context(), id, principalID(r))
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "task.html", pageData{Title: agg.Title, Data: agg})
}

func (p *pages) taskStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		p.fail(w, r, engine.ValidationError{Message: "invalid form"})
		return
	}
	status, err := domain.ParseTaskStatus(r.PostForm.Get("status"))
	if err != nil {
		p.fail(w, r, engine.ValidationError{Field: "status", Message: err.Error()})
		return
	}
	ok, err := p.engine.UpdateTaskStatus(r.Context(), id, principalID(r), status)
	if err == nil && !ok {
		err = repo.ErrNotFound
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/tasks/%d", id), http.StatusSeeOther)
}

func (p *pages) taskComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		p.fail(w, r, engine.ValidationError{Message: "invalid form"})
		return
	}
	ok, err := p.engine.AddTaskComment(r.Context(), id, principalID(r), r.PostForm.Get("text"))
	if err == nil && !ok {
		err = repo.ErrNotFound
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/tasks/%d", id), http.StatusSeeOther)
}

func (p *pages) notificationList(w http.ResponseWriter, r *http.Request) {
	items, err := p.engine.ListNotifications(r.Context(), principalID(r), r.URL.Query().Get("unread") == "1", 0)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	p.render(w, r, http.StatusOK, "notifications.html", pageData{Title: "Notifications", Data: items})
}

func (p *pages) notificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		p.fail(w, r, err)
		return
	}
	ok, err := p.engine.MarkNotificationRead(r.Context(), id, principalID(r))
	if err == nil && !ok {
		err = repo.ErrNotFound
	}
	if err != nil {
		p.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}

func (p *pages) notificationsReadAll(w http.ResponseWriter, r *http.Request) {
	if _, err := p.engine.MarkAllNotificationsRead(r.Context(), principalID(r)); err != nil {
		p.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}
