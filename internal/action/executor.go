// Package action turns write-intent chat queries into CRUD calls on the
// entity services, extracting parameters with the fast model.
package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/entity"
	"github.com/taskorbit/taskchat/internal/intent"
	"github.com/taskorbit/taskchat/internal/llm"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

const (
	contextPerKind       = 5
	extractionTemp       = 0.1
	extractionMaxTokens  = 300
	extractHistoryTurns  = 3
	renderedDocTextLimit = 160
)

// Searcher is the retrieval surface needed for reference context.
type Searcher interface {
	VectorSearch(ctx context.Context, query string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error)
}

// EntityResolver maps names or ids from extracted arguments to database ids.
type EntityResolver interface {
	ResolveByType(ctx context.Context, nameOrID string, kind domain.EntityKind) (string, bool)
}

// ErrorRenderer phrases internal failures for the end user.
type ErrorRenderer interface {
	FriendlyError(ctx context.Context, query string, cause error) string
}

type TaskWriter interface {
	Create(ctx context.Context, in entity.CreateTaskInput) (*domain.Task, error)
	Update(ctx context.Context, id string, in entity.UpdateTaskInput) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
}

type UserWriter interface {
	Create(ctx context.Context, in entity.CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, id string, in entity.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type TeamWriter interface {
	Create(ctx context.Context, in entity.CreateTeamInput) (*domain.Team, error)
	Update(ctx context.Context, id string, in entity.UpdateTeamInput) (*domain.Team, error)
	Delete(ctx context.Context, id string) error
}

type ProjectWriter interface {
	Create(ctx context.Context, in entity.CreateProjectInput) (*domain.Project, error)
	Update(ctx context.Context, id string, in entity.UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

// FunctionCall is the parsed extraction result.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Result is the outcome of one executed action. Failures are reported as
// user-facing answers, not errors; the HTTP layer always answers 200.
type Result struct {
	Answer        string
	Sources       []domain.RetrievedDoc
	FunctionCalls []FunctionCall
}

// Executor extracts parameters and dispatches CRUD to the entity services.
// The services reindex after every committed write, which keeps the vector
// store in step with the database.
type Executor struct {
	searcher  Searcher
	resolver  EntityResolver
	renderer  ErrorRenderer
	llm       llm.Client
	fastModel string

	tasks    TaskWriter
	users    UserWriter
	teams    TeamWriter
	projects ProjectWriter
}

func NewExecutor(
	searcher Searcher,
	resolver EntityResolver,
	renderer ErrorRenderer,
	client llm.Client,
	fastModel string,
	tasks TaskWriter,
	users UserWriter,
	teams TeamWriter,
	projects ProjectWriter,
) *Executor {
	return &Executor{
		searcher:  searcher,
		resolver:  resolver,
		renderer:  renderer,
		llm:       client,
		fastModel: fastModel,
		tasks:     tasks,
		users:     users,
		teams:     teams,
		projects:  projects,
	}
}

type functionSpec struct {
	required []string
	optional []string
}

var functions = map[string]functionSpec{
	"create_task":    {required: []string{"title"}, optional: []string{"description", "assignedTo", "status", "deadline"}},
	"update_task":    {required: []string{"taskId"}, optional: []string{"title", "description", "status", "assignedTo", "deadline"}},
	"delete_task":    {required: []string{"taskId"}},
	"create_user":    {required: []string{"name", "email", "password"}, optional: []string{"role", "teamId"}},
	"update_user":    {required: []string{"userId"}, optional: []string{"name", "email", "password", "role", "teamId"}},
	"delete_user":    {required: []string{"userId"}},
	"create_team":    {required: []string{"name", "projectId", "ownerId"}},
	"update_team":    {required: []string{"teamId"}, optional: []string{"name", "projectId", "ownerId"}},
	"delete_team":    {required: []string{"teamId"}},
	"create_project": {required: []string{"name"}, optional: []string{"description"}},
	"update_project": {required: []string{"projectId"}, optional: []string{"name", "description"}},
	"delete_project": {required: []string{"projectId"}},
}

var paramDocs = map[string]string{
	"title":       "task title",
	"description": "free text description",
	"assignedTo":  "user the task is assigned to, by name or id",
	"status":      "one of todo, in_progress, done",
	"deadline":    "due date in ISO 8601 form",
	"taskId":      "the task to act on, by title or id",
	"name":        "the entity name",
	"email":       "user email address",
	"password":    "initial password",
	"role":        "admin or member",
	"teamId":      "the team, by name or id",
	"userId":      "the user to act on, by name or id",
	"projectId":   "the project, by name or id",
	"ownerId":     "the team owner, by user name or id",
}

// idParams maps ID-bearing arguments to the kind the resolver should use.
var idParams = map[string]domain.EntityKind{
	"taskId":     domain.KindTask,
	"userId":     domain.KindUser,
	"assignedTo": domain.KindUser,
	"teamId":     domain.KindTeam,
	"ownerId":    domain.KindUser,
	"projectId":  domain.KindProject,
}

// intentEntity fixes the single entity an intent acts on.
var intentEntity = map[string]string{
	"task_management":    "task",
	"user_management":    "user",
	"team_management":    "team",
	"project_management": "project",
	"task_info":          "task",
	"user_info":          "user",
	"team_info":          "team",
	"project_info":       "project",
}

func entityForIntent(queryIntent string) string {
	if e, ok := intentEntity[queryIntent]; ok {
		return e
	}
	return "task"
}

var kindLabels = map[domain.EntityKind]string{
	domain.KindTask:    "task",
	domain.KindUser:    "user",
	domain.KindTeam:    "team",
	domain.KindProject: "project",
}

// Execute runs the full action flow for a classified write query. All
// failure modes produce a user-facing Answer; the error return is reserved
// for context cancellation.
func (e *Executor) Execute(
	ctx context.Context,
	query string,
	cls intent.Classification,
	queryIntent string,
	history []domain.Turn,
	docs []domain.RetrievedDoc,
) (*Result, error) {
	base := entityForIntent(queryIntent)

	if len(docs) == 0 {
		docs = e.retrieveContext(ctx, query, cls.Type, base)
	}

	fnName := cls.Type + "_" + base
	spec, ok := functions[fnName]
	if !ok {
		return &Result{
			Answer:  fmt.Sprintf("I don't know how to %s a %s.", cls.Type, base),
			Sources: docs,
		}, nil
	}

	call, err := e.extract(ctx, query, fnName, spec, history, docs)
	if err != nil {
		log.Printf("action: extraction failed for %s: %v", fnName, err)
		return &Result{
			Answer:  e.renderer.FriendlyError(ctx, query, err),
			Sources: docs,
		}, nil
	}
	result := &Result{Sources: docs, FunctionCalls: []FunctionCall{*call}}

	if missing := missingRequired(spec, call.Arguments); len(missing) != 0 {
		result.Answer = fmt.Sprintf("I'm missing required information: %s. %s",
			strings.Join(missing, ", "), extractedSoFar(call.Arguments))
		return result, nil
	}

	if errAnswer := e.resolveIDs(ctx, call); errAnswer != "" {
		result.Answer = errAnswer
		return result, nil
	}

	answer, err := e.dispatch(ctx, fnName, call.Arguments)
	if err != nil {
		result.Answer = e.renderer.FriendlyError(ctx, query, err) + " " + extractedSoFar(call.Arguments)
		return result, nil
	}
	result.Answer = answer
	return result, nil
}

// retrieveContext gathers per-kind reference documents. Create and update
// also pull user documents so assignee and owner mentions resolve.
func (e *Executor) retrieveContext(ctx context.Context, query, queryType, base string) []domain.RetrievedDoc {
	kinds := []string{base}
	if (queryType == intent.TypeCreate || queryType == intent.TypeUpdate) && base != "user" {
		kinds = append(kinds, "user")
	}

	perKind := make([][]domain.RetrievedDoc, len(kinds))
	var wg sync.WaitGroup
	for i, kind := range kinds {
		wg.Add(1)
		go func(i int, kind string) {
			defer wg.Done()
			filter := &vectorstore.Filter{
				Must: []vectorstore.Condition{{Field: "entity_type", Value: kind}},
			}
			docs, err := e.searcher.VectorSearch(ctx, query, filter)
			if err != nil {
				log.Printf("action: context retrieval for %s failed: %v", kind, err)
				return
			}
			if len(docs) > contextPerKind {
				docs = docs[:contextPerKind]
			}
			perKind[i] = docs
		}(i, kind)
	}
	wg.Wait()

	var out []domain.RetrievedDoc
	for _, docs := range perKind {
		out = append(out, docs...)
	}
	return out
}

var docNameRes = map[string]*regexp.Regexp{
	"task":    regexp.MustCompile(`^Task "([^"]+)"`),
	"user":    regexp.MustCompile(`^User (.+?) \(`),
	"team":    regexp.MustCompile(`^Team ([^.]+)\.`),
	"project": regexp.MustCompile(`^Project ([^.]+)\.`),
}

func docName(doc domain.RetrievedDoc) string {
	re, ok := docNameRes[doc.EntityType]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(doc.Text); m != nil {
		return m[1]
	}
	return ""
}

func renderDocs(docs []domain.RetrievedDoc) string {
	var sb strings.Builder
	for _, d := range docs {
		text := d.Text
		if len(text) > renderedDocTextLimit {
			text = text[:renderedDocTextLimit]
		}
		fmt.Fprintf(&sb, "- %s: id=%s", d.EntityType, d.EntityID)
		if name := docName(d); name != "" {
			fmt.Fprintf(&sb, ", name=%q", name)
		}
		fmt.Fprintf(&sb, ", info: %s\n", text)
	}
	return sb.String()
}

func renderSignature(fnName string, spec functionSpec) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Function: %s\nParameters:\n", fnName)
	for _, p := range spec.required {
		fmt.Fprintf(&sb, "- %s (required): %s\n", p, paramDocs[p])
	}
	for _, p := range spec.optional {
		fmt.Fprintf(&sb, "- %s (optional): %s\n", p, paramDocs[p])
	}
	return sb.String()
}

// extract calls the fast model to pull arguments out of the query.
func (e *Executor) extract(
	ctx context.Context,
	query, fnName string,
	spec functionSpec,
	history []domain.Turn,
	docs []domain.RetrievedDoc,
) (*FunctionCall, error) {
	var sb strings.Builder
	sb.WriteString("Extract the arguments for this function call from the user's request.\n\n")
	sb.WriteString(renderSignature(fnName, spec))
	if len(docs) > 0 {
		sb.WriteString("\nKnown entities:\n")
		sb.WriteString(renderDocs(docs))
	}
	if len(history) > extractHistoryTurns {
		history = history[len(history)-extractHistoryTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
		}
	}
	sb.WriteString("\nRequest: " + query)
	sb.WriteString("\n\nReturn JSON only: {\"name\": \"" + fnName + "\", \"arguments\": {...}}. Omit arguments that are not mentioned.\nJSON:")

	out, err := e.llm.Complete(ctx, sb.String(), llm.Options{
		Model:       e.fastModel,
		Temperature: extractionTemp,
		MaxTokens:   extractionMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	raw := intent.ExtractJSON(out)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in extraction output")
	}
	var call FunctionCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil {
		return nil, fmt.Errorf("parse extraction output: %w", err)
	}
	if call.Name != fnName {
		log.Printf("action: extraction named %q, using %q", call.Name, fnName)
	}
	call.Name = fnName
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return &call, nil
}

func missingRequired(spec functionSpec, args map[string]any) []string {
	var missing []string
	for _, p := range spec.required {
		if _, ok := strArg(args, p); !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// resolveIDs replaces every ID-bearing argument with a database id.
// A value that resolves to nothing aborts the action with a message
// naming the entity.
func (e *Executor) resolveIDs(ctx context.Context, call *FunctionCall) string {
	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		if _, ok := idParams[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value, ok := strArg(call.Arguments, key)
		if !ok {
			continue
		}
		kind := idParams[key]
		id, resolved := e.resolver.ResolveByType(ctx, value, kind)
		if !resolved {
			return fmt.Sprintf("I couldn't find a %s matching %q. %s",
				kindLabels[kind], value, extractedSoFar(call.Arguments))
		}
		call.Arguments[key] = id
	}
	return ""
}

// extractedSoFar echoes accumulated arguments so a follow-up turn can
// carry the flow forward.
func extractedSoFar(args map[string]any) string {
	if len(args) == 0 {
		return "[Extracted so far: none]"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, fmt.Sprint(args[k])))
	}
	return "[Extracted so far: " + strings.Join(parts, ", ") + "]"
}

func strArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return "", false
	}
	return s, true
}

func strPtrArg(args map[string]any, key string) *string {
	if s, ok := strArg(args, key); ok {
		return &s
	}
	return nil
}

// statusArg normalises an extracted status. Values the model invents are
// dropped so the service default applies instead of failing the action.
func statusArg(args map[string]any) *string {
	raw, ok := strArg(args, "status")
	if !ok {
		return nil
	}
	status, ok := domain.NormalizeTaskStatus(raw)
	if !ok {
		log.Printf("action: dropping unrecognised status %q", raw)
		return nil
	}
	s := string(status)
	return &s
}

func deadlineArg(args map[string]any) (*time.Time, error) {
	raw, ok := strArg(args, "deadline")
	if !ok {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparseable deadline %q", raw)
}

func (e *Executor) dispatch(ctx context.Context, fnName string, args map[string]any) (string, error) {
	switch fnName {
	case "create_task":
		deadline, err := deadlineArg(args)
		if err != nil {
			return "", err
		}
		var status string
		if s := statusArg(args); s != nil {
			status = *s
		}
		task, err := e.tasks.Create(ctx, entity.CreateTaskInput{
			Title:       mustStrArg(args, "title"),
			Description: strPtrArg(args, "description"),
			Status:      status,
			AssignedTo:  strPtrArg(args, "assignedTo"),
			Deadline:    deadline,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Task %q has been created.", task.Title), nil

	case "update_task":
		deadline, err := deadlineArg(args)
		if err != nil {
			return "", err
		}
		task, err := e.tasks.Update(ctx, mustStrArg(args, "taskId"), entity.UpdateTaskInput{
			Title:       strPtrArg(args, "title"),
			Description: strPtrArg(args, "description"),
			Status:      statusArg(args),
			AssignedTo:  strPtrArg(args, "assignedTo"),
			Deadline:    deadline,
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Task %q has been updated.", task.Title), nil

	case "delete_task":
		if err := e.tasks.Delete(ctx, mustStrArg(args, "taskId")); err != nil {
			return "", err
		}
		return "The task has been deleted.", nil

	case "create_user":
		role, _ := strArg(args, "role")
		user, err := e.users.Create(ctx, entity.CreateUserInput{
			Name:     mustStrArg(args, "name"),
			Email:    mustStrArg(args, "email"),
			Password: mustStrArg(args, "password"),
			Role:     role,
			TeamID:   strPtrArg(args, "teamId"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("User %s has been created.", user.Name), nil

	case "update_user":
		user, err := e.users.Update(ctx, mustStrArg(args, "userId"), entity.UpdateUserInput{
			Name:     strPtrArg(args, "name"),
			Email:    strPtrArg(args, "email"),
			Password: strPtrArg(args, "password"),
			Role:     strPtrArg(args, "role"),
			TeamID:   strPtrArg(args, "teamId"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("User %s has been updated.", user.Name), nil

	case "delete_user":
		if err := e.users.Delete(ctx, mustStrArg(args, "userId")); err != nil {
			return "", err
		}
		return "The user has been deleted.", nil

	case "create_team":
		team, err := e.teams.Create(ctx, entity.CreateTeamInput{
			Name:      mustStrArg(args, "name"),
			OwnerID:   mustStrArg(args, "ownerId"),
			ProjectID: strPtrArg(args, "projectId"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Team %s has been created.", team.Name), nil

	case "update_team":
		team, err := e.teams.Update(ctx, mustStrArg(args, "teamId"), entity.UpdateTeamInput{
			Name:      strPtrArg(args, "name"),
			OwnerID:   strPtrArg(args, "ownerId"),
			ProjectID: strPtrArg(args, "projectId"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Team %s has been updated.", team.Name), nil

	case "delete_team":
		if err := e.teams.Delete(ctx, mustStrArg(args, "teamId")); err != nil {
			return "", err
		}
		return "The team has been deleted.", nil

	case "create_project":
		project, err := e.projects.Create(ctx, entity.CreateProjectInput{
			Name:        mustStrArg(args, "name"),
			Description: strPtrArg(args, "description"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Project %s has been created.", project.Name), nil

	case "update_project":
		project, err := e.projects.Update(ctx, mustStrArg(args, "projectId"), entity.UpdateProjectInput{
			Name:        strPtrArg(args, "name"),
			Description: strPtrArg(args, "description"),
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Project %s has been updated.", project.Name), nil

	case "delete_project":
		if err := e.projects.Delete(ctx, mustStrArg(args, "projectId")); err != nil {
			return "", err
		}
		return "The project has been deleted.", nil
	}
	return "", fmt.Errorf("unrecognised function %q", fnName)
}

// mustStrArg reads a required argument already checked by missingRequired.
func mustStrArg(args map[string]any, key string) string {
	s, _ := strArg(args, key)
	return s
}
