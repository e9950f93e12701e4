package emby

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/nexusnav/nexusnav/internal/card"
	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/stats"
)

// Tasks lists the server's scheduled tasks sorted by module, then name.
func (p *Provider) Tasks(ctx context.Context, c card.Card) ([]stats.EmbyTask, error) {
	cn, err := resolve(c)
	if err != nil {
		return nil, err
	}
	payload, err := p.getJSON(ctx, cn, "/ScheduledTasks", nil)
	if err != nil {
		return nil, err
	}

	raw := stats.AsList(payload)
	if raw == nil {
		raw = stats.AsList(stats.AsRecord(payload)["Items"])
	}

	tasks := make([]stats.EmbyTask, 0, len(raw))
	for _, item := range raw {
		if t, ok := mapTask(stats.AsRecord(item)); ok {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		mi, mj := strings.ToLower(tasks[i].Module), strings.ToLower(tasks[j].Module)
		if mi != mj {
			// Tasks without a module sort last.
			if mi == "" || mj == "" {
				return mj == ""
			}
			return mi < mj
		}
		return strings.ToLower(tasks[i].Name) < strings.ToLower(tasks[j].Name)
	})
	return tasks, nil
}

// RunTask starts a scheduled task. Emby answers 204 with no body.
func (p *Provider) RunTask(ctx context.Context, c card.Card, taskID, taskName string) (stats.EmbyTaskRunResult, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return stats.EmbyTaskRunResult{}, errors.New(errors.ErrValidation, "taskId is required", "")
	}
	cn, err := resolve(c)
	if err != nil {
		return stats.EmbyTaskRunResult{}, err
	}
	if _, err := p.doJSON(ctx, http.MethodPost, cn, "/ScheduledTasks/Running/"+url.PathEscape(taskID), nil); err != nil {
		return stats.EmbyTaskRunResult{}, err
	}
	return stats.EmbyTaskRunResult{
		TaskID:    taskID,
		TaskName:  taskName,
		Triggered: true,
		Status:    "running",
		Message:   "Task triggered",
	}, nil
}

func mapTask(task map[string]interface{}) (stats.EmbyTask, bool) {
	if task == nil {
		return stats.EmbyTask{}, false
	}
	id := stats.FirstString(task, "Id", "id")
	if id == "" {
		return stats.EmbyTask{}, false
	}

	name := stats.FirstString(task, "Name", "name")
	if name == "" {
		name = id
	}
	state := stats.FirstString(task, "State", "state")
	if state == "" {
		state = "Unknown"
	}
	lower := strings.ToLower(state)

	return stats.EmbyTask{
		ID:          id,
		Name:        name,
		Description: stats.FirstString(task, "Description", "description"),
		Module:      stats.FirstString(task, "Category", "category", "Module"),
		State:       state,
		IsRunning:   stats.AsBool(task["IsRunning"]) || lower == "running" || lower == "cancelling",
		LastRunAt:   lastRunAt(task),
		LastResult:  lastResult(task),
	}, true
}

func lastResult(task map[string]interface{}) string {
	if s := stats.FirstString(task, "LastExecutionResult", "LastResult", "Result"); s != "" {
		return s
	}
	exec := stats.AsRecord(task["LastExecutionResult"])
	if exec == nil {
		return ""
	}
	status := stats.FirstString(exec, "Status", "State")
	message := stats.FirstString(exec, "Message", "ErrorMessage", "Details")
	if status != "" && message != "" {
		return status + ": " + message
	}
	if status != "" {
		return status
	}
	return message
}

func lastRunAt(task map[string]interface{}) string {
	if s := stats.FirstString(task, "LastExecutionTimeUtc", "LastExecutionDate", "LastRunTime"); s != "" {
		return s
	}
	exec := stats.AsRecord(task["LastExecutionResult"])
	if exec == nil {
		return ""
	}
	return stats.FirstString(exec, "StartTimeUtc", "StartDate", "Date", "EndTimeUtc", "EndDate")
}
