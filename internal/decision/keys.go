package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/crewline/foreman/internal/model"
)

// fingerprint produces a short stable digest of the canonical JSON form.
func fingerprint(v interface{}) string {
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// prioritizeKey derives the cache key for a prioritization request. Task
// order does not matter, the same set under the same site conditions maps
// to the same key.
func prioritizeKey(tasks []model.Task, wctx model.WorkerContext) string {
	return "prioritize:" + taskSetFingerprint(tasks, wctx)
}

// nextKey derives the cache key for a next-task recommendation.
func nextKey(tasks []model.Task, wctx model.WorkerContext) string {
	return "next:" + taskSetFingerprint(tasks, wctx)
}

// predictKey derives the cache key for a lifecycle prediction.
func predictKey(task model.Task) string {
	return "predict:" + task.ID
}

// conflictKey derives the cache key for a conflict resolution. The patch
// pair is part of the key so different edit pairs for the same task never
// collide.
func conflictKey(taskID string, local, remote model.TaskPatch) string {
	pair := struct {
		Local  model.TaskPatch `json:"local"`
		Remote model.TaskPatch `json:"remote"`
	}{Local: local, Remote: remote}
	return "conflict:" + taskID + ":" + fingerprint(pair)
}

func taskSetFingerprint(tasks []model.Task, wctx model.WorkerContext) string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)

	payload := struct {
		TaskIDs []string            `json:"task_ids"`
		Context model.WorkerContext `json:"context"`
	}{TaskIDs: ids, Context: wctx}
	return fingerprint(payload)
}
