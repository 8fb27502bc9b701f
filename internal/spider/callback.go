package spider

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/metrics"
	"github.com/yaccii-voc/kbcore/internal/model"
)

// TokenHash returns the stored SHA-256 hex digest of a one-time callback
// token. Only the hash is ever persisted; the plaintext token is handed to
// the spider once, at enqueue time.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// JobStore is the subset of store.JobStore the callback receiver needs.
type JobStore interface {
	GetSpiderTaskByTaskID(ctx context.Context, taskID string) (*model.SpiderTask, error)
	UpdateSpiderTaskStatus(ctx context.Context, taskID string, status model.SpiderTaskStatus, runID *int64, lastError string) (*model.SpiderTask, error)
	GetVocJob(ctx context.Context, jobID int64) (*model.VocJob, error)
	UpdateVocJobParams(ctx context.Context, jobID int64, params map[string]interface{}) error
	UpdateVocJobStatus(ctx context.Context, jobID int64, status model.VocJobStatus, stage, errorCode, errorMessage, failedStage string) error
}

// CallbackReceiver implements the HTTP handler the spider calls back into
// at /voc/spider/callback/{job_id} (and the legacy path without a job_id
// segment). It is idempotent: a status already applied to a SpiderTask is
// accepted silently.
type CallbackReceiver struct {
	Store JobStore
}

type callbackBody struct {
	Status       string `json:"status"`
	TaskID       string `json:"task_id"`
	RunID        *int64 `json:"run_id,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ServeHTTP dispatches POST /voc/spider/callback/{job_id}?token=... and the
// legacy POST /voc/spider/callback?token=... form. In both, task_id is read
// from the JSON body; on the legacy form job_id is then recovered from the
// SpiderTask row.
func (h *CallbackReceiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body callbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	jobID, jobIDInPath := jobIDFromPath(r.URL.Path)
	ctx := r.Context()

	task, err := h.Store.GetSpiderTaskByTaskID(ctx, body.TaskID)
	if err != nil {
		klog.ErrorS(err, "spider callback: task lookup failed", "taskID", body.TaskID)
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}
	if jobIDInPath && task.JobID != jobID {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	if !validToken(task.CallbackTokenHash, r.URL.Query().Get("token")) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	outcome, err := h.apply(ctx, task, body)
	if err != nil {
		klog.ErrorS(err, "spider callback: apply failed", "taskID", body.TaskID, "jobID", task.JobID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	metrics.SpiderCallbacksTotal.WithLabelValues(outcome).Inc()
	w.WriteHeader(http.StatusOK)
}

func jobIDFromPath(path string) (int64, bool) {
	const prefix = "/voc/spider/callback/"
	if !strings.HasPrefix(path, prefix) {
		return 0, false
	}
	seg := strings.TrimPrefix(path, prefix)
	seg = strings.TrimSuffix(seg, "/")
	if seg == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func validToken(storedHash, candidate string) bool {
	if candidate == "" {
		return false
	}
	got := TokenHash(candidate)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(got)) == 1
}

// apply applies one callback delivery to the SpiderTask and, where the
// delivery completes the crawl plan, to the owning VocJob. It returns an
// outcome label for metrics and is itself idempotent — the SpiderTask's
// status is simply overwritten with the same value on a repeat delivery.
func (h *CallbackReceiver) apply(ctx context.Context, task *model.SpiderTask, body callbackBody) (string, error) {
	job, err := h.Store.GetVocJob(ctx, task.JobID)
	if err != nil {
		return "", err
	}
	if job.Status != model.VocCrawling {
		// Already past CRAWLING: accept silently, no state change.
		return "late", nil
	}

	switch body.Status {
	case "RUNNING":
		if _, err := h.Store.UpdateSpiderTaskStatus(ctx, body.TaskID, model.SpiderRunning, body.RunID, ""); err != nil {
			return "", err
		}
		return "running", nil

	case "READY":
		if body.RunID == nil || *body.RunID <= 0 {
			return "", errors.New("spider: READY callback missing run_id")
		}
		if _, err := h.Store.UpdateSpiderTaskStatus(ctx, body.TaskID, model.SpiderReady, body.RunID, ""); err != nil {
			return "", err
		}
		if err := h.drainPending(ctx, job, task.TaskID); err != nil {
			return "", err
		}
		return "ready", nil

	case "FAILED":
		if _, err := h.Store.UpdateSpiderTaskStatus(ctx, body.TaskID, model.SpiderFailed, body.RunID, body.ErrorMessage); err != nil {
			return "", err
		}
		if err := h.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocFailed, model.VocCrawling.String(), body.ErrorCode, body.ErrorMessage, "CRAWLING"); err != nil {
			return "", err
		}
		return "failed", nil

	default:
		return "", errors.New("spider: unknown callback status " + body.Status)
	}
}

// drainPending removes taskID from job.params.pending_crawl and, once it is
// empty, transitions the job to EXTRACTING.
func (h *CallbackReceiver) drainPending(ctx context.Context, job *model.VocJob, taskID string) error {
	pending, _ := job.Params["pending_crawl"].([]interface{})
	remaining := make([]interface{}, 0, len(pending))
	for _, p := range pending {
		if s, ok := p.(string); ok && s == taskID {
			continue
		}
		remaining = append(remaining, p)
	}
	job.Params["pending_crawl"] = remaining
	if err := h.Store.UpdateVocJobParams(ctx, job.JobID, job.Params); err != nil {
		return err
	}
	if len(remaining) == 0 {
		return h.Store.UpdateVocJobStatus(ctx, job.JobID, model.VocExtracting, "EXTRACTING", "", "", "")
	}
	return nil
}
