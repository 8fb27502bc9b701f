package spider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaccii-voc/kbcore/internal/model"
)

type fakeStore struct {
	tasks          map[string]*model.SpiderTask
	jobs           map[int64]*model.VocJob
	lastParams     map[string]interface{}
	lastTaskStatus model.SpiderTaskStatus
	lastJobStatus  model.VocJobStatus
}

func (f *fakeStore) GetSpiderTaskByTaskID(ctx context.Context, taskID string) (*model.SpiderTask, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, assert.AnError
	}
	return task, nil
}

func (f *fakeStore) UpdateSpiderTaskStatus(ctx context.Context, taskID string, status model.SpiderTaskStatus, runID *int64, lastError string) (*model.SpiderTask, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, assert.AnError
	}
	task.Status = status
	if runID != nil {
		task.RunID = runID
	}
	task.LastError = lastError
	f.lastTaskStatus = status
	return task, nil
}

func (f *fakeStore) GetVocJob(ctx context.Context, jobID int64) (*model.VocJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, assert.AnError
	}
	return job, nil
}

func (f *fakeStore) UpdateVocJobParams(ctx context.Context, jobID int64, params map[string]interface{}) error {
	f.lastParams = params
	return nil
}

func (f *fakeStore) UpdateVocJobStatus(ctx context.Context, jobID int64, status model.VocJobStatus, stage, errorCode, errorMessage, failedStage string) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return assert.AnError
	}
	job.Status = status
	job.Stage = stage
	f.lastJobStatus = status
	return nil
}

func newTestStore(token string) (*fakeStore, *model.SpiderTask, *model.VocJob) {
	task := &model.SpiderTask{
		TaskRowID:         1,
		JobID:             100,
		TaskID:            "task-abc",
		Status:            model.SpiderPending,
		CallbackTokenHash: TokenHash(token),
	}
	job := &model.VocJob{
		JobID:  100,
		Status: model.VocCrawling,
		Params: map[string]interface{}{
			"pending_crawl": []interface{}{"task-abc"},
		},
	}
	store := &fakeStore{
		tasks: map[string]*model.SpiderTask{task.TaskID: task},
		jobs:  map[int64]*model.VocJob{job.JobID: job},
	}
	return store, task, job
}

func postCallback(t *testing.T, h http.Handler, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path+"?token="+token, bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCallbackReceiver_RejectsWrongToken(t *testing.T) {
	store, _, _ := newTestStore("correct-token")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "wrong-token", callbackBody{
		Status: "RUNNING", TaskID: "task-abc",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallbackReceiver_RejectsMismatchedJobIDInPath(t *testing.T) {
	store, _, _ := newTestStore("tok")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/999", "tok", callbackBody{
		Status: "RUNNING", TaskID: "task-abc",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackReceiver_RunningUpdatesTaskStatusOnly(t *testing.T) {
	store, _, job := newTestStore("tok")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "tok", callbackBody{
		Status: "RUNNING", TaskID: "task-abc",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SpiderRunning, store.lastTaskStatus)
	assert.Equal(t, model.VocCrawling, job.Status)
}

func TestCallbackReceiver_ReadyDrainsPendingAndAdvancesJob(t *testing.T) {
	runID := int64(42)
	store, _, job := newTestStore("tok")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "tok", callbackBody{
		Status: "READY", TaskID: "task-abc", RunID: &runID,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SpiderReady, store.lastTaskStatus)
	assert.Equal(t, model.VocExtracting, job.Status)
	assert.Empty(t, store.lastParams["pending_crawl"])
}

func TestCallbackReceiver_ReadyWithoutRunIDIsRejected(t *testing.T) {
	store, _, _ := newTestStore("tok")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "tok", callbackBody{
		Status: "READY", TaskID: "task-abc",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCallbackReceiver_FailedMarksTaskAndJobFailed(t *testing.T) {
	store, _, job := newTestStore("tok")
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "tok", callbackBody{
		Status: "FAILED", TaskID: "task-abc", ErrorMessage: "crawl blocked",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.SpiderFailed, store.lastTaskStatus)
	assert.Equal(t, model.VocFailed, job.Status)
}

func TestCallbackReceiver_IgnoresCallbackAfterJobPastCrawling(t *testing.T) {
	store, _, job := newTestStore("tok")
	job.Status = model.VocExtracting
	h := &CallbackReceiver{Store: store}

	rec := postCallback(t, h, "/voc/spider/callback/100", "tok", callbackBody{
		Status: "READY", TaskID: "task-abc", RunID: func() *int64 { v := int64(1); return &v }(),
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.VocExtracting, job.Status)
}

func TestCallbackReceiver_RejectsGetMethod(t *testing.T) {
	store, _, _ := newTestStore("tok")
	h := &CallbackReceiver{Store: store}
	req := httptest.NewRequest(http.MethodGet, "/voc/spider/callback/100?token=tok", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTokenHash_IsDeterministicAndDistinct(t *testing.T) {
	assert.Equal(t, TokenHash("abc"), TokenHash("abc"))
	assert.NotEqual(t, TokenHash("abc"), TokenHash("xyz"))
}

func TestJobIDFromPath(t *testing.T) {
	id, ok := jobIDFromPath("/voc/spider/callback/42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = jobIDFromPath("/voc/spider/callback")
	assert.False(t, ok)

	_, ok = jobIDFromPath("/voc/spider/callback/not-a-number")
	assert.False(t, ok)
}
