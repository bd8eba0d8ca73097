package index

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnqueueJob_Dedupe(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", TurnJob{SessionID: "s1", TurnNumber: 1}, 0)
	require.NoError(t, err)
	id2, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", TurnJob{SessionID: "s1", TurnNumber: 99}, 0)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	job, err := db.GetJob(id1)
	require.NoError(t, err)
	var p TurnJob
	require.NoError(t, job.Decode(&p))
	assert.Equal(t, 1, p.TurnNumber, "pending job keeps its payload")
}

func TestClaimJob_PriorityAndEmpty(t *testing.T) {
	db := openTestDB(t)

	_, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", nil, 0)
	require.NoError(t, err)
	_, err = db.EnqueueJob(JobSessionSummary, "session:s1", nil, 1)
	require.NoError(t, err)

	first, err := db.ClaimJob("w1")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, JobSessionSummary, first.Kind)
	assert.Equal(t, JobProcessing, first.Status)
	assert.Equal(t, 1, first.Attempts)

	second, err := db.ClaimJob("w1")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, JobTurnSummary, second.Kind)

	none, err := db.ClaimJob("w1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestClaimJob_KindFilter(t *testing.T) {
	db := openTestDB(t)

	_, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", nil, 0)
	require.NoError(t, err)

	job, err := db.ClaimJob("w1", JobEventSummary, JobSessionSummary)
	require.NoError(t, err)
	assert.Nil(t, job)

	job, err = db.ClaimJob("w1", JobTurnSummary)
	require.NoError(t, err)
	require.NotNil(t, job)
}

func TestFailJob_RetryAndFinal(t *testing.T) {
	db := openTestDB(t)

	id, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", nil, 0)
	require.NoError(t, err)

	job, err := db.ClaimJob("w1")
	require.NoError(t, err)
	require.NoError(t, db.RetryJob(job.ID, "timeout", 0))

	job, err = db.ClaimJob("w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, "timeout", job.LastError)

	require.NoError(t, db.FailJob(job.ID, "still broken"))
	job, err = db.ClaimJob("w1")
	require.NoError(t, err)
	assert.Nil(t, job)

	counts, err := db.JobCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[JobFailed])
}

func TestRetryJob_WaitsBeforeNextClaim(t *testing.T) {
	db := openTestDB(t)

	id, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", nil, 0)
	require.NoError(t, err)
	job, err := db.ClaimJob("w1")
	require.NoError(t, err)
	require.NoError(t, db.RetryJob(job.ID, "429 rate limited", time.Hour))

	job, err = db.ClaimJob("w1")
	require.NoError(t, err)
	assert.Nil(t, job, "retry is not due yet")

	stored, err := db.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, JobRetry, stored.Status)
	assert.Equal(t, "429 rate limited", stored.LastError)

	_, err = db.Raw().Exec("UPDATE jobs SET next_run_at = '2000-01-01 00:00:00' WHERE id = ?", id)
	require.NoError(t, err)
	job, err = db.ClaimJob("w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 2, job.Attempts)
}

func TestEnqueueJob_RearmsFinished(t *testing.T) {
	db := openTestDB(t)

	id, err := db.EnqueueJob(JobSessionSummary, "session:s1", SessionJob{SessionID: "s1"}, 1)
	require.NoError(t, err)
	job, err := db.ClaimJob("w1")
	require.NoError(t, err)
	require.NoError(t, db.CompleteJob(job.ID))

	again, err := db.EnqueueJob(JobSessionSummary, "session:s1", SessionJob{SessionID: "s1"}, 1)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	stored, err := db.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, JobQueued, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
}

func TestClaimJob_ExpiredLease(t *testing.T) {
	db := openTestDB(t)

	id, err := db.EnqueueJob(JobTurnSummary, "turn:s1:1", nil, 0)
	require.NoError(t, err)
	_, err = db.ClaimJob("crashed")
	require.NoError(t, err)

	job, err := db.ClaimJob("w2")
	require.NoError(t, err)
	assert.Nil(t, job, "leased job is not visible")

	_, err = db.Raw().Exec("UPDATE jobs SET locked_until = '2000-01-01 00:00:00' WHERE id = ?", id)
	require.NoError(t, err)

	job, err = db.ClaimJob("w2")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, 2, job.Attempts)
}
