package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dmitrijs2005/crashkeeper/internal/config"
	"github.com/dmitrijs2005/crashkeeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestWorker_MovesStagedFileToStore(t *testing.T) {
	p := newPipeline(t)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	path := p.stageRecord(t, testRecord(ts, true, "java.lang.NullPointerException\n  at com.example.Main"))

	result := p.ingestWorker().Run(context.Background())
	require.Equal(t, Done, result)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "staged file should be deleted after insert")

	recs := p.storedRecords(t)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsFatal)
	assert.Equal(t, "Google", recs[0].DeviceMake)
	assert.Equal(t, "java.lang.NullPointerException\n  at com.example.Main", recs[0].StackTrace)
	assert.Equal(t, ts.UnixMilli(), recs[0].Timestamp.UnixMilli())
}

func TestIngestWorker_SkipsBadFileAndContinues(t *testing.T) {
	p := newPipeline(t)
	good := p.stageRecord(t, testRecord(time.Now(), false, "handled error"))

	// not a valid ciphertext; must be skipped in place, not deleted
	bad := p.queue.Dir() + "/garbage.crash"
	require.NoError(t, os.WriteFile(bad, []byte("not encrypted"), 0o600))

	result := p.ingestWorker().Run(context.Background())
	require.Equal(t, Done, result)

	require.Len(t, p.storedRecords(t), 1)
	_, err := os.Stat(bad)
	assert.NoError(t, err, "bad file stays on disk")
	_, err = os.Stat(good)
	assert.True(t, os.IsNotExist(err))
}

func TestIngestWorker_AbsentDirIsDone(t *testing.T) {
	p := newPipeline(t)

	result := p.ingestWorker().Run(context.Background())
	assert.Equal(t, Done, result)
	assert.Empty(t, p.sched.scheduled())
}

func TestIngestWorker_SchedulesUploadOnlyWhenIngested(t *testing.T) {
	p := newPipeline(t)
	w := p.ingestWorker()

	require.Equal(t, Done, w.Run(context.Background()))
	assert.Empty(t, p.sched.scheduled(), "nothing ingested, no upload trigger")

	p.stageRecord(t, testRecord(time.Now(), false, "boom"))
	require.Equal(t, Done, w.Run(context.Background()))
	assert.Equal(t, []Kind{KindUpload}, p.sched.scheduled())
}

func TestIngestWorker_RetentionDeletesExpiredRows(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.registry.Apply(config.Configuration{RetentionDays: 30}))

	ctx := context.Background()
	now := time.Now()
	old := store.Row{CreatedAt: now.Add(-31 * 24 * time.Hour), Payload: "x"}
	fresh := store.Row{CreatedAt: now.Add(-29 * 24 * time.Hour), Payload: "y"}
	require.NoError(t, p.repo.Insert(ctx, &old))
	require.NoError(t, p.repo.Insert(ctx, &fresh))

	require.Equal(t, Done, p.ingestWorker().Run(ctx))

	rows, err := p.repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fresh.ID, rows[0].ID)
}

func TestIngestWorker_RetentionDisabledKeepsEverything(t *testing.T) {
	p := newPipeline(t)
	require.NoError(t, p.registry.Apply(config.Configuration{RetentionDays: 0}))

	ctx := context.Background()
	ancient := store.Row{CreatedAt: time.Now().Add(-10 * 365 * 24 * time.Hour), Payload: "x"}
	require.NoError(t, p.repo.Insert(ctx, &ancient))

	require.Equal(t, Done, p.ingestWorker().Run(ctx))

	rows, err := p.repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
