package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// recorder captures Create calls and fails the ones listed in fail.
type recorder struct {
	types.Repository
	created []map[string]any
	fail    map[string]bool
}

func (r *recorder) Create(_ context.Context, entity string, fields map[string]any) (types.Record, error) {
	if entity != types.EntityActivityLogs {
		return types.Record{}, errors.New("unexpected entity " + entity)
	}
	r.created = append(r.created, fields)
	if r.fail[fields["activity_type"].(string)] {
		return types.Record{}, types.ErrRemoteUnavailable
	}
	return types.Record{ID: "log", Fields: fields}, nil
}

func newCase() types.Record {
	at := time.Date(2026, 7, 4, 15, 30, 0, 0, time.UTC)
	return types.Record{
		ID:        "local-case-1",
		CreatedAt: at,
		UpdatedAt: at,
		Fields:    map[string]any{"debtor_name": "Dana Reyes"},
	}
}

func TestCaseCreatedWritesTwoEntries(t *testing.T) {
	repo := &recorder{}
	require.NoError(t, CaseCreated(context.Background(), repo, newCase()))

	require.Len(t, repo.created, 2)
	first, second := repo.created[0], repo.created[1]
	assert.Equal(t, ActivityCaseCreated, first["activity_type"])
	assert.Equal(t, "2026-07-04T15:30:00.000000000Z", first["activity_date"])
	assert.Equal(t, ActivityNoticeSent, second["activity_type"])
	assert.Equal(t, "2026-07-04T15:30:01.000000000Z", second["activity_date"])
	for _, e := range repo.created {
		assert.Equal(t, "local-case-1", e["case_id"])
		assert.Equal(t, PerformedBySystem, e["performed_by"])
		assert.Contains(t, e["description"], "Dana Reyes")
	}
}

func TestCaseCreatedAttemptsBothOnFailure(t *testing.T) {
	repo := &recorder{fail: map[string]bool{ActivityCaseCreated: true}}
	err := CaseCreated(context.Background(), repo, newCase())

	assert.ErrorIs(t, err, types.ErrRemoteUnavailable)
	assert.Len(t, repo.created, 2)
	assert.Contains(t, err.Error(), ActivityCaseCreated)
	assert.NotContains(t, err.Error(), ActivityNoticeSent)
}
