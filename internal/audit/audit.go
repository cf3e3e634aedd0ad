// Package audit records activity-log entries that follow the creation of
// a case.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

// HookName labels the hook in logs and metrics.
const HookName = "audit"

// Activity types written for a new case.
const (
	ActivityCaseCreated = "case_created"
	ActivityNoticeSent  = "notice_sent"
)

// PerformedBySystem marks entries written by the repository itself.
const PerformedBySystem = "system"

// noticeDelay separates the notice entry from the creation entry.
const noticeDelay = time.Second

// CaseCreated writes two activity logs for a newly created case: the
// creation at the case's created_at and the initial notice one second
// later. The second entry is attempted even if the first fails; all
// failures are returned joined.
func CaseCreated(ctx context.Context, repo types.Repository, created types.Record) error {
	debtor := created.Text("debtor_name")
	entries := []struct {
		activity    string
		at          time.Time
		description string
	}{
		{ActivityCaseCreated, created.CreatedAt, fmt.Sprintf("Case created for %s", debtor)},
		{ActivityNoticeSent, created.CreatedAt.Add(noticeDelay), fmt.Sprintf("Initial notice sent to %s", debtor)},
	}

	var errs []error
	for _, e := range entries {
		_, err := repo.Create(ctx, types.EntityActivityLogs, map[string]any{
			"case_id":       created.ID,
			"activity_type": e.activity,
			"activity_date": types.FormatTime(e.at),
			"description":   e.description,
			"performed_by":  PerformedBySystem,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("writing %s entry for case %s: %w", e.activity, created.ID, err))
		}
	}
	return errors.Join(errs...)
}
