package services

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/batch"
	"github.com/ahmetcoskunkizilkaya/membership-backend/internal/models"
)

const ProcessorExpireMemberships = "expire_memberships"

// ExpireProcessor backfills expiration of memberships whose date has passed.
type ExpireProcessor struct {
	memberships *MembershipService
	now         func() time.Time
}

func NewExpireProcessor(memberships *MembershipService) *ExpireProcessor {
	return &ExpireProcessor{memberships: memberships, now: func() time.Time { return time.Now().UTC() }}
}

func (p *ExpireProcessor) Name() string { return ProcessorExpireMemberships }

func (p *ExpireProcessor) Count(ctx context.Context, job *models.BatchJob) (int, error) {
	n, err := p.memberships.CountDue(ctx, p.now())
	return int(n), err
}

// Execute ignores offset: expired memberships drop out of the due set, so the
// next page always starts at the front.
func (p *ExpireProcessor) Execute(ctx context.Context, job *models.BatchJob, offset, limit int) (batch.Result, error) {
	n, err := p.memberships.ExpireDue(ctx, p.now(), limit)
	if err != nil {
		return batch.Result{Processed: n}, err
	}
	return batch.Result{Processed: n, Done: n < limit}, nil
}
