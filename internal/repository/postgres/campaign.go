package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `c.id, c.name, c.subject, c.html, c.attachments, c.group_id, c.template_id,
	c.send_mode, c.scheduled_for, c.stagger_minutes, c.send_failure_report, c.failure_report_email,
	c.status, c.processing_started_at, c.sent_at, c.created_at, c.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner, extra ...any) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	dest := append([]any{
		&c.ID, &c.Name, &c.Subject, &c.HTML, &c.AttachmentRaw, &c.GroupID, &c.TemplateID,
		&c.SendMode, &c.ScheduledFor, &c.StaggerMinutes, &c.SendFailureReport, &c.FailureReportEmail,
		&c.Status, &c.ProcessingStartedAt, &c.SentAt, &c.CreatedAt, &c.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+campaignColumns+`, COALESCE(g.name, '')
		FROM campaigns c
		LEFT JOIN contact_groups g ON g.id = c.group_id
		ORDER BY c.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	index := map[string]int{}
	var ids []string
	for rows.Next() {
		var groupName string
		c, err := scanCampaign(rows, &groupName)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.GroupName = groupName
		index[c.ID] = len(out)
		ids = append(ids, c.ID)
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	rrows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, contact_id, email, status, message_id, error, sent_at, created_at
		FROM campaign_recipients
		WHERE campaign_id = ANY($1)
		ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rrows.Close()
	for rrows.Next() {
		var rc domain.CampaignRecipient
		if err := rrows.Scan(&rc.ID, &rc.CampaignID, &rc.ContactID, &rc.Email, &rc.Status,
			&rc.MessageID, &rc.Error, &rc.SentAt, &rc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		if i, ok := index[rc.CampaignID]; ok {
			out[i].Recipients = append(out[i].Recipients, rc)
		}
	}
	return out, rrows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, name, subject, html, attachments, group_id, template_id, send_mode, scheduled_for,
			 stagger_minutes, send_failure_report, failure_report_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		c.ID, c.Name, c.Subject, c.HTML, c.AttachmentRaw, c.GroupID, c.TemplateID, string(c.SendMode),
		c.ScheduledFor, c.StaggerMinutes, c.SendFailureReport, c.FailureReportEmail, string(c.Status),
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return affected(res, campaign.ErrNotFound)
}

func (r *CampaignRepo) ListDue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM campaigns
		WHERE status = 'scheduled' AND send_mode = 'scheduled' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due campaign: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CampaignRepo) ListMembers(ctx context.Context, groupID string) ([]domain.Membership, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM contact_groups WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup group: %w", err)
	}
	if !exists {
		return nil, campaign.ErrMissingGroup
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.contact_id, m.group_id, m.created_at,
		       c.email, COALESCE(c.email_hash, ''), c.name, c.company, c.tags_csv, c.created_at, c.updated_at
		FROM group_memberships m
		JOIN contacts c ON c.id = m.contact_id
		WHERE m.group_id = $1
		ORDER BY m.created_at ASC, m.contact_id ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var out []domain.Membership
	for rows.Next() {
		var m domain.Membership
		c := &domain.Contact{}
		if err := rows.Scan(&m.ContactID, &m.GroupID, &m.CreatedAt,
			&c.Email, &c.EmailHash, &c.Name, &c.Company, &c.Tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		c.ID = m.ContactID
		m.Contact = c
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) MarkSending(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sending', processing_started_at = $2, updated_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark sending: %w", err)
	}
	return affected(res, campaign.ErrNotFound)
}

func (r *CampaignRepo) ClaimDue(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sending', processing_started_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'scheduled'`, id, at)
	if err != nil {
		return false, fmt.Errorf("claim due campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CampaignRepo) DeleteRecipients(ctx context.Context, campaignID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM campaign_recipients WHERE campaign_id = $1`, campaignID); err != nil {
		return fmt.Errorf("delete recipients: %w", err)
	}
	return nil
}

func (r *CampaignRepo) CreateRecipient(ctx context.Context, rc *domain.CampaignRecipient) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_recipients
			(id, campaign_id, contact_id, email, status, message_id, error, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rc.ID, rc.CampaignID, rc.ContactID, rc.Email, string(rc.Status), rc.MessageID, rc.Error, rc.SentAt, rc.CreatedAt)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	return nil
}

func (r *CampaignRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'sent', sent_at = $2, processing_started_at = NULL, updated_at = $2
		WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return affected(res, campaign.ErrNotFound)
}
