package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/mailroom/internal/attachment"
	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/pkg/httputil"
	"github.com/ignite/mailroom/internal/service/campaign"
)

type createCampaignRequest struct {
	Name               string          `json:"name"`
	Subject            string          `json:"subject"`
	HTML               string          `json:"html"`
	GroupID            string          `json:"groupId"`
	TemplateID         string          `json:"templateId"`
	SendMode           string          `json:"sendMode"`
	ScheduledFor       string          `json:"scheduledFor"`
	StaggerMinutes     json.RawMessage `json:"staggerMinutes"`
	SendFailureReport  bool            `json:"sendFailureReport"`
	FailureReportEmail string          `json:"failureReportEmail"`
	Attachments        json.RawMessage `json:"attachments"`
}

// staggerText accepts the stagger as a JSON number or string.
func staggerText(raw json.RawMessage) string {
	var v any
	if len(raw) == 0 || json.Unmarshal(raw, &v) != nil || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

type sendNowResponse struct {
	CampaignID string                   `json:"campaignId"`
	SendMode   domain.SendMode          `json:"sendMode"`
	Sent       int                      `json:"sent"`
	Failed     int                      `json:"failed"`
	Results    []domain.RecipientResult `json:"results"`
}

// ListCampaigns returns campaigns newest first with decrypted recipients.
//
//	GET /api/campaigns
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	items, err := h.campaigns.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []domain.Campaign{}
	}
	httputil.OK(w, items)
}

// CreateCampaign stores a campaign. Now and staggered campaigns are sent
// before the response is written.
//
//	POST /api/campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	res, err := h.campaigns.Create(r.Context(), campaign.CreateInput{
		Name:               req.Name,
		Subject:            req.Subject,
		HTML:               req.HTML,
		GroupID:            req.GroupID,
		TemplateID:         req.TemplateID,
		SendMode:           req.SendMode,
		ScheduledFor:       req.ScheduledFor,
		StaggerMinutes:     staggerText(req.StaggerMinutes),
		SendFailureReport:  req.SendFailureReport,
		FailureReportEmail: req.FailureReportEmail,
		Attachments:        attachment.Sanitize(req.Attachments),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Dispatch == nil {
		httputil.Created(w, res.Campaign)
		return
	}
	httputil.Created(w, sendNowResponse{
		CampaignID: res.Campaign.ID,
		SendMode:   res.Campaign.SendMode,
		Sent:       res.Dispatch.Sent,
		Failed:     res.Dispatch.Failed,
		Results:    res.Dispatch.Results,
	})
}

// GetCampaign returns one campaign.
//
//	GET /api/campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a campaign and its recipients.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"ok": true})
}

// SendCampaign dispatches an existing campaign, including resends.
//
//	POST /api/campaigns/{id}/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	res, err := h.campaigns.Send(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}

// ProcessDueCampaigns dispatches every scheduled campaign whose time has come.
// The sweep keeps going if the poller disconnects.
//
//	POST /api/campaigns/process-due
func (h *Handlers) ProcessDueCampaigns(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.ProcessDue(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, res)
}
