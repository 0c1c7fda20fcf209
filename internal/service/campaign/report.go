package campaign

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/ignite/mailroom/internal/domain"
)

const failureReportSource = `<div style="font-family:Segoe UI,Arial,sans-serif;padding:16px;background:#f8fafc;color:#0f172a;">
  <h2 style="margin:0 0 10px;">Campaign delivery report</h2>
  <p style="margin:0 0 10px;">Campaign: <strong>{{ campaign | escape }}</strong></p>
  <p style="margin:0 0 14px;">Sent: <strong>{{ sent }}</strong> &bull; Failed: <strong>{{ failed }}</strong></p>
  <table style="width:100%;border-collapse:collapse;background:#fff;border:1px solid #e2e8f0;">
    <thead>
      <tr>
        <th style="text-align:left;padding:8px 10px;background:#f1f5f9;border-bottom:1px solid #e2e8f0;">Recipient</th>
        <th style="text-align:left;padding:8px 10px;background:#f1f5f9;border-bottom:1px solid #e2e8f0;">Failure reason</th>
      </tr>
    </thead>
    <tbody>{% for f in failures %}<tr><td style="padding:8px 10px;border-bottom:1px solid #e2e8f0;">{{ f.email | escape }}</td><td style="padding:8px 10px;border-bottom:1px solid #e2e8f0;">{{ f.reason | escape }}</td></tr>{% else %}<tr><td colspan="2" style="padding:10px;">No failures were recorded.</td></tr>{% endfor %}</tbody>
  </table>
</div>`

var failureReportTemplate = mustParse(failureReportSource)

func mustParse(src string) *liquid.Template {
	tpl, err := liquid.NewEngine().ParseString(src)
	if err != nil {
		panic(fmt.Sprintf("campaign: parse failure report template: %v", err))
	}
	return tpl
}

// FailureReportSubject is the subject line of the failure digest.
func FailureReportSubject(campaignName string) string {
	return "Campaign failure report: " + campaignName
}

// RenderFailureReport renders the failure digest for a completed dispatch.
// Values are HTML-escaped.
func RenderFailureReport(campaignName string, res *domain.DispatchResult) (string, error) {
	failures := make([]map[string]any, 0, res.Failed)
	for _, r := range res.Results {
		if r.Status != domain.RecipientFailed {
			continue
		}
		reason := r.Error
		if reason == "" {
			reason = "Unknown error"
		}
		failures = append(failures, map[string]any{"email": r.Email, "reason": reason})
	}

	out, err := failureReportTemplate.RenderString(liquid.Bindings{
		"campaign": campaignName,
		"sent":     res.Sent,
		"failed":   res.Failed,
		"failures": failures,
	})
	if err != nil {
		return "", fmt.Errorf("render failure report: %w", err)
	}
	return out, nil
}
