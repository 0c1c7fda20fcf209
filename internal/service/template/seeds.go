package template

import (
	"fmt"

	"github.com/osteele/liquid"
)

// seed is a built-in starter template. Its HTML is the shared layout
// rendered with the seed's bindings.
type seed struct {
	name        string
	description string
	subject     string
	bindings    liquid.Bindings
}

const layoutSource = `<div style="margin:0;padding:24px;background:{{ page }};font-family:Segoe UI,Arial,sans-serif;">
  <div style="max-width:660px;margin:0 auto;background:#ffffff;border:1px solid #dbe3ee;border-radius:16px;overflow:hidden;">
    {% if banner %}<div style="padding:20px 28px;background:{{ accent }};color:#ffffff;font-size:15px;font-weight:700;">{{ banner }}</div>{% endif %}
    {% if image %}<img src="{{ image }}" alt="" style="display:block;width:100%;height:260px;object-fit:cover;" />{% endif %}
    <div style="padding:32px 28px 8px;">
      <div style="font-size:12px;font-weight:700;letter-spacing:.12em;text-transform:uppercase;color:#52627a;">{{ eyebrow }}</div>
      <div style="margin-top:10px;font-size:32px;line-height:1.2;font-weight:800;color:#0f172a;">{{ headline }}</div>
      <div style="margin-top:14px;font-size:16px;line-height:1.7;color:#334155;">Hi {{ name_token }},</div>
      <div style="margin-top:8px;font-size:16px;line-height:1.7;color:#4b5c73;">{{ body }}</div>
    </div>
    {% if highlights.size > 0 %}<div style="padding:12px 28px;">{% for h in highlights %}
      <div style="margin-top:10px;padding:14px;border:1px solid #e2e8f0;border-radius:12px;">
        <div style="font-size:15px;font-weight:700;color:#0f172a;">{{ h.title }}</div>
        <div style="margin-top:6px;font-size:14px;line-height:1.6;color:#64748b;">{{ h.text }}</div>
      </div>{% endfor %}
    </div>{% endif %}
    <div style="padding:20px 28px 28px;">
      <a href="{{ cta_url }}" style="display:inline-block;padding:13px 24px;background:{{ accent }};color:#ffffff;text-decoration:none;border-radius:999px;font-weight:700;">{{ cta_label }}</a>
    </div>
    <div style="padding:0 28px 24px;color:#64748b;font-size:12px;line-height:1.5;">This message was sent from a no-reply address. Please do not reply directly to this email.</div>
  </div>
</div>`

var defaultSeeds = []seed{
	{
		name:        "Sleek Product Launch",
		description: "Modern gradient hero with CTA block and feature grid.",
		subject:     "We just launched something big 🚀",
		bindings: liquid.Bindings{
			"page": "#f4f7fb", "accent": "#2563eb",
			"eyebrow":  "New release",
			"headline": "Launch your next campaign with confidence",
			"body":     "Powerful workflows, instant updates and polished messaging in one place.",
			"highlights": []map[string]string{
				{"title": "Smart audiences", "text": "Target the exact contacts you need."},
				{"title": "Design freedom", "text": "Craft high-impact branded email visuals."},
				{"title": "Clear reporting", "text": "Track delivery success at contact level."},
			},
			"cta_label": "Explore now", "cta_url": "https://example.com",
		},
	},
	{
		name:        "Executive Alert Bulletin",
		description: "Clean corporate alert style for urgent operational updates.",
		subject:     "Important service alert",
		bindings: liquid.Bindings{
			"page": "#f8fafc", "accent": "#0b1324",
			"banner":    "Global Technology Notifications",
			"eyebrow":   "Service alert",
			"headline":  "A temporary disruption is being resolved",
			"body":      "Please review the details below and share internally as needed. We will keep providing updates until full resolution.",
			"cta_label": "View live status", "cta_url": "https://status.example.com",
		},
	},
	{
		name:        "Promo Spotlight",
		description: "Sleek sales campaign layout with image-first storytelling.",
		subject:     "A special offer picked for you",
		bindings: liquid.Bindings{
			"page": "#eef2f7", "accent": "#111827",
			"image":     "https://images.unsplash.com/photo-1556740749-887f6717d7e4?auto=format&fit=crop&w=1280&q=80",
			"eyebrow":   "Limited-time campaign",
			"headline":  "Upgrade your setup with premium savings",
			"body":      "Deliver standout experiences with a premium platform tailored to fast-moving teams.",
			"cta_label": "Claim offer", "cta_url": "https://example.com/offer",
		},
	},
}

// renderSeed produces the stored HTML of s. The personalization token is
// passed through as a binding so it survives rendering untouched.
func renderSeed(engine *liquid.Engine, s seed) (string, error) {
	b := liquid.Bindings{"name_token": "{{name}}", "highlights": []map[string]string{}}
	for k, v := range s.bindings {
		b[k] = v
	}
	out, err := engine.ParseAndRenderString(layoutSource, b)
	if err != nil {
		return "", fmt.Errorf("render seed %q: %w", s.name, err)
	}
	return out, nil
}
