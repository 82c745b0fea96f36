package notifier

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"

	"CryptoSentinel/internal/model"
)

const disclaimer = "This is an automated alert. Always do your own research before investing."

// ActionColor returns the badge colour used for an action.
func ActionColor(a model.AlertAction) string {
	switch a {
	case model.ActionConsiderBuy:
		return "#10b981"
	case model.ActionConsiderSell:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

// ActionLabel returns the badge text used for an action.
func ActionLabel(a model.AlertAction) string {
	switch a {
	case model.ActionConsiderBuy:
		return "BUY"
	case model.ActionConsiderSell:
		return "SELL"
	case model.ActionInfo:
		return "INFO"
	default:
		return "HOLD"
	}
}

// ConsolidatedSubject is the subject line of a consolidated alert email.
func ConsolidatedSubject(result model.ConsolidatedAlertResult) string {
	return fmt.Sprintf("Crypto Alerts - %d Opportunity(ies) Detected", result.TotalAlerts())
}

var funcs = template.FuncMap{
	"color": ActionColor,
	"label": ActionLabel,
	"lines": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}

const layout = `{{define "header"}}<tr>
<td style="padding: 30px; text-align: center; background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); border-radius: 8px 8px 0 0;">
<h1 style="margin: 0; color: #ffffff; font-size: 24px; font-weight: 600;">Crypto Alerts</h1>{{if .}}
<p style="margin: 8px 0 0 0; color: #e0e7ff; font-size: 14px;">{{.}}</p>{{end}}
</td>
</tr>{{end}}
{{define "footer"}}<tr>
<td style="padding: 20px 30px; text-align: center; border-top: 1px solid #e5e7eb; background-color: #f9fafb; border-radius: 0 0 8px 8px;">{{if .At}}
<p style="margin: 0; color: #9ca3af; font-size: 12px;">Analysis performed at {{.At}} UTC</p>{{end}}
<p style="margin: 8px 0 0 0; color: #9ca3af; font-size: 12px;">{{.Disclaimer}}</p>
</td>
</tr>{{end}}
{{define "open"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
<table role="presentation" style="width: 100%; border-collapse: collapse;">
<tr>
<td style="padding: 40px 20px; text-align: center; background-color: #f3f4f6;">
<table role="presentation" style="max-width: 600px; margin: 0 auto; border-collapse: collapse; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1);">{{end}}
{{define "close"}}</table>
</td>
</tr>
</table>
</body>
</html>{{end}}`

const singleBody = `{{template "open" .Decision.Title}}
{{template "header" ""}}
<tr>
<td style="padding: 30px;">
<div style="display: inline-block; padding: 8px 16px; background-color: {{color .Decision.Action}}; color: #ffffff; border-radius: 4px; font-weight: 600; font-size: 14px; text-transform: uppercase; margin-bottom: 20px;">{{label .Decision.Action}}</div>
<h2 style="margin: 0 0 20px 0; color: #111827; font-size: 20px; font-weight: 600;">{{.Decision.Title}}</h2>
<p style="margin: 0; color: #6b7280; font-size: 16px; line-height: 1.6;">{{lines .Decision.Message}}</p>
</td>
</tr>
{{template "footer" .}}
{{template "close"}}`

const consolidatedBody = `{{template "open" .Subject}}
{{template "header" .Summary}}
<tr>
<td style="padding: 30px;">{{if .Result.Alerts}}
<h2 style="margin: 0 0 20px 0; color: #111827; font-size: 20px; font-weight: 600;">Alerts</h2>
<table role="presentation" style="width: 100%; border-collapse: separate; border-spacing: 0 16px;">{{range .Result.Alerts}}
<tr>
<td style="padding: 20px; background-color: #ffffff; border-left: 4px solid {{color .Decision.Action}}; border-radius: 4px;">
<div style="display: inline-block; padding: 6px 12px; background-color: {{color .Decision.Action}}; color: #ffffff; border-radius: 4px; font-weight: 600; font-size: 12px; text-transform: uppercase; margin-bottom: 12px;">{{label .Decision.Action}}</div>
<h3 style="margin: 0 0 8px 0; color: #111827; font-size: 18px; font-weight: 600;">{{.Decision.Title}}</h3>
<p style="margin: 0; color: #6b7280; font-size: 14px; line-height: 1.6;">{{lines .Decision.Message}}</p>
</td>
</tr>{{end}}
</table>{{end}}{{if .Result.NoAlerts}}
<h3 style="margin: 24px 0 16px 0; color: #6b7280; font-size: 16px; font-weight: 600;">No Alerts</h3>
<table role="presentation" style="width: 100%; border-collapse: separate; border-spacing: 0 8px;">{{range .Result.NoAlerts}}
<tr>
<td style="padding: 12px 20px; background-color: #f9fafb; border-radius: 4px;">
<p style="margin: 0; color: #9ca3af; font-size: 14px;"><strong>{{.Symbol}}</strong> {{lines .Decision.Message}}</p>
</td>
</tr>{{end}}
</table>{{end}}
</td>
</tr>
{{template "footer" .}}
{{template "close"}}`

var (
	singleTmpl       = template.Must(template.Must(template.New("layout").Funcs(funcs).Parse(layout)).New("single").Parse(singleBody))
	consolidatedTmpl = template.Must(template.Must(template.New("layout").Funcs(funcs).Parse(layout)).New("consolidated").Parse(consolidatedBody))
)

// RenderSingleAlert renders the HTML email for one decision.
func RenderSingleAlert(d model.AlertDecision) (string, error) {
	var buf bytes.Buffer
	err := singleTmpl.ExecuteTemplate(&buf, "single", struct {
		Decision   model.AlertDecision
		At         string
		Disclaimer string
	}{d, "", disclaimer})
	if err != nil {
		return "", fmt.Errorf("render single alert: %w", err)
	}
	return buf.String(), nil
}

// RenderConsolidated renders the HTML email for a multi-symbol run analysed at now.
func RenderConsolidated(result model.ConsolidatedAlertResult, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := consolidatedTmpl.ExecuteTemplate(&buf, "consolidated", struct {
		Result     model.ConsolidatedAlertResult
		Subject    string
		Summary    string
		At         string
		Disclaimer string
	}{
		Result:     result,
		Subject:    ConsolidatedSubject(result),
		Summary:    fmt.Sprintf("%d symbols analysed | %d opportunity(ies) detected", result.TotalAnalyzed(), result.TotalAlerts()),
		At:         now.UTC().Format("2006-01-02 15:04:05"),
		Disclaimer: disclaimer,
	})
	if err != nil {
		return "", fmt.Errorf("render consolidated alert: %w", err)
	}
	return buf.String(), nil
}

// FormatAlertText formats one decision for Telegram's HTML parse mode.
func FormatAlertText(d model.AlertDecision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> [%s]\n", html.EscapeString(d.Title), ActionLabel(d.Action))
	for _, part := range strings.Split(d.Message, " | ") {
		b.WriteString(html.EscapeString(part))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatConsolidatedText formats a multi-symbol run for Telegram.
func FormatConsolidatedText(result model.ConsolidatedAlertResult, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Crypto Alerts</b> | %s UTC\n", now.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%d analysed, %d opportunity(ies)\n", result.TotalAnalyzed(), result.TotalAlerts())
	for _, r := range result.Alerts {
		b.WriteString("\n")
		b.WriteString(FormatAlertText(r.Decision))
		b.WriteString("\n")
	}
	if len(result.NoAlerts) > 0 {
		b.WriteString("\n<b>No alerts</b>\n")
		for _, r := range result.NoAlerts {
			fmt.Fprintf(&b, "%s: %s\n", html.EscapeString(r.Symbol), html.EscapeString(r.Decision.Title))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRules describes the active rules for the /rules command.
func FormatRules(cfg model.RuleConfig) string {
	var b strings.Builder
	b.WriteString("⚙️ <b>Active rules</b>\n\n")
	fmt.Fprintf(&b, "Symbols: %s\n", html.EscapeString(strings.Join(cfg.Symbols, ", ")))
	fmt.Fprintf(&b, "Timeframe: %s\n", html.EscapeString(cfg.Timeframe))
	fmt.Fprintf(&b, "RSI period: %d\n", cfg.RSIPeriod)
	fmt.Fprintf(&b, "Buy when RSI &lt;= %s\n", cfg.BuyRSIThreshold.String())
	fmt.Fprintf(&b, "Sell when RSI &gt;= %s\n", cfg.SellRSIThreshold.String())
	fmt.Fprintf(&b, "Buy when drop from recent high &gt;= %s%%", cfg.DCADropPercent.String())
	return b.String()
}
