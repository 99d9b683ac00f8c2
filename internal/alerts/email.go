package alerts

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"

	"github.com/finxan/finxan-backend/pkg/db/models"
	"github.com/finxan/finxan-backend/pkg/enums"
)

type emailAlert struct {
	ProductName     string
	SKU             string
	CurrentQuantity int
	Threshold       int
	Label           string
}

type emailData struct {
	Name      string
	Total     int
	Critical  []emailAlert
	LowStock  []emailAlert
	AlertsURL string
}

var htmlEmail = template.Must(template.New("alert-email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Low Stock Alert</h1>
    <p>Hi {{.Name}},</p>
    <p>We detected {{.Total}} items that need your attention:</p>
    {{- if .Critical}}
    <h3 style="color: #dc2626;">Critical Alerts ({{len .Critical}})</h3>
    {{- range .Critical}}
    <div style="padding: 15px; margin: 10px 0; border-left: 4px solid #dc2626;">
      <strong>{{.ProductName}}</strong><br>
      SKU: {{.SKU}}<br>
      Current Stock: <strong>{{.CurrentQuantity}}</strong> units<br>
      Status: {{.Label}}
    </div>
    {{- end}}
    {{- end}}
    {{- if .LowStock}}
    <h3 style="color: #f59e0b;">Low Stock Items ({{len .LowStock}})</h3>
    {{- range .LowStock}}
    <div style="padding: 15px; margin: 10px 0; border-left: 4px solid #f59e0b;">
      <strong>{{.ProductName}}</strong><br>
      SKU: {{.SKU}}<br>
      Current Stock: <strong>{{.CurrentQuantity}}</strong> units<br>
      Threshold: {{.Threshold}} units
    </div>
    {{- end}}
    {{- end}}
    <p><a href="{{.AlertsURL}}">View All Alerts</a></p>
    <p>Please take action to restock these items to avoid stockouts.</p>
    <p style="color: #6b7280; font-size: 12px;">This is an automated alert from Finxan AI</p>
  </div>
</body>
</html>
`))

var textEmail = texttemplate.Must(texttemplate.New("alert-email-text").Parse(`Hi {{.Name}},

We detected {{.Total}} items that need your attention.
{{range .Critical}}
- {{.ProductName}} (SKU {{.SKU}}): {{.CurrentQuantity}} units, {{.Label}}{{end}}{{range .LowStock}}
- {{.ProductName}} (SKU {{.SKU}}): {{.CurrentQuantity}} units, threshold {{.Threshold}}{{end}}

View all alerts: {{.AlertsURL}}
`))

// renderEmail builds the subject and bodies for a batch of new alerts. Out-of-stock and
// critical alerts are listed before low-stock ones.
func renderEmail(user *models.User, alerts []models.Alert, frontendURL string) (subject, html, text string, err error) {
	data := emailData{
		Name:      user.DisplayName,
		Total:     len(alerts),
		AlertsURL: strings.TrimRight(frontendURL, "/") + "/alerts",
	}
	if strings.TrimSpace(data.Name) == "" {
		data.Name = "there"
	}
	for _, alert := range alerts {
		entry := emailAlert{
			ProductName:     alert.ProductName,
			SKU:             alert.SKU,
			CurrentQuantity: alert.CurrentQuantity,
			Threshold:       alert.Threshold,
		}
		if entry.SKU == "" {
			entry.SKU = "N/A"
		}
		switch alert.AlertType {
		case enums.AlertTypeOutOfStock:
			entry.Label = "OUT OF STOCK"
			data.Critical = append(data.Critical, entry)
		case enums.AlertTypeCritical:
			entry.Label = "CRITICAL LOW"
			data.Critical = append(data.Critical, entry)
		default:
			data.LowStock = append(data.LowStock, entry)
		}
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := htmlEmail.Execute(&htmlBuf, data); err != nil {
		return "", "", "", fmt.Errorf("render html email: %w", err)
	}
	if err := textEmail.Execute(&textBuf, data); err != nil {
		return "", "", "", fmt.Errorf("render text email: %w", err)
	}
	subject = fmt.Sprintf("Low Stock Alert - %d Items Need Attention", len(alerts))
	return subject, htmlBuf.String(), textBuf.String(), nil
}
