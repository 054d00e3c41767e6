package email

import (
	"bytes"
	"fmt"
	"text/template"
)

// Template keys for order notifications.
const (
	TemplateOrderPaid     = "order-paid"
	TemplateOrderCanceled = "order-canceled"
)

// OrderMessage is the data rendered into an order notification.
type OrderMessage struct {
	EventTitle string
	OrderCode  string
	OrderEmail string
	Total      string
	Summary    string
	ShopURL    string
}

var templates = map[string]struct {
	subject string
	body    *template.Template
}{
	TemplateOrderPaid: {
		subject: "New order for %s",
		body: template.Must(template.New(TemplateOrderPaid).Parse(
			`A new paid order was placed for {{.EventTitle}}.

Order code: {{.OrderCode}}
Customer: {{.OrderEmail}}
{{if .Total}}Total: {{.Total}}
{{end}}
{{.Summary}}
{{if .ShopURL}}
Shop: {{.ShopURL}}
{{end}}`)),
	},
	TemplateOrderCanceled: {
		subject: "Order canceled for %s",
		body: template.Must(template.New(TemplateOrderCanceled).Parse(
			`An order for {{.EventTitle}} was canceled.

Order code: {{.OrderCode}}
Customer: {{.OrderEmail}}

{{.Summary}}
{{if .ShopURL}}
Shop: {{.ShopURL}}
{{end}}`)),
	},
}

// Render produces the subject and body for an order notification.
func Render(templateKey string, msg OrderMessage) (subject, body string, err error) {
	tpl, ok := templates[templateKey]
	if !ok {
		return "", "", fmt.Errorf("unknown mail template %q", templateKey)
	}
	var buf bytes.Buffer
	if err := tpl.body.Execute(&buf, msg); err != nil {
		return "", "", err
	}
	return fmt.Sprintf(tpl.subject, msg.EventTitle), buf.String(), nil
}
