package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
)

var templateFuncs = template.FuncMap{
	"money": domain.FormatMinorUnits,
}

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Funcs(templateFuncs).Parse(`<h1>Thank you for your order</h1>
<p>Order reference: {{.CheckoutID}}</p>
<table>
{{- range .Items}}
<tr><td>{{.Name}}</td><td>{{.Quantity}} x {{money .UnitPriceMinorUnits .CurrencyCode}}</td><td>{{money .SubtotalMinorUnits .CurrencyCode}}</td></tr>
{{- end}}
</table>
<p>Total: {{money .TotalMinorUnits .Currency}}</p>
`))

var contactTmpl = template.Must(template.New("contact").Parse(`<p>New message from {{.Name}} &lt;{{.Email}}&gt;</p>
<blockquote>{{.Message}}</blockquote>
`))

type OrderConfirmation struct {
	CheckoutID      string
	Items           []domain.CartItem
	TotalMinorUnits int64
	Currency        string
}

// RenderOrderConfirmation returns the HTML body of an order e-mail.
func RenderOrderConfirmation(data OrderConfirmation) (string, error) {
	if data.Currency == "" {
		data.Currency = domain.DefaultCurrency
	}
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render order confirmation: %w", err)
	}
	return buf.String(), nil
}

type ContactForm struct {
	Name    string
	Email   string
	Message string
}

func RenderContact(data ContactForm) (string, error) {
	var buf bytes.Buffer
	if err := contactTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render contact message: %w", err)
	}
	return buf.String(), nil
}
