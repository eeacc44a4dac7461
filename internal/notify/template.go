package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const displayDate = "2 Jan 2006"

// Data is everything a template may reference. Unused fields are ignored.
type Data struct {
	MemberName    string
	PlanName      string
	AmountINR     int
	StartDate     time.Time
	EndDate       time.Time
	PaymentMethod string
	DaysLeft      int
	ReceiptURL    string
	Offers        []Offer
}

// Offer is a plan advertised in renewal messages.
type Offer struct {
	PlanName string
	PriceINR int
}

type Message struct {
	Subject string
	HTML    string
}

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders an amount in whole rupees, e.g. ₹1,500.
func FormatINR(amount int) string {
	return inrPrinter.Sprintf("₹%d", amount)
}

var funcs = template.FuncMap{
	"inr": FormatINR,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(displayDate)
	},
}

const layout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{template "title" .}}</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
<h1 style="color: #333; text-align: center;">{{template "title" .}}</h1>
<p>Dear {{.MemberName}},</p>
{{template "body" .}}
<p style="font-size: 14px; color: #666; margin-top: 20px;">Thank you for choosing Gym!</p>
</body>
</html>{{end}}`

const detailsBlock = `{{define "details"}}<div style="background-color: #f9f9f9; padding: 15px; border-radius: 8px; margin: 20px 0;">
<h3>Membership Details:</h3>
<p><strong>Plan:</strong> {{.PlanName}}</p>
{{if .AmountINR}}<p><strong>Amount:</strong> {{inr .AmountINR}}</p>{{end}}
<p><strong>Start Date:</strong> {{date .StartDate}}</p>
<p><strong>End Date:</strong> {{date .EndDate}}</p>
</div>{{end}}`

type spec struct {
	subject string
	body    string
}

var specs = map[Kind]spec{
	KindRegistrationPending: {
		subject: "Registration Confirmation",
		body: `{{define "title"}}Registration Received{{end}}{{define "body"}}
<p>Thank you for registering. Your membership is pending payment confirmation.</p>
{{template "details" .}}
{{if .PaymentMethod}}<p>Payment method: {{.PaymentMethod}}. We will email you as soon as the payment is confirmed.</p>{{end}}
{{end}}`,
	},
	KindPaymentConfirmed: {
		subject: "Payment Confirmed - Gym Membership",
		body: `{{define "title"}}Payment Confirmed!{{end}}{{define "body"}}
<p>Your payment has been confirmed for your {{.PlanName}} membership plan.</p>
{{template "details" .}}
<p><strong>Payment Status:</strong> Confirmed</p>
{{if .ReceiptURL}}<p><a href="{{.ReceiptURL}}">Download your receipt</a></p>{{end}}
<p>Your membership is now active.</p>
{{end}}`,
	},
	KindMembershipExpired: {
		subject: "Membership Expired",
		body: `{{define "title"}}Your Gym Membership Has Expired{{end}}{{define "body"}}
<p>Your membership expired on {{date .EndDate}}.</p>
{{end}}`,
	},
	KindExpiringSoon: {
		subject: "Membership Expiring Soon",
		body: `{{define "title"}}Your Gym Membership is Expiring Soon{{end}}{{define "body"}}
<p>Your membership will expire in {{.DaysLeft}} {{if eq .DaysLeft 1}}day{{else}}days{{end}} on {{date .EndDate}}.</p>
{{end}}`,
	},
	KindExpiredReengagement: {
		subject: "Your Gym Membership Has Expired - Renew Now!",
		body: `{{define "title"}}Membership Renewal Notice{{end}}{{define "body"}}
<p>We hope you've been enjoying your fitness journey with Gym! We noticed that your membership expired on {{date .EndDate}}.</p>
{{template "details" .}}
<p>To continue accessing our facilities and services, please renew your membership as soon as possible.</p>
{{if .Offers}}<h3>Available Plans</h3>
<ul style="list-style: none; padding: 0;">
{{range .Offers}}<li>{{.PlanName}} Plan - {{inr .PriceINR}}</li>
{{end}}</ul>{{end}}
{{end}}`,
	},
}

var templates = mustParse()

func mustParse() map[Kind]*template.Template {
	out := make(map[Kind]*template.Template, len(specs))
	for kind, s := range specs {
		t := template.New(string(kind)).Funcs(funcs)
		template.Must(t.Parse(layout))
		template.Must(t.Parse(detailsBlock))
		template.Must(t.Parse(s.body))
		out[kind] = t
	}
	return out
}

// Render is pure: the same kind and data always produce the same message.
func Render(kind Kind, data Data) (Message, error) {
	t, ok := templates[kind]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Message{Subject: specs[kind].subject, HTML: buf.String()}, nil
}
