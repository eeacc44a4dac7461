package receipt

import (
	"strings"
	"time"

	membershipdomain "github.com/botio91514/gym-backend/internal/domain/membership"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const receiptDate = "02 Jan 2006"

var amountPrinter = message.NewPrinter(language.MustParse("en-IN"))

func render(member membershipdomain.Member, issuedAt time.Time) (*fpdf.Fpdf, error) {
	terms := member.Plan.Terms()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Gym Membership Receipt", true)
	pdf.SetCreator("gym-backend", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 14, "Gym Membership Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Date: "+issuedAt.Format(receiptDate), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 7, "Receipt for member: "+member.ID, "", 1, "R", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Name", member.Name},
		{"Email", member.Email},
		{"Phone", member.Phone},
		{"Plan", member.Plan.DisplayName()},
		{"Start Date", member.StartDate.Format(receiptDate)},
		{"End Date", member.EndDate.Format(receiptDate)},
		{"Payment Method", titleCase(string(member.PaymentMethod))},
		{"Payment Status", "Confirmed"},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 9, row[0]+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 9, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(50, 10, "Amount Paid:", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, amountPrinter.Sprintf("INR %d", terms.PriceINR), "T", 1, "L", false, 0, "")

	pdf.Ln(16)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Thank you for choosing Gym!", "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "This is a computer-generated receipt. No signature required.", "", 1, "C", false, 0, "")

	return pdf, pdf.Error()
}

func titleCase(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
