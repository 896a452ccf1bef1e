package pdf

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type DeletionCertificate struct {
	CertificateID  string
	RequestID      string
	RequesterName  string
	RequesterEmail string
	CompletedAt    time.Time
	Scope          []string
	RetentionNote  string
}

// WriteDeletionCertificate renders an erasure certificate as a one-page PDF.
func WriteDeletionCertificate(w io.Writer, cert DeletionCertificate) error {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Data Deletion Certificate "+cert.CertificateID, true)
	doc.SetCreator("ConsentHub", true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.Cell(0, 10, "Certificate of Data Erasure")
	doc.Ln(14)

	doc.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		doc.SetFont("Helvetica", "B", 11)
		doc.Cell(50, 7, label)
		doc.SetFont("Helvetica", "", 11)
		doc.Cell(0, 7, value)
		doc.Ln(7)
	}
	line("Certificate:", cert.CertificateID)
	line("Request:", cert.RequestID)
	line("Data subject:", cert.RequesterName)
	line("Contact:", cert.RequesterEmail)
	line("Completed:", cert.CompletedAt.UTC().Format(time.RFC3339))
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 11)
	doc.Cell(0, 7, "Erased data categories")
	doc.Ln(7)
	doc.SetFont("Helvetica", "", 11)
	for _, scope := range cert.Scope {
		doc.Cell(0, 6, "- "+strings.ReplaceAll(scope, "_", " "))
		doc.Ln(6)
	}

	if cert.RetentionNote != "" {
		doc.Ln(4)
		doc.MultiCell(0, 6, cert.RetentionNote, "", "L", false)
	}

	doc.Ln(6)
	doc.SetFont("Helvetica", "I", 9)
	doc.Cell(0, 6, fmt.Sprintf("Issued %s", time.Now().UTC().Format("2006-01-02")))

	return doc.Output(w)
}
