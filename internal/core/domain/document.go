package domain

import (
	"strconv"
	"strings"
	"time"
)

type DocumentType string

const (
	DocumentAadhaar       DocumentType = "aadhaar"
	DocumentPAN           DocumentType = "pan"
	DocumentSalarySlip    DocumentType = "salary_slip"
	DocumentBankStatement DocumentType = "bank_statement"
	DocumentSelfie        DocumentType = "selfie"
)

func ParseDocumentType(raw string) (DocumentType, bool) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case DocumentAadhaar, DocumentPAN, DocumentSalarySlip, DocumentBankStatement, DocumentSelfie:
		return t, true
	default:
		return "", false
	}
}

// IsIdentity reports whether the document establishes identity for the selfie check.
func (t DocumentType) IsIdentity() bool {
	return t == DocumentAadhaar || t == DocumentPAN
}

type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

type OCRStatus string

const (
	OCRStatusOK      OCRStatus = "ok"
	OCRStatusFailed  OCRStatus = "failed"
	OCRStatusSkipped OCRStatus = "skipped"
)

type DocumentArtifact struct {
	ID                string           `json:"id"`
	ApplicationID     string           `json:"application_id"`
	Type              DocumentType     `json:"document_type"`
	Filename          string           `json:"filename"`
	MimeType          string           `json:"mime_type"`
	StoragePath       string           `json:"storage_path"`
	ContentDigest     string           `json:"content_digest"`
	Fingerprint       string           `json:"fingerprint"`
	SizeBytes         int64            `json:"size_bytes"`
	Fields            ExtractedFields  `json:"extracted_fields"`
	OCRStatus         OCRStatus        `json:"ocr_status,omitempty"`
	ValidationStatus  ValidationStatus `json:"validation_status"`
	ValidationMessage string           `json:"validation_message,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

type AadhaarFields struct {
	Name   string `json:"name,omitempty"`
	Number string `json:"number,omitempty"`
	DOB    string `json:"dob,omitempty"`
	Gender string `json:"gender,omitempty"`
}

type PANFields struct {
	Name       string `json:"name,omitempty"`
	Number     string `json:"number,omitempty"`
	FatherName string `json:"father_name,omitempty"`
	DOB        string `json:"dob,omitempty"`
}

type SalarySlipFields struct {
	EmployeeName string `json:"employee_name,omitempty"`
	EmployerName string `json:"employer_name,omitempty"`
	PayMonth     string `json:"pay_month,omitempty"`
	NetSalary    *int64 `json:"net_salary,omitempty"`
}

type BankStatementFields struct {
	AccountHolderName    string `json:"account_holder_name,omitempty"`
	AccountNumber        string `json:"account_number,omitempty"`
	BankName             string `json:"bank_name,omitempty"`
	AverageMonthlyCredit *int64 `json:"average_monthly_credit,omitempty"`
}

// ExtractedFields is a tagged union: at most the member matching the
// document type is set. Selfies carry no fields.
type ExtractedFields struct {
	Aadhaar       *AadhaarFields       `json:"aadhaar,omitempty"`
	PAN           *PANFields           `json:"pan,omitempty"`
	SalarySlip    *SalarySlipFields    `json:"salary_slip,omitempty"`
	BankStatement *BankStatementFields `json:"bank_statement,omitempty"`
}

func (f ExtractedFields) Empty() bool {
	return f.Aadhaar == nil && f.PAN == nil && f.SalarySlip == nil && f.BankStatement == nil
}

// ParseExtractedFields maps a raw OCR field bag onto the typed union. Unknown
// keys are ignored; an empty or nil map yields an empty union.
func ParseExtractedFields(docType DocumentType, raw map[string]string) ExtractedFields {
	if len(raw) == 0 {
		return ExtractedFields{}
	}
	get := func(keys ...string) string {
		for _, key := range keys {
			if v := strings.TrimSpace(raw[key]); v != "" {
				return v
			}
		}
		return ""
	}

	switch docType {
	case DocumentAadhaar:
		return ExtractedFields{Aadhaar: &AadhaarFields{
			Name:   get("name", "full_name"),
			Number: get("aadhaar_number", "number", "id_number"),
			DOB:    get("dob", "date_of_birth"),
			Gender: get("gender"),
		}}
	case DocumentPAN:
		return ExtractedFields{PAN: &PANFields{
			Name:       get("name", "full_name"),
			Number:     get("pan_number", "number", "id_number"),
			FatherName: get("father_name"),
			DOB:        get("dob", "date_of_birth"),
		}}
	case DocumentSalarySlip:
		return ExtractedFields{SalarySlip: &SalarySlipFields{
			EmployeeName: get("employee_name", "name"),
			EmployerName: get("employer_name", "employer", "company"),
			PayMonth:     get("pay_month", "month"),
			NetSalary:    parseAmount(get("net_salary", "salary", "net_pay")),
		}}
	case DocumentBankStatement:
		return ExtractedFields{BankStatement: &BankStatementFields{
			AccountHolderName:    get("account_holder_name", "name"),
			AccountNumber:        get("account_number"),
			BankName:             get("bank_name"),
			AverageMonthlyCredit: parseAmount(get("average_monthly_credit", "avg_monthly_credit")),
		}}
	default:
		return ExtractedFields{}
	}
}

// parseAmount accepts "75,000", "Rs. 75000.00" and similar OCR renderings.
func parseAmount(raw string) *int64 {
	if raw == "" {
		return nil
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return nil
	}
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
