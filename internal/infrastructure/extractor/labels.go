package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
)

var (
	panPattern     = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)
	aadhaarPattern = regexp.MustCompile(`\b[2-9][0-9]{3}\s?[0-9]{4}\s?[0-9]{4}\b`)
	labelSeparator = regexp.MustCompile(`\s*(?::|\t|\s-\s|\s{2,})\s*`)
)

var commonLabels = map[string]string{
	"dob":           "dob",
	"date of birth": "dob",
	"year of birth": "dob",
	"gender":        "gender",
	"sex":           "gender",
}

var labelsByType = map[domain.DocumentType]map[string]string{
	domain.DocumentAadhaar: {
		"name":           "name",
		"full name":      "name",
		"aadhaar":        "aadhaar_number",
		"aadhaar no":     "aadhaar_number",
		"aadhaar number": "aadhaar_number",
		"uid":            "aadhaar_number",
	},
	domain.DocumentPAN: {
		"name":                     "name",
		"full name":                "name",
		"father s name":            "father_name",
		"fathers name":             "father_name",
		"father name":              "father_name",
		"pan":                      "pan_number",
		"pan no":                   "pan_number",
		"pan number":               "pan_number",
		"permanent account number": "pan_number",
	},
	domain.DocumentSalarySlip: {
		"name":          "employee_name",
		"employee":      "employee_name",
		"employee name": "employee_name",
		"employer":      "employer_name",
		"employer name": "employer_name",
		"company":       "employer_name",
		"company name":  "employer_name",
		"pay month":     "pay_month",
		"pay period":    "pay_month",
		"salary month":  "pay_month",
		"month":         "pay_month",
		"net pay":       "net_salary",
		"net salary":    "net_salary",
		"take home":     "net_salary",
		"net amount":    "net_salary",
	},
	domain.DocumentBankStatement: {
		"name":                   "account_holder_name",
		"account holder":         "account_holder_name",
		"account holder name":    "account_holder_name",
		"customer name":          "account_holder_name",
		"account number":         "account_number",
		"account no":             "account_number",
		"a c no":                 "account_number",
		"bank":                   "bank_name",
		"bank name":              "bank_name",
		"average monthly credit": "average_monthly_credit",
		"avg monthly credit":     "average_monthly_credit",
	},
}

// ParseLabeledText turns "Label: value" lines into the raw field bag
// understood by domain.ParseExtractedFields. Identity numbers are also
// picked up unlabelled when they match their national format.
func ParseLabeledText(docType domain.DocumentType, text string) map[string]string {
	fields := make(map[string]string)
	labels := labelsByType[docType]
	if labels == nil {
		return fields
	}

	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		key, known := labels[label]
		if !known {
			key, known = commonLabels[label]
		}
		if !known {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}

	switch docType {
	case domain.DocumentPAN:
		if _, ok := fields["pan_number"]; !ok {
			if match := panPattern.FindString(strings.ToUpper(text)); match != "" {
				fields["pan_number"] = match
			}
		}
	case domain.DocumentAadhaar:
		if _, ok := fields["aadhaar_number"]; !ok {
			if match := aadhaarPattern.FindString(text); match != "" {
				fields["aadhaar_number"] = match
			}
		}
	}
	return fields
}

// NormalizeLabel lowercases and collapses punctuation so "A/C No." and
// "a c no" compare equal.
func NormalizeLabel(raw string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

func splitLabel(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", "", false
	}
	loc := labelSeparator.FindStringIndex(line)
	if loc == nil || loc[0] == 0 {
		return "", "", false
	}
	label := NormalizeLabel(line[:loc[0]])
	value := strings.TrimSpace(line[loc[1]:])
	if label == "" || value == "" {
		return "", "", false
	}
	return label, value, true
}
