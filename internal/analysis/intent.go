package analysis

import (
	"strings"
	"unicode"
)

// Intent is the business category of an inquiry
type Intent string

const (
	IntentGSTRegistration    Intent = "GST_REGISTRATION"
	IntentGSTCompliance      Intent = "GST_COMPLIANCE"
	IntentGSTCalculation     Intent = "GST_CALCULATION"
	IntentLicenseApplication Intent = "LICENSE_APPLICATION"
	IntentLicenseRenewal     Intent = "LICENSE_RENEWAL"
	IntentLicenseCompliance  Intent = "LICENSE_COMPLIANCE"
	IntentTaxFiling          Intent = "TAX_FILING"
	IntentBusinessSetup      Intent = "BUSINESS_SETUP"
	IntentDocumentation      Intent = "DOCUMENTATION"
	IntentOther              Intent = "OTHER"
)

// Intents lists every intent with the description shown to the model
var Intents = []struct {
	Intent      Intent
	Description string
}{
	{IntentGSTRegistration, "Questions about GST registration process"},
	{IntentGSTCompliance, "GST compliance issues or requirements"},
	{IntentGSTCalculation, "GST calculation or tax amount queries"},
	{IntentLicenseApplication, "License application processes"},
	{IntentLicenseRenewal, "License renewal or validity issues"},
	{IntentLicenseCompliance, "License compliance requirements"},
	{IntentTaxFiling, "Tax filing procedures or deadlines"},
	{IntentBusinessSetup, "General business setup queries"},
	{IntentDocumentation, "Document requirements or submission"},
	{IntentOther, "Any other business-related query"},
}

func (i Intent) String() string {
	return string(i)
}

// Known reports whether i is one of the enumerated intents
func (i Intent) Known() bool {
	for _, entry := range Intents {
		if entry.Intent == i {
			return true
		}
	}
	return false
}

// ParseIntent extracts the intent label from a model reply such as
// "GST_REGISTRATION - The user asks how to register". Replies that do not
// start with a known label map to IntentOther.
func ParseIntent(raw string) Intent {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return IntentOther
	}

	label := strings.TrimFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r) && r != '_'
	})
	intent := Intent(strings.ToUpper(label))
	if !intent.Known() {
		return IntentOther
	}
	return intent
}
