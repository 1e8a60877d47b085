package analysis

import (
	"fmt"
	"strings"
)

func intentSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are an intent recognition system for business inquiries.\n")
	b.WriteString("Analyze the transcribed text and identify the specific intent category.\n\n")
	b.WriteString("Possible intents:\n")
	for i, entry := range Intents {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, entry.Intent, entry.Description)
	}
	b.WriteString("\nRespond with ONLY the intent category (e.g., \"GST_REGISTRATION\") and a brief 1-sentence description of what the user is asking about.")
	return b.String()
}

func intentUserPrompt(text string) string {
	return "Identify the intent in this transcribed text: " + text
}

// resolutionTemplates holds the expert persona used for each intent
var resolutionTemplates = map[Intent]string{
	IntentGSTRegistration: `You are a GST registration expert. Provide detailed step-by-step guidance for GST registration including:
- Required documents and eligibility criteria
- Online registration process on GST portal
- Timeline and fees involved
- Common issues and solutions`,

	IntentGSTCompliance: `You are a GST compliance specialist. Provide comprehensive compliance guidance including:
- Monthly/quarterly filing requirements
- Record keeping obligations
- Compliance deadlines and penalties
- Best practices for maintaining compliance`,

	IntentGSTCalculation: `You are a GST calculation expert. Provide detailed calculation guidance including:
- GST rate applicable to specific goods/services
- Input tax credit calculations
- Reverse charge mechanism
- Examples with step-by-step calculations`,

	IntentLicenseApplication: `You are a business licensing expert. Provide comprehensive license application guidance including:
- Types of licenses required for the business
- Application process and required documents
- Timelines and fees
- Authority contacts and follow-up procedures`,

	IntentLicenseRenewal: `You are a license renewal specialist. Provide detailed renewal guidance including:
- Renewal timelines and advance notice requirements
- Required documents and fees
- Online vs offline renewal processes
- Consequences of delayed renewal`,

	IntentLicenseCompliance: `You are a license compliance expert. Provide comprehensive compliance guidance including:
- Ongoing compliance requirements
- Regular submissions and renewals
- Inspection readiness
- Penalty avoidance strategies`,

	IntentTaxFiling: `You are a tax filing expert. Provide detailed filing guidance including:
- Filing deadlines and procedures
- Required forms and documents
- Online filing process
- Common errors and how to avoid them`,

	IntentBusinessSetup: `You are a business setup consultant. Provide comprehensive setup guidance including:
- Business registration requirements
- Legal structure recommendations
- Required licenses and permits
- Tax registrations needed`,

	IntentDocumentation: `You are a documentation specialist. Provide detailed document guidance including:
- Required documents for specific processes
- Document formats and specifications
- Submission procedures
- Document validity and renewal requirements`,

	IntentOther: `You are a general business consultant. Analyze the query and provide relevant business guidance including:
- Understanding the specific requirement
- Applicable regulations and procedures
- Step-by-step action plan
- Resources and contacts for further assistance`,
}

func resolutionSystemPrompt(intent Intent) string {
	if tmpl, ok := resolutionTemplates[intent]; ok {
		return tmpl
	}
	return resolutionTemplates[IntentOther]
}

func resolutionUserPrompt(intent, content string) string {
	return fmt.Sprintf(`Identified Intent: %s

Original Query: %s

Please provide a detailed, actionable resolution for this query. Include:
1. Immediate steps to take
2. Required documents or information
3. Relevant deadlines or timelines
4. Contact information or resources
5. Potential challenges and solutions

Format your response in a clear, professional manner suitable for business implementation.`, intent, content)
}
