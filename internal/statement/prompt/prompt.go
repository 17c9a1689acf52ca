// Package prompt composes the completion requests sent to the model for
// billing statements and payment confirmations.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"billwatch-backend/internal/statement/domain"
	"billwatch-backend/pkg/ai"
)

// MaxEmailChars bounds how much of an email body is sent to the model
const MaxEmailChars = 4096

const systemInstruction = "You extract payment information from bank emails. Reply with a single JSON object and nothing else."

// PrepareEmailText truncates text to MaxEmailChars characters and lower-cases it.
// Truncation happens first so the bound applies to the original text.
func PrepareEmailText(text string) string {
	runes := []rune(text)
	if len(runes) > MaxEmailChars {
		runes = runes[:MaxEmailChars]
	}
	return strings.ToLower(string(runes))
}

// BuildDue composes the request that merges the raw email text and the
// heuristic summary into one canonical payment record
func BuildDue(emailText string, summary domain.HeuristicSummary) []ai.Message {
	if summary == nil {
		summary = domain.HeuristicSummary{}
	}
	// encoding/json sorts map keys, which keeps the prompt deterministic
	summaryJSON, _ := json.Marshal(summary)

	content := fmt.Sprintf(`You are given two inputs about one credit card statement.

EMAIL TEXT:
%s

HEURISTIC SUMMARY:
%s

INSTRUCTIONS:
1. From EMAIL TEXT extract only the bank name and the card holder name.
2. From HEURISTIC SUMMARY extract only the due date and the total amount due.
3. Merge both into one JSON object with exactly these keys:
   "Due Date", "Total Amount Due", "Bank Name", "Card Holder Name".
4. "Due Date" must use the format DD-MM-YYYY.
5. "Total Amount Due" must use the format XXXX.XX without currency symbols.
6. Every value must be a JSON string.

Output format:
{"Due Date": "DD-MM-YYYY", "Total Amount Due": "XXXX.XX", "Bank Name": "...", "Card Holder Name": "..."}`,
		emailText, string(summaryJSON))

	return []ai.Message{
		{Role: ai.RoleSystem, Content: systemInstruction},
		{Role: ai.RoleUser, Content: content},
	}
}

// BuildSuccess composes the request that asks for the paid amount of a
// payment confirmation email
func BuildSuccess(emailText string) []ai.Message {
	content := fmt.Sprintf(`The following email confirms a credit card payment.

EMAIL TEXT:
%s

INSTRUCTIONS:
1. Extract only the amount that was paid.
2. Use the format XXXX.XX without currency symbols, as a JSON string.

Output format:
{"Total Amount Due": "XXXX.XX"}`, emailText)

	return []ai.Message{
		{Role: ai.RoleSystem, Content: systemInstruction},
		{Role: ai.RoleUser, Content: content},
	}
}
