package classify

import (
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are a logistics assistant. Respond in this JSON format:
{
  "intent": "request_invoice|ask_ctn_number|ask_payment_methods|ask_pricing|general_question|payment_receipt|other|ask_payment_status",
  "bl_number": "<BL number if present from context, else null>",
  "answer": "<Response based on intent and context>"
}
- For 'request_invoice', 'ask_ctn_number', 'ask_payment_status', or 'payment_receipt' with invalid BLs %[2]s, return 'Sorry, the BL number(s) %[2]s could not be found in our system. Please check and try again.'
- For 'general_question', match the query against the general enquiry phrases below and answer from them when a partial match is found (e.g., key terms like "ctn" and "processing" for "ctn processing time").
- If no sufficient match, return '%[4]s'
- For other intents, provide a relevant response based on the context.
- Context: Valid BLs are %[1]s, invalid BLs are %[2]s. Available general enquiry phrases are: %[3]s.`

// SystemPrompt renders the classification instructions with the identifier
// context for this turn. Empty lists render as "none".
func SystemPrompt(valid, invalid, phrases []string) string {
	return fmt.Sprintf(systemPromptTemplate, joinOrNone(valid), joinOrNone(invalid), strings.Join(phrases, ", "), DefaultAnswer)
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
