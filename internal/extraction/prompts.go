package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

const enrichSystemPrompt = "You clean up bank statement transactions for bookkeeping import. " +
	"Respond with raw JSON only. Do NOT wrap the response in code fences or add commentary."

// promptRow is the per-transaction payload sent in full mode.
type promptRow struct {
	Index       int            `json:"index"`
	Date        string         `json:"date"`
	Description string         `json:"description"`
	Amount      float64        `json:"amount"`
	Type        string         `json:"type"`
	Columns     *ProvenanceMap `json:"columns"`
}

func contextInstruction(pctx ProcessingContext) string {
	switch pctx {
	case ContextRevenue:
		return "These transactions are being imported as REVENUE. Focus \"source\" on who paid " +
			"(customer, employer, platform) and use income categories."
	case ContextExpense:
		return "These transactions are being imported as EXPENSES. Focus \"category\" on what the " +
			"money was spent on and \"source\" on the merchant."
	default:
		return "Classify each transaction with a general personal-finance category."
	}
}

// BuildFullPrompt asks the provider to return one enriched object per
// candidate, in input order.
func BuildFullPrompt(candidates []CanonicalTransaction, pctx ProcessingContext) (Prompt, error) {
	rows := make([]promptRow, len(candidates))
	for i, c := range candidates {
		rows[i] = promptRow{
			Index:       i,
			Date:        c.Date,
			Description: c.Description,
			Amount:      c.Amount,
			Type:        string(c.Type),
			Columns:     c.PreservedColumns,
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal candidates: %w", err)
	}

	var b strings.Builder
	b.WriteString(contextInstruction(pctx))
	b.WriteString("\n\nFor every input transaction return an object with these fields:\n")
	b.WriteString("- \"date\": ISO date YYYY-MM-DD\n")
	b.WriteString("- \"description\": a clean human-readable description\n")
	b.WriteString("- \"amount\": a JSON number, negative for money leaving the account\n")
	b.WriteString("- \"type\": \"debit\" or \"credit\"\n")
	b.WriteString("- \"category\" and \"source\": short strings\n")
	b.WriteString("- \"categorySuggestion\" and \"sourceSuggestion\": {\"value\": string, \"confidence\": number between 0 and 1}\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Return exactly %d objects in the same order as the input.\n", len(candidates))
	b.WriteString("- If a value cannot be determined, omit the field rather than guessing.\n")
	b.WriteString("- Output must begin with \"[\" and end with \"]\".\n\n")
	b.WriteString("Transactions:\n")
	b.Write(payload)

	return Prompt{System: enrichSystemPrompt, User: b.String()}, nil
}

// BuildSamplePrompt sends column headers and a few rows and asks which
// column feeds each canonical field.
func BuildSamplePrompt(headers []string, sample []*ProvenanceMap, pctx ProcessingContext) (Prompt, error) {
	hdr, err := json.Marshal(headers)
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal headers: %w", err)
	}
	rows, err := json.Marshal(sample)
	if err != nil {
		return Prompt{}, fmt.Errorf("marshal sample rows: %w", err)
	}

	var b strings.Builder
	b.WriteString(contextInstruction(pctx))
	b.WriteString("\n\nBelow are the column headers and the first rows of a bank statement. ")
	b.WriteString("Identify which column holds each field. Return a single JSON object:\n")
	b.WriteString(`{"date": "<column>", "description": "<column>", "amount": "<column>", "debit": "<column>", "credit": "<column>", "type": "<column>"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Use the header names exactly as given.\n")
	b.WriteString("- Use an empty string for fields the statement does not have.\n")
	b.WriteString("- Output must begin with \"{\" and end with \"}\".\n\n")
	b.WriteString("Headers:\n")
	b.Write(hdr)
	b.WriteString("\n\nRows:\n")
	b.Write(rows)

	return Prompt{System: enrichSystemPrompt, User: b.String()}, nil
}
