package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bankflow/internal/dataset"
	"github.com/dvloznov/bankflow/internal/domain"
)

// buildAnomalyPrompt serializes one transaction row into the classification
// prompt. The response format it asks for is what ParseVerdict expects.
func buildAnomalyPrompt(row dataset.Row) string {
	var b strings.Builder

	b.WriteString("You are a banking fraud detection expert. Analyze the following transaction for anomalies or suspicious patterns.\n\n")
	b.WriteString("Transaction Details:\n")
	fmt.Fprintf(&b, "- Transaction ID: %s\n", fieldOrNA(row, domain.ColTransactionID))
	fmt.Fprintf(&b, "- Customer ID: %s\n", fieldOrNA(row, domain.ColCustomerID))
	fmt.Fprintf(&b, "- Amount: %s %s\n", fieldOrNA(row, domain.ColAmount), currencyOrUSD(row))
	fmt.Fprintf(&b, "- Balance: %s\n", fieldOrNA(row, domain.ColBalance))
	fmt.Fprintf(&b, "- Date: %s\n", dateOrNA(row))
	fmt.Fprintf(&b, "- Type: %s\n", fieldOrNA(row, domain.ColTransactionType))
	fmt.Fprintf(&b, "- Status: %s\n", fieldOrNA(row, domain.ColStatus))
	fmt.Fprintf(&b, "- Description: %s\n", fieldOrNA(row, domain.ColDescription))

	b.WriteString(`
Analyze this transaction for the following types of anomalies:
1. Negative balance with completed status
2. Suspicious amount patterns (very high or very low)
3. Invalid date/time inconsistencies
4. Status mismatches with transaction type
5. Semantic inconsistencies in description vs. amount/type

Respond in the following format:
IS_ANOMALY: [YES/NO]
CONFIDENCE: [0.0-1.0]
ANOMALY_TYPE: [type if anomaly detected]
SEVERITY: [LOW/MEDIUM/HIGH/CRITICAL]
EXPLANATION: [Brief explanation]
`)

	return b.String()
}

func fieldOrNA(row dataset.Row, col string) string {
	s, ok := dataset.AsString(row[col])
	if !ok || s == "" {
		return "N/A"
	}
	return s
}

func currencyOrUSD(row dataset.Row) string {
	s, ok := dataset.AsString(row[domain.ColCurrency])
	if !ok || s == "" {
		return "USD"
	}
	return s
}

func dateOrNA(row dataset.Row) string {
	if t, ok := dataset.AsTime(row[domain.ColTransactionDate]); ok {
		return t.Format(time.RFC3339)
	}
	return fieldOrNA(row, domain.ColTransactionDate)
}
