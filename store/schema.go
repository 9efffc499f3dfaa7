package store

import "fmt"

// DynamoDB schema constants for single-table design
const (
	// Table attributes
	AttrPK          = "PK"
	AttrSK          = "SK"
	AttrEntityType  = "entity_type"
	AttrBody        = "body"
	AttrGeneratedAt = "generated_at"
	AttrTTL         = "ttl"

	// Entity types
	EntityTypeStepRecord    = "StepRecord"
	EntityTypeFinalFunction = "FinalFunction"
	EntityTypeDocument      = "Document"
)

// Key builders for single-table design. All items of one session share a
// partition so Clear is a single Query plus deletes.

// sessionPK: PK=SESSION#{sessionID}
func sessionPK(sessionID string) string {
	return fmt.Sprintf("SESSION#%s", sessionID)
}

// Step record keys: SK=STEP#{index}, zero-padded so SK order is step order
func stepRecordSK(stepIndex int) string {
	return fmt.Sprintf("STEP#%05d", stepIndex)
}

// Final function key: SK=FINAL
func finalFunctionSK() string {
	return "FINAL"
}

// Rendered document key: SK=DOCUMENT
func documentSK() string {
	return "DOCUMENT"
}

// Prefix for range queries
func stepPrefix() string {
	return "STEP#"
}
