package models

import id "fedlearn/pkg/domain"

// KeyConfidentialityNote states what per-user keys do and do not protect.
const KeyConfidentialityNote = "Keys are derived from the project code, the user id and a server salt. " +
	"This isolates users' datasets from each other but does not keep data confidential " +
	"from anyone who can read both the dataset store and the salt."

// EncryptionStatus reports how a project's datasets are protected.
type EncryptionStatus struct {
	ProjectID      id.ProjectID `json:"project_id"`
	Algorithm      string       `json:"algorithm"`
	KeyDerivation  string       `json:"key_derivation"`
	EncryptedCount int          `json:"encrypted_count"`
	TotalCount     int          `json:"total_count"`
	EncryptionRate float64      `json:"encryption_rate"`
	KeyFingerprint string       `json:"key_fingerprint"`
	Limitations    string       `json:"limitations"`
}

// Rate returns the encrypted share as a percentage, 0 for an empty project.
func Rate(encrypted, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(encrypted) / float64(total) * 100
}
