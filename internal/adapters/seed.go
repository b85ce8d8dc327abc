package adapters

import (
	"encoding/json"
	"fmt"
	"os"
)

// Seed is a dump of the back office tables. Rows use the field names of the
// legacy exports.
type Seed struct {
	Receipts      []ReceiptRow      `json:"ricevute"`
	Expenses      []ExpenseRow      `json:"spese"`
	ThirdParty    []ThirdPartyRow   `json:"ricevuteEnti"`
	Subscriptions []SubscriptionRow `json:"abbonamenti"`
	Activities    []string          `json:"attivita"`
}

// LoadSeed reads a seed file. A missing file yields an empty seed and ok false.
func LoadSeed(path string) (Seed, bool, error) {
	var seed Seed
	if path == "" {
		return seed, false, nil
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return seed, false, nil
	}
	if err != nil {
		return seed, false, fmt.Errorf("read seed file: %w", err)
	}
	if err := json.Unmarshal(b, &seed); err != nil {
		return seed, false, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return seed, true, nil
}
