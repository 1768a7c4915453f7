package storage

import "fmt"

// Pebble key schema. One JSON record per user per namespace, plus a
// single global record holding the full stats index.
const (
	prefixAccount      = "acct:"
	prefixTransactions = "txns:"
	prefixDrafts       = "drafts:"
	statsKey           = "stats"
)

// accountKey returns the key for a user's account record.
// Format: "acct:{userID}"
func accountKey(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, userID))
}

// transactionsKey returns the key for a user's committed-order ledger.
// Format: "txns:{userID}"
func transactionsKey(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixTransactions, userID))
}

// draftsKey returns the key for a user's draft ledger.
// Format: "drafts:{userID}"
func draftsKey(userID string) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixDrafts, userID))
}
