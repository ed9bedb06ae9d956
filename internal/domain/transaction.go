package domain

// Transaction is one imported bank transaction owned by a single user.
// Dates are kept as the raw strings produced by mapping resolution; source
// layouts differ per institution and the importer does not reinterpret them.
// Amount is always expressed in the base currency after import.
type Transaction struct {
	ID               int64   `json:"id"`
	Username         string  `json:"username"`
	Account          string  `json:"account"`
	Date             string  `json:"date"`
	PostDate         string  `json:"post_date"`
	Category         string  `json:"category"` // "" means uncategorized
	OriginalCategory string  `json:"original_category"`
	MerchantName     string  `json:"merchant_name"`
	Description      string  `json:"description"`
	Currency         string  `json:"currency"`
	Amount           float64 `json:"amount"`
}

// EqualityKey is the tuple used by deduplication. ID is excluded: two rows
// that agree on every other field are duplicates regardless of insert order.
type EqualityKey struct {
	Account          string
	Date             string
	PostDate         string
	Category         string
	OriginalCategory string
	MerchantName     string
	Description      string
	Currency         string
	Amount           float64
}

// Key returns the deduplication key for the transaction.
func (t *Transaction) Key() EqualityKey {
	return EqualityKey{
		Account:          t.Account,
		Date:             t.Date,
		PostDate:         t.PostDate,
		Category:         t.Category,
		OriginalCategory: t.OriginalCategory,
		MerchantName:     t.MerchantName,
		Description:      t.Description,
		Currency:         t.Currency,
		Amount:           t.Amount,
	}
}

// CategoryRule maps the identifying triple of a transaction to a target
// category. Rules are append-only; the resolver picks the most recent rule
// when several share a triple.
type CategoryRule struct {
	ID               int64  `json:"id"`
	OriginalCategory string `json:"original_category"`
	MerchantName     string `json:"merchant_name"`
	Description      string `json:"description"`
	TargetCategory   string `json:"target_category"`
}

// User owns transactions. Authentication itself happens outside the core;
// the row exists so the schema round-trips through snapshots.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	Email        string `json:"email"`
	Token        string `json:"token"`
}
