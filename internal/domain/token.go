package domain

import "time"

// PurchaseToken is one purchased tour unit. Tokens are created in a batch
// when a checkout starts and are provisional until the remote debit is
// confirmed; a failed debit deletes the batch. There is no update-in-place.
type PurchaseToken struct {
	ID        int64     `db:"id" json:"id"`
	Token     string    `db:"token" json:"token"`
	TourID    string    `db:"tour_id" json:"tour_id"`
	TouristID string    `db:"tourist_id" json:"tourist_id"`
	TourName  string    `db:"tour_name" json:"tour_name"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TokenIDs extracts the identifiers of a token batch.
func TokenIDs(tokens []*PurchaseToken) []int64 {
	ids := make([]int64, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return ids
}
