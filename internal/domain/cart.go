package domain

type ShoppingCart struct {
	ID         int64       `db:"id" json:"id"`
	TouristID  string      `db:"tourist_id" json:"tourist_id"`
	TotalPrice float64     `db:"total_price" json:"total_price"`
	Items      []OrderItem `json:"items"`
}

type OrderItem struct {
	ID       int64   `db:"id" json:"id"`
	CartID   int64   `db:"cart_id" json:"cart_id"`
	TourID   string  `db:"tour_id" json:"tour_id"`
	TourName string  `db:"tour_name" json:"tour_name"`
	Price    float64 `db:"price" json:"price"`
}
