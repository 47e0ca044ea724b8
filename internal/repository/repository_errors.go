package repository

import "errors"

var (
	ErrCartNotFound   = errors.New("shopping cart not found")
	ErrItemNotFound   = errors.New("order item not found")
	ErrDuplicateToken = errors.New("tourist already holds a token for this tour")
)
