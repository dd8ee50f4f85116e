package domain

// User is a registered catalog user.
type User struct {
	Record
	Username      string `json:"username" validate:"required,min=3,max=64"`
	FavoriteGenre string `json:"favorite_genre" validate:"required"`
}
