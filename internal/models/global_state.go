package models

type GlobalState struct {
	ID           int `gorm:"primaryKey"`
	LastUpdateID int
}

type Secret struct {
	Name  string `gorm:"primaryKey"`
	Value []byte
}
