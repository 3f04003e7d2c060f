package domain

import "time"

// Customer представляет покупателя. Для размещения заказа ядру важен
// только факт существования записи; остальные поля нужны API и витрине.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
