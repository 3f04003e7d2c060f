package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("amount_minor must be non-negative")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match items sum")
	// Ошибка пустого SKU в запрошенной позиции.
	ErrLineSKURequired = errors.New("line sku is required")
	// Ошибка некорректного количества в запрошенной позиции.
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// ErrCustomerNotFound возвращается, если клиент не найден в хранилище.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInvalidProducts возвращается, если ни один запрошенный товар не существует.
	ErrInvalidProducts = errors.New("requested products are invalid")
	// ErrProductNotFound возвращается, если конкретный товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock — запрошенное количество превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStockConflict сигнализирует о проигранной гонке за остаток:
	// остаток изменился между чтением и фиксацией списания.
	ErrStockConflict = errors.New("stock version conflict")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists возвращается при попытке сохранить заказ с занятым ID.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ProductError уточняет, какой именно товар вызвал ошибку размещения.
type ProductError struct {
	SKU string
	Err error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("%s: product %s", e.Err.Error(), e.SKU)
}

// Unwrap позволяет сопоставлять ProductError с сентинелами через errors.Is.
func (e *ProductError) Unwrap() error {
	return e.Err
}

// NewInsufficientStockError создаёт ошибку нехватки остатка с указанием товара.
func NewInsufficientStockError(sku string) error {
	return &ProductError{SKU: sku, Err: ErrInsufficientStock}
}

// NewProductNotFoundError создаёт ошибку отсутствующего товара с указанием SKU.
func NewProductNotFoundError(sku string) error {
	return &ProductError{SKU: sku, Err: ErrProductNotFound}
}

// IsStockConflict проверяет, является ли ошибка конфликтом версий остатка.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockConflict)
}
