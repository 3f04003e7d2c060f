package domain

import "time"

// StockEntry — цена и остаток одного товара на момент чтения.
type StockEntry struct {
	// SKU — внешний идентификатор товара.
	SKU string
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Quantity — доступный остаток; инвариант: всегда >= 0.
	Quantity int32
	// Version растёт при каждом изменении остатка и используется
	// для compare-and-swap при фиксации списания.
	Version int64
	// UpdatedAt фиксирует момент последнего изменения остатка.
	UpdatedAt time.Time
}

// LineRequest — одна запрошенная позиция заказа, невалидированный ввод клиента.
type LineRequest struct {
	SKU string
	Qty int32
}

// Validate проверяет, пригодна ли позиция для размещения.
func (l LineRequest) Validate() []error {
	var errs []error

	if l.SKU == "" {
		errs = append(errs, ErrLineSKURequired)
	}
	if l.Qty <= 0 {
		errs = append(errs, ErrLineQtyInvalid)
	}

	return errs
}
