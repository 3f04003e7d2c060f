package domain

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// FindByID возвращает клиента или ErrCustomerNotFound, если его нет.
	FindByID(id string) (Customer, error)
	// Create сохраняет нового клиента.
	Create(customer Customer) error
}

// ProductRepository описывает требования к хранилищу остатков.
type ProductRepository interface {
	// FindAllBySKUs возвращает записи остатков для перечисленных SKU.
	// Отсутствующие SKU молча опускаются из результата; сопоставление
	// с запросом — обязанность вызывающего.
	FindAllBySKUs(skus []string) ([]StockEntry, error)
	// UpdateQuantities применяет новые остатки как авторитетные значения.
	// Запись применяется только если её Version совпадает с текущей;
	// при любом расхождении ни одна запись не применяется и возвращается
	// ErrStockConflict.
	UpdateQuantities(entries []StockEntry) error
	// Upsert создаёт или перезаписывает запись остатка (админ/seed-операция).
	Upsert(entry StockEntry) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями и ставит переданные
	// события в outbox атомарно: либо фиксируется и заказ, и события, либо
	// ничего. Возвращает ErrOrderAlreadyExists, если запись с таким ID уже
	// существует.
	Create(order Order, events []OutboxMessage) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
}
