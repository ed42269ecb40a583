package cache

import "fmt"

// Key namespaces. Mutations invalidate a whole namespace with InvalidatePrefix.
const (
	PrefixTable     = "table:"
	PrefixOrder     = "order:"
	PrefixOrderItem = "orderitem:"
	PrefixMenu      = "menu:"
)

const (
	KeyAllTables          = PrefixTable + "all"
	KeyAllOrders          = PrefixOrder + "all"
	KeyAllMenuItems       = PrefixMenu + "all"
	KeyAvailableMenuItems = PrefixMenu + "available"
)

func TableByID(id int64) string { return fmt.Sprintf("%sid:%d", PrefixTable, id) }

func OrderByID(id int64) string { return fmt.Sprintf("%sid:%d", PrefixOrder, id) }

func OrdersByTable(tableNumber int) string {
	return fmt.Sprintf("%stable:%d", PrefixOrder, tableNumber)
}

func OrderItemByID(id int64) string { return fmt.Sprintf("%sid:%d", PrefixOrderItem, id) }

func OrderItemsByOrder(orderID int64) string {
	return fmt.Sprintf("%sorder:%d", PrefixOrderItem, orderID)
}

func MenuItemByID(id int64) string { return fmt.Sprintf("%sid:%d", PrefixMenu, id) }

func MenuItemsByCategory(category string) string {
	return fmt.Sprintf("%scategory:%s", PrefixMenu, category)
}
