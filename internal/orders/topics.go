package orders

import "strconv"

// TopicOrdersChanged carries every order and menu change made through this
// service. All instances consume it to refresh their snapshot.
const TopicOrdersChanged = "staff.orders.changed"

// Partition key = order id, so events of one order keep their order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
