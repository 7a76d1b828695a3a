package market

type LineStatus string

const (
	LineActive  LineStatus = "ACTIVE"
	LineSoldOut LineStatus = "SOLDOUT"
	LineRemoved LineStatus = "REMOVED"
)

// REMOVED is terminal; ACTIVE and SOLDOUT flip back and forth as stock
// drains and returns.
var validLineNext = map[LineStatus]map[LineStatus]bool{
	LineActive:  {LineSoldOut: true, LineRemoved: true},
	LineSoldOut: {LineActive: true, LineRemoved: true},
	LineRemoved: {},
}

func CanTransitionLine(from, to LineStatus) bool {
	return validLineNext[from][to]
}

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderPicked    OrderStatus = "PICKED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

var validOrderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPlaced:    {OrderPicked: true, OrderCancelled: true},
	OrderPicked:    {OrderDelivered: true},
	OrderDelivered: {},
	OrderCancelled: {},
}

func CanTransitionOrder(from, to OrderStatus) bool {
	return validOrderNext[from][to]
}
