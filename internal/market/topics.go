package market

const (
	TopicSupplyApproved = "market.supply.approved"
	TopicStockLineAdded = "market.stock.line_added"
	TopicStockDepleted  = "market.stock.depleted"
	TopicOrderPlaced    = "market.order.placed"
	TopicOrderCancelled = "market.order.cancelled"
)

// Partition key = aggregate id (stock document or order), so events of one
// aggregate keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
