package tasks

// Task names as stored in scheduled_tasks rows
const (
	TaskGenerateFeeRecords  = "generate_fee_records"
	TaskMarkOverdueRecords  = "mark_overdue_records"
	TaskExpireGatewayOrders = "expire_gateway_orders"
)

// DefineTasks registers all available tasks
func DefineTasks() {
	RegisterHandler(TaskGenerateFeeRecords, GenerateFeeRecordsHandler)
	RegisterHandler(TaskMarkOverdueRecords, MarkOverdueRecordsHandler)
	RegisterHandler(TaskExpireGatewayOrders, ExpireGatewayOrdersHandler)
}
