package tools

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"deskagent/internal/domain"
)

// Built-in tool names. The registry is validated against this set at
// construction so dispatch never resolves an unexpected name.
const (
	ToolGetOrder     = "get_order"
	ToolGetProduct   = "get_product"
	ToolCreateTicket = "create_ticket"
	ToolSendEmail    = "send_email"
)

// backendLatency simulates the round trip to the external order,
// product and ticketing backends.
const backendLatency = 100 * time.Millisecond

type orderRecord struct {
	OrderID   string
	UserID    string
	Status    string
	ProductID string
}

type productRecord struct {
	Name  string
	Stock int
}

// Sample catalogs standing in for the external order/product backends.
var (
	sampleOrders = map[string]orderRecord{
		"A123": {OrderID: "A123", UserID: "u001", Status: "Out for Delivery", ProductID: "P001"},
		"B456": {OrderID: "B456", UserID: "u002", Status: "Delivered", ProductID: "P002"},
	}

	sampleProducts = map[string]productRecord{
		"P001": {Name: "RoadRunner Running Shoes", Stock: 12},
		"P002": {Name: "TrailBlaze Boots", Stock: 0},
	}
)

// NewBuiltinRegistry builds the fixed tool set for the support agent.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(&Tool{
		Name:        ToolGetOrder,
		Description: "Fetch an order by ID",
		Execute:     getOrder,
	})
	r.MustRegister(&Tool{
		Name:        ToolGetProduct,
		Description: "Fetch a product by ID",
		Execute:     getProduct,
	})
	r.MustRegister(&Tool{
		Name:        ToolCreateTicket,
		Description: "Create a support ticket",
		Execute:     createTicket,
	})
	r.MustRegister(&Tool{
		Name:        ToolSendEmail,
		Description: "Send an email",
		Execute:     sendEmail,
	})
	return r
}

func getOrder(ctx context.Context, args map[string]any) map[string]any {
	waitBackend(ctx)

	orderID, ok := stringArg(args, "order_id")
	if !ok {
		return map[string]any{"error": "missing_argument", "argument": "order_id"}
	}

	order, found := sampleOrders[orderID]
	if !found {
		return map[string]any{"error": "not_found", "order_id": orderID}
	}
	return map[string]any{
		"order_id":   order.OrderID,
		"user_id":    order.UserID,
		"status":     order.Status,
		"product_id": order.ProductID,
	}
}

func getProduct(ctx context.Context, args map[string]any) map[string]any {
	waitBackend(ctx)

	productID, ok := stringArg(args, "product_id")
	if !ok {
		return map[string]any{"error": "missing_argument", "argument": "product_id"}
	}

	product, found := sampleProducts[productID]
	if !found {
		return map[string]any{"error": "not_found", "product_id": productID}
	}
	return map[string]any{
		"product_id": productID,
		"name":       product.Name,
		"stock":      product.Stock,
	}
}

func createTicket(ctx context.Context, args map[string]any) map[string]any {
	waitBackend(ctx)

	userID, ok := stringArg(args, "user_id")
	if !ok {
		return map[string]any{"error": "missing_argument", "argument": "user_id"}
	}
	summary, _ := stringArg(args, "summary")

	ticket := domain.Ticket{
		ID:      NewTicketID(),
		UserID:  userID,
		Summary: summary,
		Status:  domain.TicketStatusOpen,
	}

	slog.Info("support ticket created", "ticket_id", ticket.ID, "user_id", userID)

	return map[string]any{
		"ticket_id": ticket.ID,
		"user_id":   ticket.UserID,
		"summary":   ticket.Summary,
		"status":    ticket.Status,
	}
}

func sendEmail(ctx context.Context, args map[string]any) map[string]any {
	waitBackend(ctx)

	to, ok := stringArg(args, "user_email")
	if !ok {
		return map[string]any{"error": "missing_argument", "argument": "user_email"}
	}
	subject, _ := stringArg(args, "subject")

	// Mock transport: real delivery is an external collaborator.
	slog.Info("email dispatched", "to", to, "subject", subject)

	return map[string]any{"status": "sent"}
}

// NewTicketID generates a process-unique ticket identifier.
func NewTicketID() string {
	return "T-" + strings.ToUpper(uuid.NewString()[:8])
}

func stringArg(args map[string]any, key string) (string, bool) {
	value, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func waitBackend(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(backendLatency):
	}
}
