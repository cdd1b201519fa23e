package action

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Intent-Router/agent/contract"
)

const (
	CheckOrderStatusName = "check_order_status"

	ErrMissingOrderID = "missing order_id"
	ErrOrderNotFound  = "order_not_found"
)

// OrderSource looks orders up by id. A miss is (nil, nil).
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string) (map[string]any, error)
}

// CheckOrderStatus returns the handler for the order status action.
func CheckOrderStatus(source OrderSource) Handler {
	return func(ctx context.Context, params map[string]string) (contractx.CallResult, error) {
		orderID := strings.TrimSpace(params["order_id"])
		if orderID == "" {
			return contractx.CallResult{OK: false, Error: ErrMissingOrderID}, nil
		}

		order, err := source.GetOrder(ctx, orderID)
		if err != nil {
			return contractx.CallResult{}, fmt.Errorf("lookup order %s: %w", orderID, err)
		}
		if len(order) == 0 {
			return contractx.CallResult{OK: false, Error: ErrOrderNotFound}, nil
		}
		return contractx.CallResult{OK: true, Data: order}, nil
	}
}

// OrderStatusSummary renders e.g. "status: in transit, carrier: UPS, ETA: 2024-01-05".
func OrderStatusSummary(order map[string]any) string {
	status := stringField(order, "status")
	if status == "" {
		status = "unknown"
	}
	parts := []string{"status: " + strings.ReplaceAll(status, "_", " ")}
	if carrier := stringField(order, "carrier"); carrier != "" {
		parts = append(parts, "carrier: "+carrier)
	}
	eta := stringField(order, "eta")
	if eta == "" {
		eta = stringField(order, "delivered_at")
	}
	if eta != "" {
		parts = append(parts, "ETA: "+eta)
	}
	return strings.Join(parts, ", ")
}

// RegisterOrderStatus binds the order status action and its summary to r.
func RegisterOrderStatus(r *Runner, source OrderSource) error {
	return r.Register(CheckOrderStatusName, CheckOrderStatus(source), OrderStatusSummary)
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
