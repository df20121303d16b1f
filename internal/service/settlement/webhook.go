package settlement

import (
	"encoding/json"
	"fmt"
)

const (
	eventPaymentCaptured = "payment.captured"
	eventOrderPaid       = "order.paid"
)

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// parseWebhook extracts the order and payment references. relevant is false
// for event types that do not settle a payment.
func parseWebhook(body []byte) (n Notification, relevant bool, err error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Notification{}, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch p.Event {
	case "", eventPaymentCaptured, eventOrderPaid:
	default:
		return Notification{}, false, nil
	}

	entity := p.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		return Notification{}, false, fmt.Errorf("%w: missing order or payment id", ErrInvalidPayload)
	}

	return Notification{OrderRef: entity.OrderID, PaymentRef: entity.ID}, true, nil
}
