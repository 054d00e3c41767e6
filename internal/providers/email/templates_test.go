package email

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderOrderPaid(t *testing.T) {
	subject, body, err := Render(TemplateOrderPaid, OrderMessage{
		EventTitle: "Jazz Night",
		OrderCode:  "ABC12",
		OrderEmail: "buyer@example.com",
		Total:      "300.00 DKK",
		Summary:    "Opening\nQuantity: 2",
		ShopURL:    "https://pretix.example.com/acme/jazz-night-1/",
	})
	require.NoError(t, err)
	require.Equal(t, "New order for Jazz Night", subject)
	require.Contains(t, body, "ABC12")
	require.Contains(t, body, "buyer@example.com")
	require.Contains(t, body, "Total: 300.00 DKK")
	require.Contains(t, body, "Quantity: 2")
	require.Contains(t, body, "https://pretix.example.com/acme/jazz-night-1/")
}

func TestRenderOrderCanceled(t *testing.T) {
	subject, _, err := Render(TemplateOrderCanceled, OrderMessage{
		EventTitle: "Jazz Night",
		OrderCode:  "ABC12",
	})
	require.NoError(t, err)
	require.Equal(t, "Order canceled for Jazz Night", subject)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := Render("order-teleported", OrderMessage{})
	require.Error(t, err)
}
