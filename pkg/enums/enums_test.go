package enums

import "testing"

func TestOrderStatusClassification(t *testing.T) {
	t.Parallel()

	for _, status := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusFailed} {
		if !status.IsTerminal() {
			t.Fatalf("%s should be terminal", status)
		}
		if !status.LocksCustomerInfo() {
			t.Fatalf("%s should lock customer info", status)
		}
	}
	if OrderStatusPreparing.IsTerminal() || OrderStatusPreparing.LocksCustomerInfo() {
		t.Fatalf("preparing should be editable and non terminal")
	}
	if !OrderStatusShipped.LocksCustomerInfo() {
		t.Fatalf("shipped should lock customer info")
	}
	if !OrderStatusFailed.ReleasesStock() || OrderStatusDelivered.ReleasesStock() {
		t.Fatalf("unexpected stock release classification")
	}
}

func TestParseRoleRejectsSystem(t *testing.T) {
	t.Parallel()

	if _, err := ParseRole("system"); err == nil {
		t.Fatal("system role must not be parseable from input")
	}
	role, err := ParseRole("shipper")
	if err != nil || role != RoleShipper {
		t.Fatalf("expected shipper, got %q err=%v", role, err)
	}
	if !RoleSystem.IsValid() {
		t.Fatal("system role must remain a valid actor")
	}
}

func TestParseOrderStatus(t *testing.T) {
	t.Parallel()

	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatal("refunded is a payment status, not an order status")
	}
	status, err := ParseOrderStatus("cancelled")
	if err != nil || status != OrderStatusCancelled {
		t.Fatalf("unexpected parse result %q err=%v", status, err)
	}
}

func TestParseCurrencyAndDisplayPlaces(t *testing.T) {
	t.Parallel()

	c, err := ParseCurrency(" vnd ")
	if err != nil || c != CurrencyVND {
		t.Fatalf("expected VND, got %q err=%v", c, err)
	}
	if CurrencyVND.DisplayPlaces() != 0 || CurrencyUSD.DisplayPlaces() != 2 {
		t.Fatal("unexpected display places")
	}
	if _, err := ParseCurrency("EUR"); err == nil {
		t.Fatal("EUR is not supported")
	}
}

func TestParsePaymentMethodDefaultsToCOD(t *testing.T) {
	t.Parallel()

	method, err := ParsePaymentMethod("  ")
	if err != nil || method != DefaultPaymentMethod || !method.CollectedOnDelivery() {
		t.Fatalf("blank method should default to cod, got %q err=%v", method, err)
	}
	method, err = ParsePaymentMethod("Bank_Transfer")
	if err != nil || method != PaymentMethodBankTransfer || method.CollectedOnDelivery() {
		t.Fatalf("unexpected parse %q err=%v", method, err)
	}
	if _, err := ParsePaymentMethod("crypto"); err == nil {
		t.Fatal("expected invalid payment method")
	}
}

func TestPaymentStatusRules(t *testing.T) {
	t.Parallel()

	if PaymentStatusRefunded.ManuallySettable() || !PaymentStatusPartial.ManuallySettable() {
		t.Fatal("only refunded is off limits for manual updates")
	}
	if PaymentStatus("bogus").ManuallySettable() {
		t.Fatal("unknown statuses are never settable")
	}
	if PaymentStatusPaid.AfterRelease() != PaymentStatusRefunded {
		t.Fatal("paid orders refund on release")
	}
	if PaymentStatusPartial.AfterRelease() != PaymentStatusPartial || PaymentStatusUnpaid.AfterRelease() != PaymentStatusUnpaid {
		t.Fatal("partial and unpaid orders keep their status on release")
	}
	if !PaymentStatusRefunded.Final() || PaymentStatusPaid.Final() {
		t.Fatal("only refunded is final")
	}
}

func TestEventTypeAggregate(t *testing.T) {
	t.Parallel()

	if EventOrderPaymentRecorded.Aggregate() != AggregateOrder || EventProductCatalogChanged.Aggregate() != AggregateProduct {
		t.Fatal("unexpected aggregate mapping")
	}
	if OutboxEventType("nope").Aggregate() != "" {
		t.Fatal("unknown events have no aggregate")
	}
	if !OutboxDLQReasonMaxAttempts.Transient() || OutboxDLQReasonUnroutable.Transient() {
		t.Fatal("only max_attempts is transient")
	}
}

func TestStockMovementReasonRules(t *testing.T) {
	t.Parallel()

	if reason, ok := ReleaseReasonFor(OrderStatusFailed); !ok || reason != StockMovementOrderFailed {
		t.Fatalf("failed orders release with order_failed, got %q", reason)
	}
	if _, ok := ReleaseReasonFor(OrderStatusShipped); ok {
		t.Fatal("shipped orders do not release stock")
	}
	if !StockMovementCheckout.OrderLinked() || StockMovementAdminAdjustment.OrderLinked() {
		t.Fatal("unexpected order linkage")
	}
	if r, err := ParseStockMovementReason(" ADMIN_ADJUSTMENT "); err != nil || r != StockMovementAdminAdjustment {
		t.Fatalf("expected admin adjustment, got %q %v", r, err)
	}
	if _, err := ParseStockMovementReason("restock"); err == nil {
		t.Fatal("expected unknown reason to fail")
	}
	if RoleSystem.Mintable() || !RoleStaff.Mintable() {
		t.Fatal("unexpected mintable roles")
	}
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Fatalf("expected case-insensitive role parse, got %q %v", r, err)
	}
}
