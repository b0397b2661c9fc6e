package fulfillment_test

import (
	"context"
	"sync"
	"testing"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/fulfillment"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/stores/kafka"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProducer records produced messages instead of talking to Kafka.
type mockProducer struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	err    error
}

func (m *mockProducer) ProduceMessage(topic string, key []byte, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	m.keys = append(m.keys, string(key))
	return m.err
}

func setup(t *testing.T) (*memory.Store, *fulfillment.Service, *mockProducer) {
	t.Helper()
	store := memory.NewStore()
	producer := &mockProducer{}
	return store, fulfillment.NewService(store, producer), producer
}

func createOrder(t *testing.T, store *memory.Store, items ...orders.NewOrderItem) string {
	t.Helper()
	order, _, err := store.CreateOrder(context.Background(), orders.NewOrder{
		UserID: "7cb1f89e-41ce-4a2c-8a3a-215c3f0e8a42",
		Items:  items,
	})
	require.NoError(t, err)
	return order.ID
}

func seedStock(t *testing.T, store *memory.Store, productID, warehouseID int64, qty int) {
	t.Helper()
	_, err := store.Intake(context.Background(), productID, warehouseID, qty)
	require.NoError(t, err)
}

func orderStatus(t *testing.T, store *memory.Store, orderID string) orders.Status {
	t.Helper()
	order, _, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return order.Status
}

func availableOf(t *testing.T, store *memory.Store, productID int64) (quantity, reserved int) {
	t.Helper()
	entries, err := store.GetStock(context.Background(), productID)
	require.NoError(t, err)
	for _, e := range entries {
		quantity += e.Quantity
		reserved += e.Reserved
	}
	return quantity, reserved
}

func TestLifecycle_HappyPath(t *testing.T) {
	ctx := context.Background()
	store, svc, producer := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 7, PriceCents: 2500})

	require.NoError(t, svc.Reserve(ctx, orderID))
	assert.Equal(t, orders.StatusAwaitingPayment, orderStatus(t, store, orderID))
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 7, r)

	require.NoError(t, svc.ConfirmPayment(ctx, orderID))
	assert.Equal(t, orders.StatusPaid, orderStatus(t, store, orderID))
	q, r = availableOf(t, store, 1)
	assert.Equal(t, 3, q)
	assert.Equal(t, 0, r)

	require.NoError(t, svc.Ship(ctx, orderID))
	require.NoError(t, svc.Deliver(ctx, orderID))
	assert.Equal(t, orders.StatusDelivered, orderStatus(t, store, orderID))

	assert.Equal(t, []string{kafka.TopicOrderReserved, kafka.TopicOrderPaid, kafka.TopicOrderShipped}, producer.topics)
	for _, key := range producer.keys {
		assert.Equal(t, orderID, key)
	}
}

func TestReserve_TwiceReportsAlreadyReserved(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 2})

	require.NoError(t, svc.Reserve(ctx, orderID))
	err := svc.Reserve(ctx, orderID)

	assert.ErrorIs(t, err, inventory.ErrAlreadyReserved)
	_, r := availableOf(t, store, 1)
	assert.Equal(t, 2, r)
}

func TestReserve_InsufficientStockLeavesOrderPending(t *testing.T) {
	ctx := context.Background()
	store, svc, producer := setup(t)
	seedStock(t, store, 1, 1, 3)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 5})

	err := svc.Reserve(ctx, orderID)

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, orders.StatusPending, orderStatus(t, store, orderID))
	assert.Empty(t, producer.topics)
}

func TestCancel_FromAwaitingPaymentReleasesHold(t *testing.T) {
	ctx := context.Background()
	store, svc, producer := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 4})

	require.NoError(t, svc.Reserve(ctx, orderID))
	require.NoError(t, svc.Cancel(ctx, orderID))

	assert.Equal(t, orders.StatusCancelled, orderStatus(t, store, orderID))
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 0, r)
	assert.Contains(t, producer.topics, kafka.TopicOrderCancelled)
}

func TestCancel_FromPendingHasNoStockEffect(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 4})

	require.NoError(t, svc.Cancel(ctx, orderID))

	assert.Equal(t, orders.StatusCancelled, orderStatus(t, store, orderID))
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 0, r)
}

func TestCancel_FromPaidRestocksQuantity(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 4})

	require.NoError(t, svc.Reserve(ctx, orderID))
	require.NoError(t, svc.ConfirmPayment(ctx, orderID))
	require.NoError(t, svc.Cancel(ctx, orderID))

	assert.Equal(t, orders.StatusCancelled, orderStatus(t, store, orderID))
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 0, r)
}

func TestCancel_AfterShipmentRefused(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 4})

	require.NoError(t, svc.Reserve(ctx, orderID))
	require.NoError(t, svc.ConfirmPayment(ctx, orderID))
	require.NoError(t, svc.Ship(ctx, orderID))

	err := svc.Cancel(ctx, orderID)
	var invalid *orders.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, orders.StatusShipped, invalid.From)
}

func TestRefund_AfterDeliveryRestoresQuantity(t *testing.T) {
	ctx := context.Background()
	store, svc, producer := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 6})

	require.NoError(t, svc.Reserve(ctx, orderID))
	require.NoError(t, svc.ConfirmPayment(ctx, orderID))
	require.NoError(t, svc.Ship(ctx, orderID))
	require.NoError(t, svc.Deliver(ctx, orderID))
	require.NoError(t, svc.Refund(ctx, orderID))

	assert.Equal(t, orders.StatusRefunded, orderStatus(t, store, orderID))
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 0, r)
	assert.Contains(t, producer.topics, kafka.TopicOrderRefunded)

	// terminal: a second refund is refused
	err := svc.Refund(ctx, orderID)
	var invalid *orders.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	q, _ = availableOf(t, store, 1)
	assert.Equal(t, 10, q)
}

func TestConfirmPayment_WithoutReservationRefused(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderID := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 4})

	err := svc.ConfirmPayment(ctx, orderID)

	var invalid *orders.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, orders.StatusPending, invalid.From)
	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 0, r)
}

func TestTransition_UnknownOrder(t *testing.T) {
	_, svc, _ := setup(t)
	err := svc.Reserve(context.Background(), "2c9e0d3a-1111-4a42-9e3b-dc2f7a1b9f00")
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

// Two orders race for 10 units that can only cover one of them: exactly one
// reservation wins, the loser gets InsufficientStockError, and the ledger
// never oversells.
func TestReserve_ConcurrentOversell(t *testing.T) {
	ctx := context.Background()
	store, svc, _ := setup(t)
	seedStock(t, store, 1, 1, 10)
	orderA := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 7})
	orderB := createOrder(t, store, orders.NewOrderItem{ProductID: 1, Quantity: 7})

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{orderA, orderB} {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			errs <- svc.Reserve(ctx, orderID)
		}(id)
	}
	wg.Wait()
	close(errs)

	succeeded, failed := 0, 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient *inventory.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		failed++
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	q, r := availableOf(t, store, 1)
	assert.Equal(t, 10, q)
	assert.Equal(t, 7, r) // never above quantity
}
