// Package fulfillment drives the order lifecycle. Each public method is one
// guarded state transition: it locks the order row, checks the transition
// table, runs the matching reservation-engine operation and writes the new
// status, all inside a single storage transaction. If anything fails the
// transaction rolls back and the order keeps its previous state, so a caller
// may simply retry.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/StereoSachiiii/royal-liqour-sub000/internal/inventory"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/orders"
	"github.com/StereoSachiiii/royal-liqour-sub000/internal/stores/kafka"
	"github.com/StereoSachiiii/royal-liqour-sub000/pkg/logkey"
)

// Tx is the storage transaction the service works in: the engine's ledger
// operations plus the order-status row.
type Tx interface {
	inventory.Tx

	// OrderStatusForUpdate returns the order's status with the order row
	// locked, so concurrent transitions on the same order serialize.
	OrderStatusForUpdate(ctx context.Context, orderID string) (orders.Status, error)

	SetOrderStatus(ctx context.Context, orderID string, status orders.Status) error
}

// Store opens transactions against the order and stock tables. fn's error
// rolls the transaction back; nil commits it.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Producer publishes lifecycle events. Satisfied by kafka.Conf.
type Producer interface {
	ProduceMessage(topic string, key []byte, value []byte) error
}

type Service struct {
	store    Store
	engine   *inventory.Engine
	producer Producer
}

func NewService(store Store, producer Producer) *Service {
	return &Service{
		store:    store,
		engine:   inventory.NewEngine(),
		producer: producer,
	}
}

// Reserve holds stock for every item of a pending order and moves it to
// awaiting_payment. A second call on an already reserved order reports
// ErrAlreadyReserved instead of double-reserving.
func (s *Service) Reserve(ctx context.Context, orderID string) error {
	err := s.transition(ctx, orderID, orders.StatusAwaitingPayment, func(tx Tx) error {
		return s.engine.Reserve(ctx, tx, orderID)
	})
	if err != nil {
		var ite *orders.InvalidTransitionError
		if errors.As(err, &ite) && ite.From == orders.StatusAwaitingPayment {
			return inventory.ErrAlreadyReserved
		}
		return err
	}
	s.publish(kafka.TopicOrderReserved, orderID, orders.StatusAwaitingPayment)
	return nil
}

// ConfirmPayment settles the order's holds on payment confirmation:
// quantity leaves the ledger and the holds clear, and the order becomes paid.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) error {
	err := s.transition(ctx, orderID, orders.StatusPaid, func(tx Tx) error {
		return s.engine.Settle(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}
	s.publish(kafka.TopicOrderPaid, orderID, orders.StatusPaid)
	return nil
}

// Ship marks a paid order shipped. No stock effect; settlement already
// deducted the goods.
func (s *Service) Ship(ctx context.Context, orderID string) error {
	err := s.transition(ctx, orderID, orders.StatusShipped, nil)
	if err != nil {
		return err
	}
	s.publish(kafka.TopicOrderShipped, orderID, orders.StatusShipped)
	return nil
}

// Deliver marks a shipped order delivered.
func (s *Service) Deliver(ctx context.Context, orderID string) error {
	return s.transition(ctx, orderID, orders.StatusDelivered, nil)
}

// Cancel ends the order before shipment. The stock effect depends on how far
// the order got: nothing was held yet while pending, a hold is released from
// awaiting_payment, and a settled (paid) order gets its quantity restocked
// since the goods never left the warehouse.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	err := s.store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.OrderStatusForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(orders.StatusCancelled) {
			return &orders.InvalidTransitionError{From: current, To: orders.StatusCancelled}
		}
		switch current {
		case orders.StatusPending:
			// nothing reserved yet
		case orders.StatusAwaitingPayment:
			if err := s.engine.Release(ctx, tx, orderID); err != nil {
				return err
			}
		case orders.StatusPaid:
			if err := s.engine.Restock(ctx, tx, orderID); err != nil {
				return err
			}
		}
		return tx.SetOrderStatus(ctx, orderID, orders.StatusCancelled)
	})
	if err != nil {
		return err
	}
	s.publish(kafka.TopicOrderCancelled, orderID, orders.StatusCancelled)
	return nil
}

// Refund returns the order's physical quantity to the ledger after
// settlement and marks the order refunded. The shipment/delivery record is
// not reversed.
func (s *Service) Refund(ctx context.Context, orderID string) error {
	err := s.transition(ctx, orderID, orders.StatusRefunded, func(tx Tx) error {
		return s.engine.Restock(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}
	s.publish(kafka.TopicOrderRefunded, orderID, orders.StatusRefunded)
	return nil
}

func (s *Service) transition(ctx context.Context, orderID string, to orders.Status, step func(Tx) error) error {
	return s.store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.OrderStatusForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(to) {
			return &orders.InvalidTransitionError{From: current, To: to}
		}
		if step != nil {
			if err := step(tx); err != nil {
				return err
			}
		}
		return tx.SetOrderStatus(ctx, orderID, to)
	})
}

// publish emits the lifecycle event after the transaction committed. Event
// delivery is best effort: a broker failure is logged, not surfaced, since
// the state change already stuck.
func (s *Service) publish(topic, orderID string, status orders.Status) {
	if s.producer == nil {
		return
	}
	event := kafka.OrderLifecycleEvent{
		OrderID:   orderID,
		Status:    status.String(),
		CreatedAt: time.Now().UTC(),
	}
	jsonData, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal lifecycle event",
			slog.String(logkey.OrderID, orderID), slog.String(logkey.ERROR, err.Error()))
		return
	}
	if err := s.producer.ProduceMessage(topic, []byte(orderID), jsonData); err != nil {
		slog.Error("failed to produce lifecycle event",
			slog.String(logkey.OrderID, orderID), slog.String("topic", topic),
			slog.String(logkey.ERROR, err.Error()))
	}
}
