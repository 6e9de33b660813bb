package services

import (
	"context"
	"fmt"

	"service_orders/internal/models"
	"service_orders/internal/repository"
)

// MessageSender delivers a text message to a phone number. *whatsapp.Client implements it.
type MessageSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

type NotificationService interface {
	OrderCancelled(ctx context.Context, order *models.Order) error
	OrderClosed(ctx context.Context, order *models.Order) error
	SalesOrderCancelled(ctx context.Context, order *models.SalesOrder) error
	PaymentRecorded(ctx context.Context, result *PaymentResult) error
	PaymentCancelled(ctx context.Context, result *PaymentResult) error
}

type notificationService struct {
	clients repository.ClientRepository
	sender  MessageSender
}

// NewNotificationService returns a notifier that messages clients through sender.
// A nil sender disables notifications.
func NewNotificationService(clients repository.ClientRepository, sender MessageSender) NotificationService {
	return &notificationService{clients: clients, sender: sender}
}

func (s *notificationService) OrderCancelled(ctx context.Context, order *models.Order) error {
	return s.notify(ctx, order.ClientID, fmt.Sprintf(
		"Order %s has been cancelled.\nReason: %s", order.OrderNumber, order.CancellationReason))
}

func (s *notificationService) OrderClosed(ctx context.Context, order *models.Order) error {
	return s.notify(ctx, order.ClientID, fmt.Sprintf(
		"Order %s is fully paid and closed. Thank you!", order.OrderNumber))
}

func (s *notificationService) SalesOrderCancelled(ctx context.Context, order *models.SalesOrder) error {
	return s.notify(ctx, order.ClientID, fmt.Sprintf(
		"Sales order %s has been cancelled.\nReason: %s", order.OrderNumber, order.CancellationReason))
}

func (s *notificationService) PaymentRecorded(ctx context.Context, result *PaymentResult) error {
	return s.notify(ctx, result.ClientID, fmt.Sprintf(
		"We received your payment of %s (%s).\nOutstanding balance: %s",
		result.Payment.Amount.StringFixed(2), result.Payment.PaymentMethod,
		result.Balance.OutstandingBalance.StringFixed(2)))
}

func (s *notificationService) PaymentCancelled(ctx context.Context, result *PaymentResult) error {
	return s.notify(ctx, result.ClientID, fmt.Sprintf(
		"Your payment of %s was cancelled.\nReason: %s\nOutstanding balance: %s",
		result.Payment.Amount.StringFixed(2), result.Payment.CancellationReason,
		result.Balance.OutstandingBalance.StringFixed(2)))
}

func (s *notificationService) notify(ctx context.Context, clientID uint, message string) error {
	if s.sender == nil {
		return nil
	}
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return err
	}
	if client.Phone == "" {
		return nil
	}
	if err := s.sender.SendTextMessage(ctx, client.Phone, message); err != nil {
		return fmt.Errorf("failed to notify client %d: %w", clientID, err)
	}
	return nil
}
