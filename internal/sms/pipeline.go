// Package sms implements the Send Pipeline (C7): quota reservation, device
// selection, message persistence, and dispatch, in the exact procedure
// order the control plane requires. Grounded on
// services/sms-service/service.go's handleBulkSend flow (balance check,
// assignment, bulk insert) generalized to this domain's quota/device model.
package sms

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brivas/smsgateway/internal/apperr"
	"github.com/brivas/smsgateway/internal/dispatch"
	"github.com/brivas/smsgateway/internal/hub"
	"github.com/brivas/smsgateway/internal/quota"
	"github.com/brivas/smsgateway/internal/store"
)

const (
	MaxRecipients = 1000
	MaxBodyLength = 1600
)

type Request struct {
	Recipients []string
	Body       string
	DeviceID   *uuid.UUID
}

type Result struct {
	BatchID         *uuid.UUID
	MessageIDs      []uuid.UUID
	RecipientsCount int
	Status          string
}

type Pipeline struct {
	db     *store.Client
	quota  *quota.Service
	hub    *hub.Hub
	disp   *dispatch.Dispatcher
	logger *zap.Logger
}

func New(db *store.Client, q *quota.Service, h *hub.Hub, disp *dispatch.Dispatcher, logger *zap.Logger) *Pipeline {
	return &Pipeline{db: db, quota: q, hub: h, disp: disp, logger: logger}
}

func validate(req Request) error {
	n := len(req.Recipients)
	if n == 0 {
		return apperr.Validation("recipients must contain at least one entry")
	}
	if n > MaxRecipients {
		return apperr.Validation("recipients must not exceed %d entries", MaxRecipients)
	}
	if bodyLen := utf8.RuneCountInString(req.Body); bodyLen == 0 || bodyLen > MaxBodyLength {
		return apperr.Validation("body must be 1..%d characters", MaxBodyLength)
	}
	return nil
}

// Send implements §4.7's procedure: reserve -> resolve devices -> batch_id
// -> round-robin assign -> insert -> dispatch.
func (p *Pipeline) Send(ctx context.Context, user *store.User, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	n := len(req.Recipients)

	if err := p.quota.ReserveSMS(ctx, user.ID, n); err != nil {
		return nil, err
	}

	devicesList, err := p.resolveDevices(ctx, user, req.DeviceID)
	if err != nil {
		p.quota.ReleaseSMS(ctx, user.ID, n)
		return nil, err
	}

	online := p.hub.OnlineDevices(devicesList)

	var batchID *uuid.UUID
	if n > 1 {
		id := uuid.New()
		batchID = &id
	}

	messageIDs := make([]uuid.UUID, 0, n)
	var toDispatch []*store.Message

	err = p.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, recipient := range req.Recipients {
			msg := &store.Message{
				ID:          uuid.New(),
				UserID:      user.ID,
				BatchID:     batchID,
				To:          recipient,
				Body:        req.Body,
				MessageType: store.MessageTypeOutgoing,
			}

			if len(online) > 0 {
				device := online[i%len(online)]
				msg.DeviceID = &device.ID
				msg.Status = store.MessageAssigned
			} else {
				msg.Status = store.MessageQueued
			}

			created, err := store.CreateMessageTx(ctx, tx, msg)
			if err != nil {
				return fmt.Errorf("insert message: %w", err)
			}

			messageIDs = append(messageIDs, created.ID)
			if created.DeviceID != nil {
				toDispatch = append(toDispatch, created)
			}
		}
		return nil
	})
	if err != nil {
		p.quota.ReleaseSMS(ctx, user.ID, n)
		return nil, fmt.Errorf("persist messages: %w", err)
	}

	status := "queued"
	if len(toDispatch) > 0 {
		status = "processing"
		for _, msg := range toDispatch {
			if err := p.db.UpdateMessageStatus(ctx, msg.ID, store.MessageSending, nil, nil, nil); err != nil {
				p.logger.Warn("failed to transition message to sending", zap.String("message_id", msg.ID.String()), zap.Error(err))
			}
		}
		if err := p.disp.Dispatch(ctx, toDispatch); err != nil {
			p.logger.Error("dispatch failed", zap.Error(err))
		}
	}

	return &Result{
		BatchID:         batchID,
		MessageIDs:      messageIDs,
		RecipientsCount: n,
		Status:          status,
	}, nil
}

func (p *Pipeline) resolveDevices(ctx context.Context, user *store.User, deviceID *uuid.UUID) ([]*store.Device, error) {
	if deviceID != nil {
		device, err := p.db.GetDevice(ctx, *deviceID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Validation("device does not belong to user")
		}
		if err != nil {
			return nil, err
		}
		if device.UserID != user.ID {
			return nil, apperr.Validation("device does not belong to user")
		}
		return []*store.Device{device}, nil
	}

	return p.db.ListDevicesByUser(ctx, user.ID)
}
