package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"artmarket-wallet/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishCall struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	calls []publishCall
	err   error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{exchange: exchange, key: key, msg: msg})
	return nil
}

func testEvent() domain.Event {
	id := domain.WithdrawalID("wd-1")
	return domain.Event{
		Type:         domain.EventWithdrawalApproved,
		OccurredAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UserID:       "seller-1",
		WalletID:     "wallet-1",
		Amount:       30000,
		WithdrawalID: &id,
		Bank:         &domain.BankDetails{BankName: "Vietcombank", AccountName: "NGUYEN VAN A", AccountNumber: "123456789012"},
	}
}

func TestRabbitMQPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	pub := NewRabbitMQPublisher(ch, "wallet.events", zerolog.Nop())

	require.NoError(t, pub.Publish(context.Background(), testEvent()))
	require.Len(t, ch.calls, 1)

	call := ch.calls[0]
	assert.Equal(t, "wallet.events", call.exchange)
	assert.Equal(t, "wallet.withdrawal.approved", call.key)
	assert.Equal(t, "application/json", call.msg.ContentType)
	assert.Equal(t, amqp.Persistent, call.msg.DeliveryMode)
	assert.Equal(t, "withdrawal.approved", call.msg.Type)
	assert.NotEmpty(t, call.msg.MessageId)

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(call.msg.Body, &decoded))
	assert.Equal(t, int64(30000), decoded.Amount)
	require.NotNil(t, decoded.Bank)
	assert.Equal(t, "123456789012", decoded.Bank.AccountNumber)
}

func TestRabbitMQPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	pub := NewRabbitMQPublisher(ch, "wallet.events", zerolog.Nop())

	err := pub.Publish(context.Background(), testEvent())
	assert.True(t, errors.Is(err, amqp.ErrClosed))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(zerolog.New(&buf))

	require.NoError(t, pub.Publish(context.Background(), testEvent()))
	assert.Contains(t, buf.String(), `"event":"withdrawal.approved"`)
	assert.Contains(t, buf.String(), `"amount":30000`)
	assert.NotContains(t, buf.String(), "123456789012")
}
