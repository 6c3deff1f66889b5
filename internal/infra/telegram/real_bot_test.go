package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"pawplan/internal/domain/ports/adapter"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestRealBotNotifier_Notify(t *testing.T) {
	log := zerolog.Nop()
	fs := &fakeSender{}
	n := newRealBotNotifier(fs, 4242, &log)

	err := n.Notify(context.Background(), adapter.Message{
		Kind:    adapter.MessagePaymentFailed,
		Subject: "Payment failed",
		Body:    "Subscription <sub_1> is past due.",
		Data:    map[string]string{"subscription_id": "sub_1", "plan_id": "p-1"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(fs.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(fs.sent))
	}
	got := fs.sent[0]
	if got.ChatID != 4242 || got.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("unexpected config: %+v", got)
	}
	want := "<b>Payment failed</b>\nSubscription &lt;sub_1&gt; is past due.\n\nplan_id: <code>p-1</code>\nsubscription_id: <code>sub_1</code>"
	if got.Text != want {
		t.Errorf("text mismatch:\n got %q\nwant %q", got.Text, want)
	}
}

func TestRealBotNotifier_Errors(t *testing.T) {
	log := zerolog.Nop()
	n := newRealBotNotifier(&fakeSender{err: errors.New("429")}, 1, &log)
	if err := n.Notify(context.Background(), adapter.Message{Subject: "x"}); err == nil {
		t.Error("expected send error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &fakeSender{}
	n = newRealBotNotifier(fs, 1, &log)
	if err := n.Notify(ctx, adapter.Message{Subject: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(fs.sent) != 0 {
		t.Error("cancelled notify must not send")
	}

	if _, err := NewRealBotNotifier("", 1, &log); err == nil {
		t.Error("empty token must fail")
	}
}
