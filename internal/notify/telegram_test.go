package notify

import "testing"

func TestNilNotifierIsSafe(t *testing.T) {
	var tg *Telegram
	tg.Notify("no receiver")

	if got := NewTelegram("", 0, nil); got != nil {
		t.Fatal("missing credentials should disable the notifier")
	}
	if got := NewTelegram("token-without-chat", 0, nil); got != nil {
		t.Fatal("missing chat id should disable the notifier")
	}
	if got := NewTelegram("", 42, nil); got != nil {
		t.Fatal("missing token should disable the notifier")
	}
}
