package notify

import (
	"testing"
)

func TestNotifier_Subscribe(t *testing.T) {
	n := New()

	var got []Change
	sub := n.Subscribe(func(c Change) {
		got = append(got, c)
	})
	defer sub.Unsubscribe()

	n.NotifySet("db.host", nil, "localhost", "local")
	n.NotifyDelete("db.host", "localhost", "local")
	n.NotifyReload("/etc/app/settings.json")

	if len(got) != 3 {
		t.Fatalf("observer saw %d changes, want 3", len(got))
	}
	if got[0].Type != ChangeSet || got[0].NewValue != "localhost" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Type != ChangeDelete || got[1].OldValue != "localhost" {
		t.Errorf("got[1] = %+v", got[1])
	}
	if got[2].Type != ChangeReload || got[2].Source != "/etc/app/settings.json" {
		t.Errorf("got[2] = %+v", got[2])
	}
}

func TestNotifier_SubscribePath(t *testing.T) {
	n := New()

	tests := []struct {
		name       string
		sub        string
		changePath string
		want       bool
	}{
		{"exact match", "db", "db", true},
		{"child path", "db", "db.host", true},
		{"deep child", "db", "db.pool.size", true},
		{"sibling", "db", "cache", false},
		{"prefix but not ancestor", "db", "dbx.host", false},
		{"dotted subscription", "db.pool", "db.pool.size", true},
		{"dotted subscription parent change", "db.pool", "db", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fired bool
			sub := n.SubscribePath(tt.sub, func(Change) { fired = true })
			defer sub.Unsubscribe()

			n.NotifySet(tt.changePath, nil, 1, "local")
			if fired != tt.want {
				t.Errorf("subscription %q for change %q fired = %v, want %v",
					tt.sub, tt.changePath, fired, tt.want)
			}
		})
	}
}

func TestNotifier_ReloadReachesPathSubscribers(t *testing.T) {
	n := New()

	var fired bool
	sub := n.SubscribePath("db", func(c Change) {
		if c.Type == ChangeReload {
			fired = true
		}
	})
	defer sub.Unsubscribe()

	n.NotifyReload("file")
	if !fired {
		t.Error("path subscriber did not receive the reload")
	}
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := New()

	var count int
	sub := n.Subscribe(func(Change) { count++ })

	n.NotifySet("k", nil, 1, "local")
	sub.Unsubscribe()
	n.NotifySet("k", nil, 2, "local")

	if count != 1 {
		t.Errorf("observer fired %d times, want 1", count)
	}

	// Unsubscribing twice is harmless
	sub.Unsubscribe()
}

func TestNotifier_CloseStopsDelivery(t *testing.T) {
	n := New()

	var count int
	n.Subscribe(func(Change) { count++ })

	n.Close()
	n.NotifySet("k", nil, 1, "local")
	if count != 0 {
		t.Errorf("closed notifier still delivered %d changes", count)
	}

	n.Close()
}
