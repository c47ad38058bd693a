package navigation

import "testing"

func TestParseView(t *testing.T) {
	for in, want := range map[string]View{
		"login":      Login,
		"Dashboard":  Dashboard,
		" portfolio": Portfolio,
		"SIMULATION": Simulation,
	} {
		got, err := ParseView(in)
		if err != nil {
			t.Fatalf("ParseView(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseView(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseView("settings"); err == nil {
		t.Fatal("expected error for unknown view")
	}
}

func TestRouter_DefaultsToLogin(t *testing.T) {
	if got := NewRouter("").Current(); got != Login {
		t.Fatalf("expected login, got %q", got)
	}
}

func TestRouter_NavigateFiresHook(t *testing.T) {
	r := NewRouter(Dashboard)

	var calls [][2]View
	r.OnNavigate = func(from, to View) {
		calls = append(calls, [2]View{from, to})
	}

	r.Navigate(Portfolio)
	r.Navigate(Portfolio)
	r.Navigate(Login)

	if r.Current() != Login {
		t.Fatalf("expected login, got %q", r.Current())
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(calls))
	}
	if calls[0] != [2]View{Dashboard, Portfolio} || calls[1] != [2]View{Portfolio, Login} {
		t.Fatalf("unexpected transitions: %v", calls)
	}
}
