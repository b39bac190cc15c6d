package mailbox

import "testing"

func TestExtractVerificationLink(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{
			name: "entity-encoded ampersand is normalized",
			body: `<html><body><a href="https://x/verify?token=abc&amp;y=1">Verify</a></body></html>`,
			want: "https://x/verify?token=abc&y=1",
			ok:   true,
		},
		{
			name: "first matching href wins",
			body: `<a href="https://x/unsubscribe">bye</a>` +
				`<a href="https://x/verify?token=first">one</a>` +
				`<a href="https://x/verify?token=second">two</a>`,
			want: "https://x/verify?token=first",
			ok:   true,
		},
		{
			name: "no verification link",
			body: `<a href="https://x/welcome">hello</a>`,
			ok:   false,
		},
		{
			name: "empty body",
			body: "",
			ok:   false,
		},
		{
			name: "link buried in markup",
			body: `<table><tr><td><p>Click <a style="color:blue" href="https://game.example/verify?token=tok123">here</a></p></td></tr></table>`,
			want: "https://game.example/verify?token=tok123",
			ok:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVerificationLink(tt.body)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("link = %q, want %q", got, tt.want)
			}
		})
	}
}
