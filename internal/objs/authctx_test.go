package objs

import "testing"

func TestTokenPresentIffAuthenticated(t *testing.T) {
	contexts := []AuthContext{
		Anonymous{},
		Session{UserIDValue: "u1", AccessToken: "tok"},
		ApiToken{UserIDValue: "u1", AccessToken: "tok"},
		ExternalApp{UserIDValue: "u1", ExchangedToken: "tok"},
	}
	for _, ctx := range contexts {
		_, hasToken := ctx.Token()
		if hasToken != ctx.IsAuthenticated() {
			t.Fatalf("%s: Token() presence %v != IsAuthenticated() %v", ctx.Kind(), hasToken, ctx.IsAuthenticated())
		}
	}
}

func TestExternalAppTokenIsExchanged(t *testing.T) {
	e := ExternalApp{ExchangedToken: "exchanged", OriginalToken: "original"}
	tok, ok := e.Token()
	if !ok || tok != "exchanged" {
		t.Fatalf("expected ExternalApp.Token() to return the exchanged token, got %q", tok)
	}
}
