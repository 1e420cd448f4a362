package objs

import "testing"

func mustRepo(t *testing.T, s string) Repo {
	t.Helper()
	r, err := ParseRepo(s)
	if err != nil {
		t.Fatalf("ParseRepo(%q): %v", s, err)
	}
	return r
}

func TestAPIAliasCanServeNoPrefix(t *testing.T) {
	a := APIAlias{Models: []string{"gpt-4", "gpt-4o"}}
	if !a.CanServe("gpt-4") {
		t.Fatal("expected exact model match to serve")
	}
	if a.CanServe("gpt-4-unknown") {
		t.Fatal("expected non-member model to not serve")
	}
}

func TestAPIAliasCanServePrefixStrict(t *testing.T) {
	prefix := "azure/"
	a := APIAlias{Prefix: &prefix, Models: []string{"gpt-4"}}
	if !a.CanServe("azure/gpt-4") {
		t.Fatal("expected prefix+member to serve")
	}
	if a.CanServe("azure/gpt-4o") {
		t.Fatal("expected prefix+non-member to not serve without forward_all")
	}
	if a.CanServe("gpt-4") {
		t.Fatal("non-prefixed model must not serve a prefixed alias")
	}
}

func TestAPIAliasCanServePrefixForwardAll(t *testing.T) {
	prefix := "azure/"
	a := APIAlias{Prefix: &prefix, Models: []string{"gpt-4"}, ForwardAllWithPrefix: true}
	if !a.CanServe("azure/gpt-4o") {
		t.Fatal("forward_all_with_prefix should serve any suffix under the prefix")
	}
	if a.CanServe("gpt-4") {
		t.Fatal("forward_all_with_prefix still requires the prefix itself")
	}
}

func TestAliasJSONRoundTrip(t *testing.T) {
	temp := 0.7
	u := UserAlias{
		ID:            "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Name:          "llama3:instruct",
		Repo:          mustRepo(t, "meta/llama3"),
		Filename:      "llama3.Q4_K_M.gguf",
		Snapshot:      "main",
		RequestParams: OAIRequestParams{Temperature: &temp},
	}
	data, err := MarshalAliasJSON(u)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalAliasJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(UserAlias)
	if !ok {
		t.Fatalf("expected UserAlias, got %T", decoded)
	}
	if got.Name != u.Name || got.Repo != u.Repo || got.Filename != u.Filename {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, u)
	}
}

func TestModelAliasName(t *testing.T) {
	m := ModelAlias{Repo: mustRepo(t, "TheBloke/TinyLlama"), Filename: "tiny.Q2_K.gguf"}
	want := "TheBloke/TinyLlama:tiny.Q2_K.gguf"
	if m.Name() != want {
		t.Fatalf("ModelAlias.Name() = %q, want %q", m.Name(), want)
	}
	if !m.CanServe(want) {
		t.Fatal("model alias should serve its own conventional name")
	}
}
