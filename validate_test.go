package modulebox

import (
	"encoding/json"
	"testing"
)

func TestValidateResultAccepts(t *testing.T) {
	res := Result{
		RowRecord(Row{{Column: "a", Value: int64(1)}, {Column: "b", Value: nil}}),
		ParagraphRecord("Heading 1", "Intro"),
		LineRecord(1, "line"),
		UnsupportedRecord(),
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateResult(data); err != nil {
		t.Errorf("valid result rejected: %v", err)
	}
	if err := ValidateResult([]byte("[]")); err != nil {
		t.Errorf("empty result rejected: %v", err)
	}
}

func TestValidateResultParagraphStyledRow(t *testing.T) {
	// A paragraph whose style happens to be named "row" is told apart from
	// a table row by its string content.
	data, err := json.Marshal(Result{ParagraphRecord("row", "a paragraph")})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"type":"row","content":"a paragraph"}]` {
		t.Fatalf("unexpected JSON: %s", data)
	}
	if err := ValidateResult(data); err != nil {
		t.Errorf("paragraph styled row rejected: %v", err)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].Row != nil || back[0].Text != "a paragraph" {
		t.Errorf("round trip = %+v", back)
	}
}

func TestValidateResultRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"object", `{"type":"row"}`},
		{"page zero", `[{"page":0,"content":"x"}]`},
		{"heading with object content", `[{"type":"Heading 1","content":{"a":1}}]`},
		{"nested row value", `[{"type":"row","content":{"a":{"b":1}}}]`},
		{"paragraph without content", `[{"type":"Normal"}]`},
		{"extra key", `[{"type":"Normal","content":"x","page":1}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateResult([]byte(tt.data)); err == nil {
				t.Errorf("expected %s to be rejected", tt.data)
			}
		})
	}
}
