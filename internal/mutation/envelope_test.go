package mutation

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "insert with value", raw: `{"kind":"insert","collection":"content","value":{"title":"hi"}}`},
		{name: "update with key", raw: `{"kind":"update","collection":"content","key":"42","value":{"title":"new"}}`},
		{name: "remove with key", raw: `{"kind":"remove","collection":"content","key":"42"}`},
		{name: "update without key passes shape check", raw: `{"kind":"update","collection":"content","value":{}}`},
		{name: "unknown kind", raw: `{"kind":"upsert","collection":"content"}`, wantErr: true},
		{name: "missing collection", raw: `{"kind":"insert"}`, wantErr: true},
		{name: "blank collection", raw: `{"kind":"insert","collection":"  "}`, wantErr: true},
		{name: "value not an object", raw: `{"kind":"insert","collection":"content","value":"oops"}`, wantErr: true},
		{name: "not json", raw: `{{`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(json.RawMessage(tc.raw))
			if tc.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse returned %v, want ErrMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse returned %v, want nil", err)
			}
		})
	}
}

func TestParseBatchOrderAndFirstFailure(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"kind":"insert","collection":"content","value":{"title":"a"}}`),
		json.RawMessage(`{"kind":"remove","collection":"content","key":"1"}`),
	}
	batch, err := ParseBatch(raw)
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	if len(batch) != 2 || batch[0].Kind != KindInsert || batch[1].Kind != KindRemove {
		t.Fatalf("batch order not preserved: %+v", batch)
	}

	raw = append(raw, json.RawMessage(`{"kind":"explode","collection":"content"}`))
	if _, err := ParseBatch(raw); err == nil {
		t.Fatal("expected error for invalid entry")
	}
}
