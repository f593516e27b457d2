package mutation_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"fieldsync/internal/mutation"
)

func TestDefaultRegistryValidatesBuiltins(t *testing.T) {
	registry := mutation.DefaultRegistry()

	cases := []struct {
		name    string
		typ     string
		payload string
		wantErr error
	}{
		{"work order ok", mutation.TypeCreateWorkOrder, `{"assetId":"pump-7","title":"Leaking seal","priority":"high"}`, nil},
		{"work order missing title", mutation.TypeCreateWorkOrder, `{"assetId":"pump-7"}`, mutation.ErrInvalidPayload},
		{"work order bad priority", mutation.TypeCreateWorkOrder, `{"assetId":"a","title":"t","priority":"urgent"}`, mutation.ErrInvalidPayload},
		{"work order unknown field", mutation.TypeCreateWorkOrder, `{"assetId":"a","title":"t","color":"red"}`, mutation.ErrInvalidPayload},
		{"check ok", mutation.TypeSubmitCheck, `{"scheduleId":"pm-1","assetId":"a","completedAt":"2026-01-02T10:00:00Z","results":[{"itemId":"c1","passed":true}]}`, nil},
		{"check no results", mutation.TypeSubmitCheck, `{"scheduleId":"pm-1","assetId":"a","completedAt":"2026-01-02T10:00:00Z","results":[]}`, mutation.ErrInvalidPayload},
		{"not json", mutation.TypeSubmitCheck, `{`, mutation.ErrInvalidPayload},
		{"unknown type", "delete-asset", `{}`, mutation.ErrUnknownType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := registry.Validate(tc.typ, json.RawMessage(tc.payload))
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected valid payload, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRegisterCustomType(t *testing.T) {
	registry := mutation.DefaultRegistry()
	err := registry.Register(mutation.Definition{
		Type: "close-handover",
		Path: "/api/handovers/close",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	def, ok := registry.Lookup("close-handover")
	if !ok {
		t.Fatal("expected custom type registered")
	}
	if def.Method != http.MethodPost {
		t.Fatalf("expected default POST method, got %q", def.Method)
	}
	if err := registry.Validate("close-handover", json.RawMessage(`{"anything":1}`)); err != nil {
		t.Fatalf("expected payload accepted without validator, got %v", err)
	}
	types := registry.Types()
	if len(types) != 3 || types[0] != "close-handover" {
		t.Fatalf("unexpected sorted types: %v", types)
	}
}

func TestRegisterRejectsIncompleteDefinitions(t *testing.T) {
	registry := mutation.NewRegistry()
	if err := registry.Register(mutation.Definition{Path: "/x"}); err == nil {
		t.Fatal("expected error for missing type")
	}
	if err := registry.Register(mutation.Definition{Type: "x"}); err == nil {
		t.Fatal("expected error for missing path")
	}
}
