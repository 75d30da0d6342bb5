package slots

import (
	"testing"

	"dictation/internal/domain"
	"dictation/internal/ports"
)

func TestTableBindEmitUnbind(t *testing.T) {
	table := NewTable()

	var got []string
	binding, err := table.Bind(ports.SlotHypothesis, func(r domain.Result) {
		got = append(got, r.Text)
	})
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if binding == 0 {
		t.Fatalf("expected non-zero binding")
	}

	table.Emit(ports.SlotHypothesis, domain.Result{Text: "hello"})
	table.Emit(ports.SlotRecognized, domain.Result{Text: "ignored"})
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected deliveries: %v", got)
	}

	if err := table.Unbind(ports.SlotHypothesis, binding); err != nil {
		t.Fatalf("unbind failed: %v", err)
	}
	table.Emit(ports.SlotHypothesis, domain.Result{Text: "after"})
	if len(got) != 1 {
		t.Fatalf("expected no delivery after unbind, got %v", got)
	}
	if table.Count(ports.SlotHypothesis) != 0 {
		t.Fatalf("expected empty slot")
	}
}

func TestTableUnbindUnknownIsNoop(t *testing.T) {
	table := NewTable()
	if err := table.Unbind(ports.SlotRecognized, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTableRejectsInvalidInput(t *testing.T) {
	table := NewTable()
	if _, err := table.Bind(ports.SlotHypothesis, nil); err == nil {
		t.Fatalf("expected nil callback error")
	}
	if _, err := table.Bind(ports.Slot("bogus"), func(domain.Result) {}); err == nil {
		t.Fatalf("expected unknown slot error")
	}
}

func TestTableCountAndClear(t *testing.T) {
	table := NewTable()
	noop := func(domain.Result) {}
	for i := 0; i < 3; i++ {
		if _, err := table.Bind(ports.SlotRecognized, noop); err != nil {
			t.Fatalf("bind failed: %v", err)
		}
	}
	if n := table.Count(ports.SlotRecognized); n != 3 {
		t.Fatalf("expected 3 bindings, got %d", n)
	}
	table.Clear()
	if n := table.Count(ports.SlotRecognized); n != 0 {
		t.Fatalf("expected 0 bindings after clear, got %d", n)
	}
}

func TestTableAcceptsCompletedSlot(t *testing.T) {
	table := NewTable()
	done := 0
	if _, err := table.Bind(ports.SlotCompleted, func(domain.Result) { done++ }); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	table.Emit(ports.SlotCompleted, domain.Result{Kind: domain.ResultCompleted})
	if done != 1 {
		t.Fatalf("expected one completion, got %d", done)
	}
}
