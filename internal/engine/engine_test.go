package engine

import (
	"errors"
	"testing"
)

func TestFrameSizeFor(t *testing.T) {
	if n := FrameSizeFor(SampleRate16k); n != 512 {
		t.Errorf("FrameSizeFor(16k) = %d, want 512", n)
	}
	if n := FrameSizeFor(SampleRate8k); n != 256 {
		t.Errorf("FrameSizeFor(8k) = %d, want 256", n)
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(KindStub, ""); got != KindStub {
		t.Errorf("Resolve(stub) = %q", got)
	}
	want := KindEnergy
	if NativeAvailable() {
		want = KindSilero
	}
	if got := Resolve(KindAuto, "model.onnx"); got != want {
		t.Errorf("Resolve(auto, model) = %q, want %q", got, want)
	}
	if got := Resolve(KindAuto, ""); got != KindEnergy {
		t.Errorf("Resolve(auto, no model) = %q, want energy", got)
	}
}

func TestNew(t *testing.T) {
	eng, err := New(KindStub, "", SampleRate16k)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := eng.(*StubEngine); !ok {
		t.Fatalf("New(stub) returned %T", eng)
	}
	eng, err = New(KindAuto, "", SampleRate8k)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := eng.(*EnergyEngine); !ok {
		t.Fatalf("New(auto) without model returned %T", eng)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(KindStub, "", 22050); !errors.Is(err, ErrWrongSampleRate) {
		t.Errorf("err = %v, want ErrWrongSampleRate", err)
	}
	if _, err := New("whisper", "", SampleRate16k); err == nil {
		t.Error("expected error for unknown kind")
	}
}
