package odt

import (
	"errors"
	"testing"

	"github.com/hanshuebner/odt-uploader/internal/testutil/odtsim"
	"github.com/hanshuebner/odt-uploader/internal/testutil/testlog"
	"github.com/hanshuebner/odt-uploader/internal/transport"
)

func openConsole(t *testing.T) (*odtsim.Console, *Driver) {
	t.Helper()
	con := odtsim.New()
	port, err := con.Open()
	if err != nil {
		t.Fatalf("open console: %v", err)
	}
	return con, New(port, Config{})
}

func TestAttentionThenPrompt(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	if err := drv.Attention(); err != nil {
		t.Fatalf("attention: %v", err)
	}
	if err := drv.AwaitPrompt(); err != nil {
		t.Fatalf("await prompt: %v", err)
	}
	if got := string(con.Writes()); got != "\r" {
		t.Fatalf("write log: %q", got)
	}
	if err := con.Violation(); err != nil {
		t.Fatalf("dialogue violation: %v", err)
	}
}

func TestOpenLocationAndWriteWordDeposit(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	if err := drv.OpenLocation(0o1000); err != nil {
		t.Fatalf("open location: %v", err)
	}
	if err := drv.WriteWord(0o12345); err != nil {
		t.Fatalf("write word: %v", err)
	}
	if got := con.MemoryWord(0o1000); got != 0o12345 {
		t.Fatalf("deposited word: got %06o, want 012345", uint16(got))
	}
	if got := string(con.Writes()); got != "001000/012345\r" {
		t.Fatalf("write log: %q", got)
	}
	if err := con.Violation(); err != nil {
		t.Fatalf("dialogue violation: %v", err)
	}
}

func TestSetRegisterDeposit(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	if err := drv.SetRegister(1, 0o400); err != nil {
		t.Fatalf("set register: %v", err)
	}
	if got := con.Registers()[1]; got != 0o400 {
		t.Fatalf("R1: got %06o, want 000400", uint16(got))
	}
	if got := string(con.Writes()); got != "R1/000400\r" {
		t.Fatalf("write log: %q", got)
	}
	if err := con.Violation(); err != nil {
		t.Fatalf("dialogue violation: %v", err)
	}
}

func TestSetRegisterRejectsBadId(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	if err := drv.SetRegister(8, 0); err == nil {
		t.Fatalf("expected error for R8")
	}
	if len(con.Writes()) != 0 {
		t.Fatalf("wrote despite invalid register: %q", con.Writes())
	}
}

func TestStartIsBlindAndAwaitReturnDetectsHalt(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	// The word count cell at entry+6 is still zero, so the simulated
	// program halts immediately and the prompt comes back on its own.
	if err := drv.Start(0o100); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := string(con.Writes()); got != "000100g" {
		t.Fatalf("write log: %q", got)
	}
	if err := drv.AwaitReturn(); err != nil {
		t.Fatalf("await return: %v", err)
	}
	if err := con.Violation(); err != nil {
		t.Fatalf("dialogue violation: %v", err)
	}
}

func TestEchoMismatchAborts(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	con.CorruptEcho(3)
	err := drv.OpenLocation(0o1000)
	if !errors.Is(err, ErrEchoMismatch) {
		t.Fatalf("expected ErrEchoMismatch, got %v", err)
	}
}

func TestAwaitPromptTimesOutOnSilentConsole(t *testing.T) {
	testlog.Start(t)
	con, drv := openConsole(t)
	con.MutePrompt()
	if err := drv.Attention(); err != nil {
		t.Fatalf("attention: %v", err)
	}
	if err := drv.AwaitPrompt(); !errors.Is(err, transport.ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout, got %v", err)
	}
	if got := string(con.Writes()); got != "\r" {
		t.Fatalf("write log after silence: %q", got)
	}
}
