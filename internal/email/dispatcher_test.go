package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/suyash-mankar/PMIP-BE-sub000/internal/matching"
)

func TestSendBuildsDigest(t *testing.T) {
	t.Parallel()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	dispatcher := NewDispatcher(Config{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}, zap.NewNop())
	dispatcher.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	jobs := []matching.ScoredJobItem{
		{
			JobItem:   matching.JobItem{Title: "Senior PM", Company: "Acme", Location: "Bangalore", ApplyURL: "https://jobs.example/1"},
			Score:     0.91,
			Rationale: "Matches your fintech product background.",
		},
	}

	err := dispatcher.Send(context.Background(), "candidate@example.com", jobs, "senior pm roles")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr: %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" || len(gotTo) != 1 || gotTo[0] != "candidate@example.com" {
		t.Fatalf("unexpected envelope: from=%q to=%v", gotFrom, gotTo)
	}

	body := string(gotMsg)
	for _, want := range []string{"Senior PM at Acme (Bangalore)", "Matches your fintech product background.", "https://jobs.example/1", "senior pm roles"} {
		if !strings.Contains(body, want) {
			t.Fatalf("message missing %q:\n%s", want, body)
		}
	}
}

func TestSendWrapsFailure(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(Config{Host: "smtp.example.com", Port: 587}, zap.NewNop())
	dispatcher.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := dispatcher.Send(context.Background(), "candidate@example.com", nil, "")

	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	t.Parallel()

	dispatcher := NewDispatcher(Config{}, zap.NewNop())

	if err := dispatcher.Send(context.Background(), "  ", nil, ""); err == nil {
		t.Fatal("expected error for empty recipient")
	}
}
