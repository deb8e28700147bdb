package agent

import (
	"context"
	"testing"
	"time"

	"github.com/urbanisierung/copilot-swarm/internal/errors"
)

// fakeGateway hands out scripted sessions and counts lifecycle calls.
type fakeGateway struct {
	responses []string
	sendErr   error
	created   int
	destroyed int
}

func (g *fakeGateway) CreateSession(ctx context.Context, instructions, model string) (Session, error) {
	g.created++
	return &fakeSession{gateway: g}, nil
}

type fakeSession struct {
	gateway *fakeGateway
	sends   int
}

func (s *fakeSession) Send(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if s.gateway.sendErr != nil {
		return "", s.gateway.sendErr
	}
	if s.sends >= len(s.gateway.responses) {
		return "", errors.NewSessionError("send", errors.New("script exhausted"))
	}
	resp := s.gateway.responses[s.sends]
	s.sends++
	return resp, nil
}

func (s *fakeSession) Destroy() error {
	s.gateway.destroyed++
	return nil
}

func TestConverse(t *testing.T) {
	gw := &fakeGateway{responses: []string{"the answer"}}

	got, err := Converse(context.Background(), gw, "instructions", "m1", "question", time.Minute)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if got != "the answer" {
		t.Errorf("response = %q", got)
	}
	if gw.created != 1 || gw.destroyed != 1 {
		t.Errorf("created=%d destroyed=%d, want 1/1", gw.created, gw.destroyed)
	}
}

func TestConverseDestroysOnSendError(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.NewTimeoutError("send", time.Minute)}

	_, err := Converse(context.Background(), gw, "i", "", "q", time.Minute)
	if err == nil {
		t.Fatal("expected error")
	}
	if gw.destroyed != 1 {
		t.Errorf("destroyed = %d, want 1 (session released on error path)", gw.destroyed)
	}
}

func TestCLISessionDestroyedSendFails(t *testing.T) {
	gw := NewCLIGateway("true", nil, "", "", nil)
	session, err := gw.CreateSession(context.Background(), "i", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := session.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := session.Send(context.Background(), "p", time.Second); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("Send after Destroy = %v, want ErrSessionClosed", err)
	}
	if err := session.Destroy(); !errors.Is(err, errors.ErrSessionClosed) {
		t.Errorf("second Destroy = %v, want ErrSessionClosed", err)
	}
}

func TestCLIGatewayRequiresCommand(t *testing.T) {
	gw := NewCLIGateway("", nil, "", "", nil)
	if _, err := gw.CreateSession(context.Background(), "i", ""); err == nil {
		t.Fatal("expected error for missing command")
	}
}
