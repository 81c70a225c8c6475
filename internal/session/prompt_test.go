// internal/session/prompt_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// blockingCode returns a CodeFunc that parks until its prompt context
// is cancelled, reporting the cancellation on done.
func blockingCode(done chan error) CodeFunc {
	return func(ctx context.Context, previousFailed bool) (string, error) {
		<-ctx.Done()
		done <- ctx.Err()
		return "", ctx.Err()
	}
}

func TestNewPromptCancelsPriorPrompt(t *testing.T) {
	authDone := make(chan error, 1)
	emailAnswer := make(chan string, 1)

	r := NewResolver(testLogger(),
		nil,
		blockingCode(authDone),
		func(ctx context.Context, email string, previousFailed bool) (string, error) {
			select {
			case code := <-emailAnswer:
				return code, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	)

	// First prompt: authenticator code, parked.
	go r.AuthenticatorCode(context.Background(), false)

	// Give the first prompt time to register with the gate.
	time.Sleep(50 * time.Millisecond)

	// Second prompt on a different channel must cancel the first...
	codeCh := make(chan string, 1)
	go func() {
		code, err := r.EmailCode(context.Background(), "a***@b.com", false)
		if err != nil {
			t.Errorf("email prompt failed: %v", err)
		}
		codeCh <- code
	}()

	select {
	case err := <-authDone:
		if err != context.Canceled {
			t.Fatalf("expected prior prompt to be cancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("prior authenticator prompt was never cancelled")
	}

	// ...while the email prompt stays resolvable.
	emailAnswer <- "ABC12"
	select {
	case code := <-codeCh:
		if code != "ABC12" {
			t.Fatalf("wrong code: %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("email prompt never resolved")
	}
}

func TestPromptReplacesSameChannel(t *testing.T) {
	firstDone := make(chan error, 1)
	firstSlot := make(chan struct{}, 1)
	firstSlot <- struct{}{}

	r := NewResolver(testLogger(), nil, func(ctx context.Context, previousFailed bool) (string, error) {
		select {
		case <-firstSlot:
			<-ctx.Done()
			firstDone <- ctx.Err()
			return "", ctx.Err()
		default:
			return "XYZ99", nil
		}
	}, nil)

	go r.AuthenticatorCode(context.Background(), false)
	time.Sleep(50 * time.Millisecond)

	code, err := r.AuthenticatorCode(context.Background(), true)
	if err != nil {
		t.Fatalf("second prompt failed: %v", err)
	}
	if code != "XYZ99" {
		t.Fatalf("wrong code: %q", code)
	}
	select {
	case err := <-firstDone:
		if err != context.Canceled {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first prompt never cancelled")
	}
}

func TestDeviceConfirmationCancelsPendingCode(t *testing.T) {
	codeDone := make(chan error, 1)

	r := NewResolver(testLogger(),
		func(ctx context.Context) error { return nil },
		blockingCode(codeDone),
		nil,
	)

	go r.AuthenticatorCode(context.Background(), false)
	time.Sleep(50 * time.Millisecond)

	if err := r.ConfirmDevice(context.Background()); err != nil {
		t.Fatalf("device confirmation failed: %v", err)
	}
	select {
	case err := <-codeDone:
		if err != context.Canceled {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending code prompt never cancelled")
	}
}
