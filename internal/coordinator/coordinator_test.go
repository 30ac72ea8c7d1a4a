package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bioagent-ai/bioagent/internal/agent"
	"github.com/bioagent-ai/bioagent/pkg/models"
)

func drain(t *testing.T, ch <-chan *agent.ResponseChunk, timeout time.Duration) []*agent.ResponseChunk {
	t.Helper()
	var chunks []*agent.ResponseChunk
	deadline := time.After(timeout)
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks
			}
			chunks = append(chunks, c)
		case <-deadline:
			t.Fatal("timed out draining coordinator output")
		}
	}
}

func finalText(chunks []*agent.ResponseChunk) string {
	for _, c := range chunks {
		if c.Text != "" {
			return c.Text
		}
	}
	return ""
}

func newTestCoordinator(t *testing.T) (*Coordinator, *Router) {
	t.Helper()
	router := NewRouter(RouterConfig{ConfidenceThreshold: 0.5, MaxSpecialists: 3})
	router.Register(SpecialistDefinition{ID: "pipeline", Keywords: []string{"pipeline", "nextflow"}})
	router.Register(SpecialistDefinition{ID: "general", IsGeneral: true})

	cfg := DefaultConfig()
	cfg.OuterTimeout = 2 * time.Second
	cfg.SpecialistTimeout = time.Second
	coord := NewCoordinator(router, cfg)
	return coord, router
}

func TestCoordinator_RoutesAndReturnsSpecialistText(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.RegisterSpecialist("pipeline", &scriptedRunner{text: "Pipeline result."})
	coord.RegisterSpecialist("general", &scriptedRunner{text: "General result."})

	session := &models.Session{ID: "s1"}
	msg := &models.Message{Content: "run my nextflow pipeline"}

	ch, err := coord.Run(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)
	if got := finalText(chunks); got != "Pipeline result." {
		t.Errorf("final text = %q, want %q", got, "Pipeline result.")
	}
}

func TestCoordinator_FallsBackToGeneralOnSpecialistFailure(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.RegisterSpecialist("pipeline", &scriptedRunner{err: errors.New("boom")})
	coord.RegisterSpecialist("general", &scriptedRunner{text: "General fallback."})

	session := &models.Session{ID: "s1"}
	msg := &models.Message{Content: "run my nextflow pipeline"}

	ch, err := coord.Run(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)
	if got := finalText(chunks); got != "General fallback." {
		t.Errorf("final text = %q, want %q", got, "General fallback.")
	}
}

func TestCoordinator_QCAppendsReviewerNotes(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	coord.RegisterSpecialist("pipeline", &scriptedRunner{text: "Pipeline result."})
	coord.RegisterSpecialist("general", &scriptedRunner{text: "General result."})
	coord.config.EnableQC = true
	coord.SetQCReviewer(NewQCReviewer(&scriptedRunner{
		text: "APPROVED: no\nCONCERNS:\n- missing replicate count\nSUGGESTIONS:\n- none\n",
	}, nil))

	session := &models.Session{ID: "s1"}
	msg := &models.Message{Content: "run my nextflow pipeline"}

	ch, err := coord.Run(context.Background(), session, msg)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks := drain(t, ch, 2*time.Second)
	text := finalText(chunks)
	if text == "" {
		t.Fatal("expected non-empty final text")
	}
	if text == "Pipeline result." {
		t.Error("expected reviewer notes to be appended")
	}
}

func TestCoordinator_NoRunnersErrors(t *testing.T) {
	_, router := newTestCoordinator(t)
	coord := NewCoordinator(router, DefaultConfig())
	if _, err := coord.Run(context.Background(), &models.Session{ID: "s1"}, &models.Message{Content: "hi"}); err == nil {
		t.Error("Run() with no registered specialists, want error")
	}
}
