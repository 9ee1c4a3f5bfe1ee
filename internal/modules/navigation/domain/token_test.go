package domain_test

import (
	"context"
	"testing"

	"onsetscore/internal/modules/navigation/domain"
)

func TestIssueSupersedesPreviousToken(t *testing.T) {
	t.Parallel()
	issuer := domain.NewIssuer(context.Background())
	first := issuer.Issue()
	if first.Stale() {
		t.Fatalf("fresh token must not be stale")
	}
	second := issuer.Issue()
	if !first.Stale() {
		t.Fatalf("issuing a new token must invalidate the previous one")
	}
	if second.Stale() {
		t.Fatalf("latest token must stay live")
	}
	if second.Generation() != first.Generation()+1 || issuer.Generation() != second.Generation() {
		t.Fatalf("generations must increase: %d %d %d", first.Generation(), second.Generation(), issuer.Generation())
	}
	issuer.Cancel()
	if !second.Stale() {
		t.Fatalf("cancel must invalidate the current token")
	}
}

func TestParentCancellationStalesTokens(t *testing.T) {
	t.Parallel()
	parent, cancel := context.WithCancel(context.Background())
	issuer := domain.NewIssuer(parent)
	tok := issuer.Issue()
	cancel()
	if !tok.Stale() {
		t.Fatalf("token must follow its parent")
	}
	if tok.Context().Err() == nil {
		t.Fatalf("token context must be done")
	}
}
